package ocr

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

const (
	// stderrLogLimit caps how much tool stderr lands in a log line.
	stderrLogLimit = 8 << 10
	// waitDelay bounds how long a cancelled tool may hold its pipes open.
	waitDelay = 2 * time.Second
)

// Runner runs an external tool (pdftotext, pdftoppm, tesseract). Tests swap in a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *slog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var out, errb bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &errb
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	log := r.logger.With("cmd", name, "args", strings.Join(args, " "), "elapsed_ms", time.Since(start).Milliseconds())
	if err != nil {
		stderr := errb.String()
		if len(stderr) > stderrLogLimit {
			stderr = stderr[:stderrLogLimit] + "...(truncated)"
		}
		log.Error("ocr.exec.failed", "error", err, "stderr", stderr)
		return out.Bytes(), errb.Bytes(), err
	}
	log.Debug("ocr.exec.ok", "stdout_bytes", out.Len(), "stderr_bytes", errb.Len())
	return out.Bytes(), errb.Bytes(), nil
}
