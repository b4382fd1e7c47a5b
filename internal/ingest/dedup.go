package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
)

// Deduper remembers the content hash of every document it has admitted so a
// file that is rewritten or renamed with identical bytes is reconciled once.
type Deduper struct {
	mu   sync.Mutex
	seen map[string]string
}

func NewDeduper() *Deduper {
	return &Deduper{seen: map[string]string{}}
}

// Admit hashes path and reports whether its content is new. The hex digest is
// returned either way.
func (d *Deduper) Admit(path string) (bool, string, error) {
	sum, err := hashFile(path)
	if err != nil {
		return false, "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[sum]; ok {
		return false, sum, nil
	}
	d.seen[sum] = path
	return true, sum, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
