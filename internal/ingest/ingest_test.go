package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-reconciler/internal/async"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
)

func write(t *testing.T, path, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	a := write(t, filepath.Join(root, "Invoice_1.pdf"), "a")
	b := write(t, filepath.Join(root, "nested", "scan.JPG"), "b")
	c := write(t, filepath.Join(root, "pre.json"), "{}")
	po := write(t, filepath.Join(root, "purchase_orders.json"), "{}")
	write(t, filepath.Join(root, "notes.txt"), "x")
	write(t, filepath.Join(root, ".cache", "hidden.pdf"), "x")

	paths, stats, err := Discover(root, DiscoverOptions{SkipHidden: true, Exclude: []string{po}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b, c}, paths)
	assert.Equal(t, uint32(5), stats.Scanned)
	assert.Equal(t, uint32(3), stats.Matched)

	paths, _, err = Discover(root, DiscoverOptions{}, nil)
	require.NoError(t, err)
	assert.Len(t, paths, 5)
}

func TestDiscoverErrors(t *testing.T) {
	_, _, err := Discover("  ", DiscoverOptions{}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, _, err = Discover(filepath.Join(t.TempDir(), "nope"), DiscoverOptions{}, nil)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestResolveNamed(t *testing.T) {
	data := common.DataConfig{DataDir: "/data", NamedInvoices: common.DefaultNamedInvoices}

	paths, err := ResolveNamed(data, []string{"4", " 1", "4"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("/data", "invoices", "Invoice_4_Price_Trap.pdf"),
		filepath.Join("/data", "invoices", "Invoice_1_Baseline.pdf"),
	}, paths)

	_, err = ResolveNamed(data, []string{"2", "9"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Contains(t, err.Error(), "unknown invoice 9")

	all := ResolveAll(data)
	require.Len(t, all, 5)
	assert.Equal(t, filepath.Join("/data", "invoices", "Invoice_5_Missing_PO.pdf"), all[4])
}

func TestDeduper(t *testing.T) {
	dir := t.TempDir()
	a := write(t, filepath.Join(dir, "a.pdf"), "same bytes")
	b := write(t, filepath.Join(dir, "b.pdf"), "same bytes")
	c := write(t, filepath.Join(dir, "c.pdf"), "other bytes")

	d := NewDeduper()
	fresh, sumA, err := d.Admit(a)
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Len(t, sumA, 64)

	fresh, sumB, err := d.Admit(b)
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Equal(t, sumA, sumB)

	fresh, _, err = d.Admit(c)
	require.NoError(t, err)
	assert.True(t, fresh)

	_, _, err = d.Admit(filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden("/a/.git"))
	assert.False(t, IsHidden("/a/b.pdf"))
	assert.False(t, IsHidden("."))
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []async.Job
}

func (q *recordingQueue) Enqueue(_ context.Context, job async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Shutdown(context.Context) {}

func (q *recordingQueue) paths() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []string
	for _, j := range q.jobs {
		out = append(out, j.Path)
	}
	return out
}

func TestFeedSkipsDuplicateContent(t *testing.T) {
	dir := t.TempDir()
	a := write(t, filepath.Join(dir, "a.pdf"), "one")
	b := write(t, filepath.Join(dir, "b.pdf"), "one")
	c := write(t, filepath.Join(dir, "c.pdf"), "two")

	events := make(chan string, 4)
	events <- a
	events <- b
	events <- filepath.Join(dir, "vanished.pdf")
	events <- c
	close(events)

	q := &recordingQueue{}
	Feed(context.Background(), events, q, NewDeduper(), nil)
	assert.Equal(t, []string{a, c}, q.paths())
	for _, j := range q.jobs {
		assert.NotEmpty(t, j.TraceID)
		assert.False(t, j.SubmittedAt.IsZero())
	}
}

func TestStartWatcher(t *testing.T) {
	dir := t.TempDir()
	existing := write(t, filepath.Join(dir, "existing.pdf"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, errs, err := StartWatcher(ctx, WatchConfig{Roots: []string{dir}, InitialScan: true, Debounce: 20 * time.Millisecond}, nil)
	require.NoError(t, err)
	require.NotNil(t, errs)

	select {
	case p := <-events:
		assert.Equal(t, existing, p)
	case <-time.After(2 * time.Second):
		t.Fatal("initial scan did not emit existing file")
	}

	write(t, filepath.Join(dir, "ignored.txt"), "x")
	created := write(t, filepath.Join(dir, "new.png"), "x")

	select {
	case p := <-events:
		assert.Equal(t, created, p)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not emit new invoice")
	}

	cancel()
	for range events {
	}
}

func TestStartWatcherNeedsRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, nil)
	assert.Error(t, err)
}
