package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/holokernel/internal/memory"
	"github.com/hyperjump/holokernel/internal/signature"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) onFile(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func TestWatcher_DebounceAndExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher(dir, []string{".txt"}, rec.onFile, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	fPath := filepath.Join(dir, "f.txt")
	for i := 0; i < 3; i++ {
		require.NoError(t, writeFile(fPath, strings.Repeat("x", i+1)))
	}
	require.NoError(t, writeFile(filepath.Join(dir, "skip.bin"), "x"))

	require.Eventually(t, func() bool { return len(rec.snapshot()) >= 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, []string{fPath}, rec.snapshot(), "expected one debounced callback for f.txt")
}

func TestWatcher_IgnoresSubdirectories(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher(dir, nil, rec.onFile, WithDebounce(20*time.Millisecond))
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, mkdirAll(filepath.Join(dir, "sub")))
	require.NoError(t, writeFile(filepath.Join(dir, "sub", "nested.txt"), "x"))
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestWatcher_SyncOnStart(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.txt", "a.txt", "ignore.xyz"} {
		require.NoError(t, writeFile(filepath.Join(dir, name), name))
	}
	rec := &recorder{}
	w := NewWatcher(dir, []string{".txt"}, rec.onFile, WithSyncOnStart(true))
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	got := rec.snapshot()
	require.Len(t, got, 2)
	assert.True(t, strings.HasSuffix(got[0], "a.txt"), "expected a.txt first, got %v", got)
	assert.True(t, strings.HasSuffix(got[1], "b.txt"), "expected b.txt second, got %v", got)
}

func TestWatcher_Start_createsMissingDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")
	w := NewWatcher(root, []string{".txt"}, nil)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.DirExists(t, root)
	assert.Equal(t, root, w.Dir())
}

func TestWatcher_StopOnCancel(t *testing.T) {
	w := NewWatcher(t.TempDir(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()
	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
	w.Stop()
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.TXT", []string{".txt"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchExtension(tt.path, tt.extensions), "matchExtension(%q, %v)", tt.path, tt.extensions)
	}
}

type fakeStore struct {
	key, value []byte
	err        error
}

func (f *fakeStore) Associate(key, value []byte) (memory.InsertResult, error) {
	if f.err != nil {
		return memory.InsertResult{}, f.err
	}
	f.key, f.value = key, value
	return memory.InsertResult{EntryInfo: memory.EntryInfo{
		KeySignature:   signature.Sum(key),
		ValueSignature: signature.Sum(value),
	}}, nil
}

func TestIngester_Ingest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "TEST_PATTERN")
	require.NoError(t, writeFile(path, "EXPECTED_RESULT"))

	store := &fakeStore{}
	res, err := NewIngester(store, 1024, nil).Ingest(path)
	require.NoError(t, err)
	assert.Equal(t, "TEST_PATTERN", string(store.key))
	assert.Equal(t, "EXPECTED_RESULT", string(store.value))
	assert.Equal(t, signature.Fingerprint(0x776C8C3C), res.KeySignature)
}

func TestIngester_Errors(t *testing.T) {
	dir := t.TempDir()
	big := filepath.Join(dir, "big.txt")
	require.NoError(t, writeFile(big, strings.Repeat("x", 17)))
	_, err := NewIngester(&fakeStore{}, 16, nil).Ingest(big)
	assert.Error(t, err, "expected size error")

	_, err = NewIngester(&fakeStore{}, 16, nil).Ingest(filepath.Join(dir, "missing"))
	assert.Error(t, err, "expected open error")

	sentinel := errors.New("store down")
	small := filepath.Join(dir, "small.txt")
	require.NoError(t, writeFile(small, "x"))
	_, err = NewIngester(&fakeStore{err: sentinel}, 16, nil).Ingest(small)
	assert.ErrorIs(t, err, sentinel)
}

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}
