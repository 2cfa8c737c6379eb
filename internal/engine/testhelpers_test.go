package engine_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"github.com/bamsammich/arc7/internal/codec"
)

// createTestTree populates root with a standard test tree:
//
//	root.txt          (17 bytes)
//	big.bin           (320KB)
//	sub/mid.txt       (19 bytes)
//	sub/deep/leaf.txt (17 bytes)
//	empty/            (no entries)
func createTestTree(t *testing.T, root string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub", "deep"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(root, "root.txt"), []byte("root file content"), 0o644))
	bigData := bytes.Repeat([]byte("ABCDEFGHIJKLMNOP"), 20000) // 320KB
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.bin"), bigData, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "mid.txt"), []byte("middle file content"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "deep", "leaf.txt"), []byte("leaf file content"), 0o644))
}

var treeFiles = []string{
	"root.txt",
	"big.bin",
	filepath.Join("sub", "mid.txt"),
	filepath.Join("sub", "deep", "leaf.txt"),
}

func digest(t *testing.T, path string) [32]byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err, "read %s", path)
	return blake3.Sum256(data)
}

// verifyTree checks that dstRoot holds byte-identical copies of the tree's files.
func verifyTree(t *testing.T, srcRoot, dstRoot string) {
	t.Helper()
	for _, rel := range treeFiles {
		require.Equal(t, digest(t, filepath.Join(srcRoot, rel)), digest(t, filepath.Join(dstRoot, rel)), "content mismatch: %s", rel)
	}
}

// recorder is a bridge.Sink that keeps everything it is sent.
type recorder struct {
	mu       sync.Mutex
	texts    []string
	percents []float64
	statuses []string
}

func (r *recorder) Text(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, msg)
}

func (r *recorder) Progress(pct float64, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.percents = append(r.percents, pct)
	r.statuses = append(r.statuses, status)
}

// Statuses returns the status of every Progress event below 100%.
func (r *recorder) Statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for i, s := range r.statuses {
		if r.percents[i] < 100 {
			out = append(out, s)
		}
	}
	return out
}

func (r *recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func (r *recorder) Percents() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.percents...)
}

// fakeCodec records calls. Compress writes a placeholder archive; Extract
// writes each listed entry that is not excluded.
type fakeCodec struct {
	mu        sync.Mutex
	compress  []codec.CompressJob
	extract   []codec.ExtractJob
	entries   []codec.Entry
	passwords []string
	err       error
}

func (f *fakeCodec) Compress(_ context.Context, job codec.CompressJob, cb codec.Callbacks) error {
	f.mu.Lock()
	f.compress = append(f.compress, job)
	f.passwords = append(f.passwords, string(job.Password))
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for i, s := range job.Sources {
		if cb.FileStarted != nil && !s.IsDir {
			cb.FileStarted(s.Name)
		}
		if cb.Progress != nil {
			cb.Progress(float64(i+1) / float64(len(job.Sources)) * 100)
		}
	}
	return os.WriteFile(job.Archive, []byte("fake"), 0o644)
}

func (f *fakeCodec) Extract(_ context.Context, job codec.ExtractJob, cb codec.Callbacks) error {
	f.mu.Lock()
	f.extract = append(f.extract, job)
	f.passwords = append(f.passwords, string(job.Password))
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	skip := map[string]bool{}
	for _, n := range job.Exclude {
		skip[n] = true
	}
	for _, e := range f.entries {
		if e.IsDir || skip[e.Name] {
			continue
		}
		if cb.FileStarted != nil {
			cb.FileStarted(e.Name)
		}
		p := filepath.Join(job.Destination, filepath.FromSlash(e.Name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(e.Name), 0o644); err != nil {
			return err
		}
	}
	if cb.Progress != nil {
		cb.Progress(100)
	}
	return nil
}

func (f *fakeCodec) List(_ context.Context, _ string, pw []byte) ([]codec.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passwords = append(f.passwords, string(pw))
	return f.entries, f.err
}

func (f *fakeCodec) Check(_ context.Context, archive string, _ []byte) (codec.Info, error) {
	return codec.Info{Path: archive, FileCount: len(f.entries)}, f.err
}

// writeZip writes a zip whose entries are stored in the given order.
func writeZip(t *testing.T, path string, entries []zipEntry) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate, NonUTF8: e.nonUTF8})
		require.NoError(t, err)
		_, err = w.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

type zipEntry struct {
	name    string
	body    string
	nonUTF8 bool
}
