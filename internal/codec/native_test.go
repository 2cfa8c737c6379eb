package codec

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/arc7/internal/format"
)

func writeTree(t *testing.T, dir string) []Source {
	t.Helper()
	big := make([]byte, 256*1024)
	_, err := rand.Read(big)
	require.NoError(t, err)

	files := map[string][]byte{
		"a.txt":          []byte("alpha"),
		"sub/b.txt":      []byte("bravo"),
		"sub/deep/c.bin": big,
	}
	var sources []Source
	for name, data := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, data, 0o644))
		sources = append(sources, Source{Path: p, Name: name, Size: int64(len(data))})
	}
	return sources
}

func sameFile(t *testing.T, a, b string) {
	t.Helper()
	ha, err := HashFile(a)
	require.NoError(t, err)
	hb, err := HashFile(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb, "%s and %s differ", a, b)
}

func TestNative_RoundTrip(t *testing.T) {
	for _, kind := range []format.Kind{format.Zip, format.Tar} {
		t.Run(kind.String(), func(t *testing.T) {
			dir := t.TempDir()
			src := filepath.Join(dir, "src")
			sources := writeTree(t, src)
			archive := filepath.Join(dir, "out"+kind.Extension())
			out := filepath.Join(dir, "out")

			n := NewNative(nil)
			var (
				mu      sync.Mutex
				started []string
				last    float64
			)
			cb := Callbacks{
				Progress: func(p float64) {
					mu.Lock()
					last = p
					mu.Unlock()
				},
				FileStarted: func(name string) {
					mu.Lock()
					started = append(started, name)
					mu.Unlock()
				},
			}
			require.NoError(t, n.Compress(context.Background(), CompressJob{
				Archive: archive,
				Kind:    kind,
				Sources: sources,
				Level:   LevelNormal,
			}, cb))
			assert.Len(t, started, len(sources))
			assert.InDelta(t, 100, last, 0.01)

			entries, err := n.List(context.Background(), archive, nil)
			require.NoError(t, err)
			var names []string
			for _, e := range entries {
				if !e.IsDir {
					names = append(names, e.Name)
				}
			}
			assert.ElementsMatch(t, []string{"a.txt", "sub/b.txt", "sub/deep/c.bin"}, names)

			require.NoError(t, n.Extract(context.Background(), ExtractJob{Archive: archive, Destination: out}, Callbacks{}))
			for _, s := range sources {
				sameFile(t, s.Path, filepath.Join(out, filepath.FromSlash(s.Name)))
			}

			info, err := n.Check(context.Background(), archive, nil)
			require.NoError(t, err)
			assert.Equal(t, kind, info.Kind)
			assert.Equal(t, 3, info.FileCount)
			assert.Len(t, info.Checksum, 64)
		})
	}
}

func TestNative_SingleStream(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("single stream payload"), 0o644))
	archive := filepath.Join(dir, "notes.txt.gz")

	n := NewNative(nil)
	require.NoError(t, n.Compress(context.Background(), CompressJob{
		Archive: archive,
		Kind:    format.GZip,
		Sources: []Source{{Path: src, Name: "notes.txt", Size: 21}},
		Level:   LevelHigh,
	}, Callbacks{}))

	entries, err := n.List(context.Background(), archive, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "notes.txt", entries[0].Name)

	out := filepath.Join(dir, "out")
	require.NoError(t, n.Extract(context.Background(), ExtractJob{Archive: archive, Destination: out}, Callbacks{}))
	sameFile(t, src, filepath.Join(out, "notes.txt"))
}

func TestNative_SingleStreamRejectsMany(t *testing.T) {
	dir := t.TempDir()
	sources := writeTree(t, dir)
	err := NewNative(nil).Compress(context.Background(), CompressJob{
		Archive: filepath.Join(dir, "x.gz"),
		Kind:    format.GZip,
		Sources: sources,
	}, Callbacks{})
	require.Error(t, err)
}

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestNative_ExtractSkipsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	writeZip(t, archive, map[string]string{
		"../../evil.txt": "pwned",
		"good/ok.txt":    "fine",
	})
	dest := filepath.Join(dir, "deep", "dest")

	require.NoError(t, NewNative(nil).Extract(context.Background(), ExtractJob{Archive: archive, Destination: dest}, Callbacks{}))

	data, err := os.ReadFile(filepath.Join(dest, "good", "ok.txt"))
	require.NoError(t, err)
	assert.Equal(t, "fine", string(data))
	_, err = os.Stat(filepath.Join(dir, "evil.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestNative_ExtractHonoursExclude(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "a.zip")
	writeZip(t, archive, map[string]string{"keep.txt": "k", "drop.txt": "d"})
	dest := filepath.Join(dir, "dest")

	require.NoError(t, NewNative(nil).Extract(context.Background(), ExtractJob{
		Archive:     archive,
		Destination: dest,
		Exclude:     []string{"drop.txt"},
	}, Callbacks{}))

	assert.FileExists(t, filepath.Join(dest, "keep.txt"))
	assert.NoFileExists(t, filepath.Join(dest, "drop.txt"))
}

func TestNative_ExtractOverwrites(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "a.zip")
	writeZip(t, archive, map[string]string{"f.txt": "new"})
	dest := filepath.Join(dir, "dest")
	require.NoError(t, os.MkdirAll(dest, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "f.txt"), []byte("much older content"), 0o644))

	require.NoError(t, NewNative(nil).Extract(context.Background(), ExtractJob{Archive: archive, Destination: dest}, Callbacks{}))
	data, err := os.ReadFile(filepath.Join(dest, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestNative_Supports(t *testing.T) {
	n := NewNative(nil)
	tests := []struct {
		name string
		job  CompressJob
		ok   bool
	}{
		{"zip", CompressJob{Kind: format.Zip}, true},
		{"zip store", CompressJob{Kind: format.Zip, Method: MethodCopy}, true},
		{"zip lzma", CompressJob{Kind: format.Zip, Method: MethodLZMA}, false},
		{"7z", CompressJob{Kind: format.SevenZip}, false},
		{"password", CompressJob{Kind: format.Zip, Password: []byte("pw")}, false},
		{"volumes", CompressJob{Kind: format.Zip, VolumeSize: 1 << 20}, false},
		{"append gz", CompressJob{Kind: format.GZip, Append: true}, false},
		{"append tar", CompressJob{Kind: format.Tar, Append: true}, true},
		{"gz method", CompressJob{Kind: format.GZip, Method: MethodBZip2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := n.Supports(tt.job)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrUnsupported)
			}
		})
	}
}

func TestNative_ListZipFlags(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "flags.zip")
	f, err := os.Create(archive)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	// Shift-JIS bytes are not valid UTF-8, so the reader keeps NonUTF8 set.
	legacy := "\x83\x65\x83\x58\x83\x67.txt"
	_, err = zw.CreateHeader(&zip.FileHeader{Name: legacy, Method: zip.Store, NonUTF8: true})
	require.NoError(t, err)
	_, err = zw.CreateHeader(&zip.FileHeader{Name: "modern.txt", Method: zip.Deflate})
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	entries, err := NewNative(nil).List(context.Background(), archive, nil)
	require.NoError(t, err)
	byName := map[string]Entry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	assert.False(t, byName[legacy].Unicode)
	assert.Equal(t, "Copy", byName[legacy].Method)
	assert.True(t, byName["modern.txt"].Unicode)
	assert.Equal(t, "Deflate", byName["modern.txt"].Method)
}

func TestRouter_CompressWithoutBinary(t *testing.T) {
	r := NewRouter(NewNative(nil), nil)
	err := r.Compress(context.Background(), CompressJob{Kind: format.SevenZip}, Callbacks{})
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestRouter_ReadSplitVolumeWithoutBinary(t *testing.T) {
	r := NewRouter(NewNative(nil), nil)
	_, err := r.List(context.Background(), "/tmp/archive.7z.001", nil)
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestHashFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(p, nil, 0o644))
	sum, err := HashFile(p)
	require.NoError(t, err)
	// BLAKE3 of the empty input.
	assert.Equal(t, "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262", sum)
}
