package extract

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlanner(t *testing.T) *Planner {
	t.Helper()
	p, err := NewPlanner(t.TempDir())
	require.NoError(t, err)
	return p
}

func TestCheckAccepts(t *testing.T) {
	p := newPlanner(t)
	tests := []struct {
		name string
		want string
	}{
		{"file.txt", "file.txt"},
		{"a/b/c.txt", "a/b/c.txt"},
		{`win\style\path.txt`, "win/style/path.txt"},
		{"./dot/./file", "dot/file"},
		{"a/../b.txt", "b.txt"},
		{"/abs/name.txt", "abs/name.txt"},
		{"..data/file", "..data/file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := p.Check(Entry{Name: tt.name})
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(p.Root(), filepath.FromSlash(tt.want)), target.Path)
			assert.Equal(t, tt.name, target.Entry.Name)
		})
	}
}

func TestCheckRejects(t *testing.T) {
	p := newPlanner(t)
	for _, name := range []string{
		"../evil.txt",
		"../../evil.txt",
		`..\..\evil.txt`,
		"a/../../evil.txt",
		"a/b/../../../evil.txt",
		"..",
		".",
		"",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.Check(Entry{Name: name})
			require.ErrorIs(t, err, ErrPathTraversal)

			var te *TraversalError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, name, te.Name)
			assert.Equal(t, p.Root(), te.Root)
		})
	}
}

func TestCheckDirectory(t *testing.T) {
	p := newPlanner(t)
	_, err := p.Check(Entry{Name: "some/dir/", IsDir: true})
	require.ErrorIs(t, err, ErrDirectoryEntry)
}

func TestPlanCreatesParents(t *testing.T) {
	p := newPlanner(t)
	target, err := p.Plan(Entry{Name: "deep/nested/dir/file.bin"})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Dir(target.Path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = os.Stat(target.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "the file itself is not created")
}

func TestPlanRejectedCreatesNothing(t *testing.T) {
	p := newPlanner(t)
	_, err := p.Plan(Entry{Name: "../outside/dir/evil.txt"})
	require.ErrorIs(t, err, ErrPathTraversal)

	_, err = os.Stat(filepath.Join(filepath.Dir(p.Root()), "outside"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestPlanConflicts(t *testing.T) {
	p := newPlanner(t)
	require.NoError(t, os.WriteFile(filepath.Join(p.Root(), "a"), []byte("file"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(p.Root(), "d", "sub"), 0o755))

	tests := []struct {
		name    string
		blocker string
	}{
		{"a/b.txt", "a"},
		{"a/deeper/b.txt", "a"},
		{"d/sub", "d/sub"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Plan(Entry{Name: tt.name})
			require.ErrorIs(t, err, ErrEntryConflict)
			var ce *ConflictError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, filepath.Join(p.Root(), filepath.FromSlash(tt.blocker)), ce.Blocker)
		})
	}

	_, err := p.Plan(Entry{Name: "d/sub/ok.txt"})
	require.NoError(t, err)
}

func TestNewPlannerResolvesSymlinkedRoot(t *testing.T) {
	real := t.TempDir()
	link := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	p, err := NewPlanner(link)
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(real)
	require.NoError(t, err)
	assert.Equal(t, want, p.Root())
}

func TestNewPlannerMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "not", "yet")
	p, err := NewPlanner(root)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p.Root(), filepath.Join("not", "yet")))
}

func TestContained(t *testing.T) {
	sep := string(filepath.Separator)
	root := sep + filepath.Join("data", "out")
	tests := []struct {
		path string
		fold bool
		want bool
	}{
		{root, false, true},
		{filepath.Join(root, "file"), false, true},
		{root + "side", false, false},
		{filepath.Join(sep+"data", "outside", "x"), false, false},
		{sep + "data", false, false},
		{strings.ToUpper(filepath.Join(root, "file")), false, false},
		{strings.ToUpper(filepath.Join(root, "file")), true, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Contained(root, tt.path, tt.fold))
		})
	}
}

func FuzzCheck(f *testing.F) {
	for _, seed := range []string{
		"file.txt", "../evil", `..\..\x`, "a/../../b", "/etc/passwd",
		"....//x", "a/./b/../../..", "C:\\windows\\x", "", ".", "..\\",
		"C:/x", "./", "a/b/../../..",
	} {
		f.Add(seed)
	}
	root := f.TempDir()
	p, err := NewPlanner(root)
	require.NoError(f, err)

	f.Fuzz(func(t *testing.T, name string) {
		target, err := p.Check(Entry{Name: name})
		if err != nil {
			require.ErrorIs(t, err, ErrPathTraversal)
			return
		}
		rel, err := filepath.Rel(p.Root(), target.Path)
		require.NoError(t, err)
		assert.False(t, rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)),
			"%q escaped to %s", name, target.Path)
		assert.True(t, filepath.IsAbs(target.Path))
	})
}
