// Package extract maps archive entry names onto filesystem targets and
// refuses any name that would land outside the destination root.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var (
	// ErrPathTraversal marks an entry whose resolved path escapes the root.
	ErrPathTraversal = errors.New("entry escapes destination")
	// ErrDirectoryEntry marks a directory entry, which produces no target.
	ErrDirectoryEntry = errors.New("directory entry")
	// ErrEntryConflict marks an entry whose target or one of its parents is
	// already taken by an entry of the other type.
	ErrEntryConflict = errors.New("entry conflicts with an existing path")
)

// ConflictError names the path that blocks an entry.
type ConflictError struct {
	Name    string
	Blocker string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflicts with existing %s", e.Name, e.Blocker)
}

func (e *ConflictError) Unwrap() error { return ErrEntryConflict }

// TraversalError reports a rejected entry name and where it resolved to.
type TraversalError struct {
	Name     string
	Resolved string
	Root     string
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("rejected %q: resolves to %s, outside %s", e.Name, e.Resolved, e.Root)
}

func (e *TraversalError) Unwrap() error { return ErrPathTraversal }

// Entry is the part of an archive entry the planner needs.
type Entry struct {
	Name  string
	IsDir bool
}

// Target is an accepted file entry and its absolute on-disk path.
type Target struct {
	Path  string
	Entry Entry
}

// Planner resolves entry names against one canonical destination root.
type Planner struct {
	root     string
	foldCase bool
}

// NewPlanner canonicalises root: absolute, cleaned, and with symlinks
// resolved when it already exists.
func NewPlanner(root string) (*Planner, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving destination %s: %w", root, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("resolving destination %s: %w", root, err)
	}
	return &Planner{root: filepath.Clean(abs), foldCase: caseInsensitiveFS()}, nil
}

// Root returns the canonical destination root.
func (p *Planner) Root() string { return p.root }

// Resolve returns the cleaned absolute path an entry name maps to, without
// checking containment. Both separators are treated as path separators.
func (p *Planner) Resolve(name string) string {
	n := strings.ReplaceAll(name, `\`, "/")
	return filepath.Clean(filepath.Join(p.root, filepath.FromSlash(n)))
}

// Check validates an entry without touching the filesystem.
func (p *Planner) Check(e Entry) (Target, error) {
	if e.IsDir {
		return Target{}, ErrDirectoryEntry
	}
	resolved := p.Resolve(e.Name)
	if resolved == p.root || !p.contained(resolved) {
		return Target{}, &TraversalError{Name: e.Name, Resolved: resolved, Root: p.root}
	}
	return Target{Path: resolved, Entry: e}, nil
}

// Plan validates an entry and creates the directories leading to it. A file
// standing where a parent directory must go, or a directory standing at the
// target itself, yields a *ConflictError.
func (p *Planner) Plan(e Entry) (Target, error) {
	t, err := p.Check(e)
	if err != nil {
		return Target{}, err
	}
	if fi, err := os.Stat(t.Path); err == nil && fi.IsDir() {
		return Target{}, &ConflictError{Name: e.Name, Blocker: t.Path}
	}
	if err := os.MkdirAll(filepath.Dir(t.Path), 0o755); err != nil {
		if blocker := p.fileAncestor(t.Path); blocker != "" {
			return Target{}, &ConflictError{Name: e.Name, Blocker: blocker}
		}
		return Target{}, fmt.Errorf("creating parent of %s: %w", t.Path, err)
	}
	return t, nil
}

// fileAncestor returns the nearest ancestor of path below the root that
// exists and is not a directory.
func (p *Planner) fileAncestor(path string) string {
	for dir := filepath.Dir(path); dir != p.root && p.contained(dir); dir = filepath.Dir(dir) {
		if fi, err := os.Stat(dir); err == nil && !fi.IsDir() {
			return dir
		}
	}
	return ""
}

func (p *Planner) contained(path string) bool {
	return Contained(p.root, path, p.foldCase)
}

// Contained reports whether path equals root or lies beneath it. The
// comparison is separator-aware so /data/out never contains /data/outside.
func Contained(root, path string, foldCase bool) bool {
	if foldCase {
		root = strings.ToLower(root)
		path = strings.ToLower(path)
	}
	if path == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}

func caseInsensitiveFS() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}
