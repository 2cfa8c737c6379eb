// Package filter decides which files go into an archive and which entries
// come out of one.
package filter

import "fmt"

type rule struct {
	pat     *pattern
	include bool
}

// Chain is an ordered rule list plus an optional name pattern and size bounds.
// The zero value matches everything.
type Chain struct {
	names    *pattern // applied to file base names only
	rules    []rule
	minSize  int64
	maxSize  int64
	foldCase bool
}

// NewChain creates an empty chain. With foldCase set, every pattern added
// afterwards matches case-insensitively.
func NewChain(foldCase bool) *Chain {
	return &Chain{foldCase: foldCase}
}

// SetNamePattern restricts files to those whose base name matches glob,
// like a shell wildcard ("*.txt"). Directories are never excluded by it so
// recursion still reaches matching files below them. "" and "*" clear it.
func (c *Chain) SetNamePattern(glob string) error {
	if glob == "" || glob == "*" {
		c.names = nil
		return nil
	}
	p, err := compile(glob, c.foldCase)
	if err != nil {
		return fmt.Errorf("name pattern %q: %w", glob, err)
	}
	c.names = p
	return nil
}

// AddExclude adds an exclude rule.
func (c *Chain) AddExclude(glob string) error {
	return c.add(glob, false)
}

// AddInclude adds an include rule.
func (c *Chain) AddInclude(glob string) error {
	return c.add(glob, true)
}

func (c *Chain) add(glob string, include bool) error {
	p, err := compile(glob, c.foldCase)
	if err != nil {
		return fmt.Errorf("pattern %q: %w", glob, err)
	}
	c.rules = append(c.rules, rule{pat: p, include: include})
	return nil
}

// SetMinSize sets the minimum file size.
func (c *Chain) SetMinSize(n int64) { c.minSize = n }

// SetMaxSize sets the maximum file size.
func (c *Chain) SetMaxSize(n int64) { c.maxSize = n }

// Empty reports whether the chain lets everything through.
func (c *Chain) Empty() bool {
	return c == nil || (c.names == nil && len(c.rules) == 0 && c.minSize == 0 && c.maxSize == 0)
}

// Match reports whether name (slash-separated, relative to the archive or
// source root) should be kept. Rules are checked in order and the first
// match wins; an unmatched name is kept if it passes the name pattern and
// size bounds.
func (c *Chain) Match(name string, isDir bool, size int64) bool {
	if c == nil {
		return true
	}
	for _, r := range c.rules {
		if r.pat.match(name, isDir) {
			return r.include
		}
	}
	if isDir {
		return true
	}
	if c.minSize > 0 && size < c.minSize {
		return false
	}
	if c.maxSize > 0 && size > c.maxSize {
		return false
	}
	if c.names != nil && !c.names.match(name, false) {
		return false
	}
	return true
}
