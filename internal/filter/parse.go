package filter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadFile reads rules from a list file and appends them to the chain.
// A line "- pattern" excludes and "+ pattern" includes; a bare pattern
// excludes and lines starting with "#" are comments.
func (c *Chain) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open filter file: %w", err)
	}
	defer f.Close()

	if err := c.Load(f); err != nil {
		return fmt.Errorf("filter file %s: %w", path, err)
	}
	return nil
}

// Load reads rules from r in the LoadFile syntax.
func (c *Chain) Load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		include := false
		glob := text
		switch {
		case strings.HasPrefix(text, "+ "):
			include = true
			glob = strings.TrimSpace(text[2:])
		case strings.HasPrefix(text, "- "):
			glob = strings.TrimSpace(text[2:])
		}

		if err := c.add(glob, include); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return scanner.Err()
}
