package filter

import (
	"regexp"
	"strings"
)

// pattern is a compiled glob matched against slash-separated archive names.
type pattern struct {
	re       *regexp.Regexp
	original string
	anchored bool // matches from the archive root rather than any suffix
	dirOnly  bool // trailing slash: directories only
}

// compile converts a glob into a matcher. A leading slash, or any slash
// inside the glob, anchors it to the archive root; otherwise it matches the
// base name or any path suffix. foldCase makes the match case-insensitive.
func compile(glob string, foldCase bool) (*pattern, error) {
	p := &pattern{original: glob}

	g := strings.ReplaceAll(glob, `\`, "/")
	if strings.HasSuffix(g, "/") {
		p.dirOnly = true
		g = strings.TrimRight(g, "/")
	}
	if strings.HasPrefix(g, "/") {
		p.anchored = true
		g = strings.TrimLeft(g, "/")
	} else if strings.Contains(g, "/") {
		p.anchored = true
	}

	expr := globToRegex(g)
	if p.anchored {
		expr = "^" + expr + "$"
	} else {
		expr = "(^|/)" + expr + "$"
	}
	if foldCase {
		expr = "(?i)" + expr
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	p.re = re
	return p, nil
}

func (p *pattern) match(name string, isDir bool) bool {
	if p.dirOnly && !isDir {
		return false
	}
	return p.re.MatchString(strings.TrimSuffix(name, "/"))
}

// globToRegex translates * (within a segment), ** (across segments), ?, and
// [classes] with ! negation. Everything else is literal.
//
//nolint:gocyclo,revive // character-by-character glob parser
func globToRegex(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); {
		c := glob[i]
		switch c {
		case '*':
			switch {
			case strings.HasPrefix(glob[i:], "**/"):
				b.WriteString("(.*/)?")
				i += 3
			case strings.HasPrefix(glob[i:], "**"):
				b.WriteString(".*")
				i += 2
			default:
				b.WriteString("[^/]*")
				i++
			}
		case '?':
			b.WriteString("[^/]")
			i++
		case '[':
			end := classEnd(glob, i)
			if end < 0 {
				b.WriteString(`\[`)
				i++
				continue
			}
			cls := glob[i+1 : end]
			if strings.HasPrefix(cls, "!") {
				cls = "^" + cls[1:]
			}
			b.WriteString("[" + strings.ReplaceAll(cls, `\`, `\\`) + "]")
			i = end + 1
		default:
			if strings.IndexByte(`.+()|{}^$\`, c) >= 0 {
				b.WriteByte('\\')
			}
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// classEnd returns the index of the ']' closing the class opened at i, or -1.
func classEnd(glob string, i int) int {
	j := i + 1
	if j < len(glob) && glob[j] == '!' {
		j++
	}
	if j < len(glob) && glob[j] == ']' {
		j++
	}
	for j < len(glob) && glob[j] != ']' {
		j++
	}
	if j >= len(glob) {
		return -1
	}
	return j
}
