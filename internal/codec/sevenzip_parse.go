package codec

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// splitProgress splits 7-Zip output on newlines, carriage returns and the
// backspaces it uses to redraw the percentage in place.
func splitProgress(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n\b"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var (
	percentLine = regexp.MustCompile(`^(\d{1,3})%(?:\s+\d+)?(?:\s+[+\-U=T]\s+(.+))?$`)
	fileLine    = regexp.MustCompile(`^[+\-]\s(.+)$`)
)

type progressLine struct {
	percent    float64
	hasPercent bool
	file       string
}

func parseProgressLine(line string) progressLine {
	line = strings.TrimSpace(line)
	if line == "" {
		return progressLine{}
	}
	if m := percentLine.FindStringSubmatch(line); m != nil {
		pct, _ := strconv.Atoi(m[1])
		return progressLine{percent: float64(pct), hasPercent: true, file: strings.TrimSpace(m[2])}
	}
	if m := fileLine.FindStringSubmatch(line); m != nil {
		return progressLine{file: strings.TrimSpace(m[1])}
	}
	return progressLine{}
}

// parseListing parses "7z l -slt" output into archive properties and entries.
func parseListing(out []byte) (map[string]string, []Entry) {
	const (
		preamble = iota
		archiveProps
		entryBlocks
	)
	props := make(map[string]string)
	var entries []Entry
	cur := map[string]string{}
	flush := func() {
		if len(cur) > 0 {
			if _, ok := cur["Path"]; ok {
				entries = append(entries, entryFromProps(cur))
			}
			cur = map[string]string{}
		}
	}

	state := preamble
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case line == "--" && state == preamble:
			state = archiveProps
			continue
		case strings.HasPrefix(line, "----------") && state != entryBlocks:
			state = entryBlocks
			continue
		}

		key, val, ok := strings.Cut(line, " = ")
		if !ok {
			key, ok = strings.CutSuffix(line, " =")
		}
		switch state {
		case archiveProps:
			if ok {
				props[key] = val
			}
		case entryBlocks:
			if strings.TrimSpace(line) == "" {
				flush()
				continue
			}
			if ok {
				cur[key] = val
			}
		}
	}
	flush()
	return props, entries
}

func entryFromProps(p map[string]string) Entry {
	e := Entry{
		Name:      p["Path"],
		Method:    p["Method"],
		Encrypted: p["Encrypted"] == "+",
		Unicode:   true,
	}
	e.Size, _ = strconv.ParseInt(p["Size"], 10, 64)
	e.Packed, _ = strconv.ParseInt(p["Packed Size"], 10, 64)
	attrs := p["Attributes"]
	e.IsDir = p["Folder"] == "+" || strings.HasPrefix(attrs, "D")
	if mod := p["Modified"]; len(mod) >= 19 {
		if t, err := time.ParseInLocation("2006-01-02 15:04:05", mod[:19], time.Local); err == nil {
			e.ModTime = t
		}
	}
	return e
}
