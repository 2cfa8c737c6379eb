package filter

import (
	"fmt"
	"strconv"
	"strings"
)

var sizeUnits = map[string]int64{
	"":  1,
	"b": 1,
	"k": 1 << 10,
	"m": 1 << 20,
	"g": 1 << 30,
	"t": 1 << 40,
}

// ParseSize parses sizes such as "700m", "4.7G", "1.44MB", "512KiB" or "100"
// into bytes. Units are powers of 1024 and case-insensitive.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	lower := strings.ToLower(s)
	lower = strings.TrimSuffix(lower, "ib")
	if len(lower) > 1 && strings.HasSuffix(lower, "b") && strings.ContainsAny(lower[len(lower)-2:len(lower)-1], "kmgt") {
		lower = strings.TrimSuffix(lower, "b")
	}

	split := len(lower)
	for split > 0 && (lower[split-1] < '0' || lower[split-1] > '9') && lower[split-1] != '.' {
		split--
	}
	num, unit := lower[:split], lower[split:]

	mult, ok := sizeUnits[unit]
	if !ok || num == "" {
		return 0, fmt.Errorf("invalid size: %q", s)
	}

	if n, err := strconv.ParseInt(num, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("invalid size: %q", s)
		}
		return n * mult, nil
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid size: %q", s)
	}
	return int64(f * float64(mult)), nil
}
