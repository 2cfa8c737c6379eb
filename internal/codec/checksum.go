package codec

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/zeebo/blake3"
)

// HashFile computes the BLAKE3 digest of the file at path, hex-encoded.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()
	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// counter accumulates byte counts and reports them as a percentage of total.
type counter struct {
	mu    sync.Mutex
	total int64
	done  int64
	cb    Callbacks
}

func (c *counter) add(n int) {
	if n <= 0 || c.total <= 0 {
		return
	}
	c.mu.Lock()
	c.done += int64(n)
	pct := float64(c.done) / float64(c.total) * 100
	c.mu.Unlock()
	c.cb.progress(pct)
}
