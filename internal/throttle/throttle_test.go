package throttle

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLimiter(t *testing.T) {
	t.Parallel()

	t.Run("disabled for zero", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, NewLimiter(0))
		assert.Nil(t, NewLimiter(-1))
	})

	t.Run("burst capped to rate when rate < 1MB", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 1024, NewLimiter(1024).Burst())
	})

	t.Run("burst is 1MB when rate >= 1MB", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 1<<20, NewLimiter(10*1024*1024).Burst())
	})
}

func TestWriterNilLimiterPassesThrough(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	assert.Same(t, &buf, Writer(context.Background(), &buf, nil))
}

func TestWriterLargerThanBurst(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := Writer(context.Background(), &buf, NewLimiter(1<<20))

	data := bytes.Repeat([]byte("z"), 3<<20/2)
	start := time.Now()
	n, err := w.Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, buf.Bytes())
	assert.Greater(t, time.Since(start), 300*time.Millisecond, "second chunk waits for refill")
}

func TestWriterEnforcesRate(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := Writer(context.Background(), &buf, NewLimiter(5*1024))

	start := time.Now()
	for range 10 {
		_, err := w.Write(bytes.Repeat([]byte("a"), 1024))
		require.NoError(t, err)
	}
	assert.Equal(t, 10*1024, buf.Len())
	assert.Greater(t, time.Since(start), 500*time.Millisecond)
}

func TestWriterRespectsCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	var buf bytes.Buffer
	w := Writer(ctx, &buf, NewLimiter(1024))
	cancel()

	_, err := w.Write(bytes.Repeat([]byte("b"), 64*1024))
	require.Error(t, err)
	assert.Less(t, buf.Len(), 64*1024)
}
