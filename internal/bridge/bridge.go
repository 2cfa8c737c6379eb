// Package bridge runs one long archive operation on a background goroutine
// and relays its text, progress and terminal events to a synchronous
// consumer over a single ordered channel.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/bamsammich/arc7/internal/event"
)

const defaultBuffer = 256

// ErrCancelled is returned by Drain once the handle has been cancelled, and
// wraps the error of an operation whose context was cancelled.
var ErrCancelled = errors.New("operation cancelled")

// ErrPanic wraps a panic recovered from an operation.
var ErrPanic = errors.New("operation panicked")

// State is the lifecycle state of a Handle.
type State int32

const (
	Created State = iota
	Running
	Completed
	Failed
	Cancelled
)

var stateNames = [...]string{"Created", "Running", "Completed", "Failed", "Cancelled"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Sink receives non-terminal events.
type Sink interface {
	Text(msg string)
	Progress(percent float64, status string)
}

// Operation is the work run on the background goroutine. It reports through
// emit, which is safe to call until the operation returns.
type Operation func(ctx context.Context, emit Sink) error

// Option configures Start.
type Option func(*options)

type options struct {
	buffer int
	logger *slog.Logger
}

// WithBuffer sets the event channel capacity.
func WithBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.buffer = n
		}
	}
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Handle is one running operation.
type Handle struct {
	id     string
	logger *slog.Logger
	events chan event.Event
	cancel context.CancelFunc
	state  atomic.Int32

	released    chan struct{}
	releaseOnce sync.Once
	done        chan struct{}

	mu     sync.Mutex // serialises sends with close
	closed bool
	err    error
}

// Start launches op on a new goroutine and returns its handle. The
// operation's context is derived from ctx.
func Start(ctx context.Context, op Operation, opts ...Option) *Handle {
	o := options{buffer: defaultBuffer, logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		id:       uuid.NewString(),
		events:   make(chan event.Event, o.buffer),
		cancel:   cancel,
		released: make(chan struct{}),
		done:     make(chan struct{}),
	}
	h.logger = o.logger.With("op", h.id)
	h.state.Store(int32(Running))
	h.logger.Debug("operation started")
	go func() {
		defer cancel()
		err := h.run(ctx, op)
		h.finish(ctx, err)
	}()
	return h
}

func (h *Handle) run(ctx context.Context, op Operation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return op(ctx, emitter{h})
}

// finish publishes the terminal event, closes the channel and records the
// final state.
func (h *Handle) finish(ctx context.Context, err error) {
	h.mu.Lock()
	final := Completed
	switch {
	case h.isReleased():
		final = Cancelled
	case err == nil:
		h.deliver(event.NewCompleted())
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled):
		final = Cancelled
		err = fmt.Errorf("%w: %w", ErrCancelled, err)
		h.deliver(event.NewError(err))
	default:
		final = Failed
		h.deliver(event.NewError(err))
	}
	h.err = err
	h.closed = true
	close(h.events)
	h.mu.Unlock()

	// A cancelled handle keeps Cancelled even if the CAS in Cancel lost.
	if !h.state.CompareAndSwap(int32(Running), int32(final)) && final == Cancelled {
		h.state.Store(int32(Cancelled))
	}
	h.logger.Debug("operation finished", "state", h.State(), "error", err)
	close(h.done)
}

func (h *Handle) send(ev event.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.isReleased() {
		return
	}
	h.deliver(ev)
}

// deliver must be called with mu held.
func (h *Handle) deliver(ev event.Event) {
	select {
	case h.events <- ev:
	case <-h.released:
	}
}

func (h *Handle) isReleased() bool {
	select {
	case <-h.released:
		return true
	default:
		return false
	}
}

// ID returns the handle's unique identifier.
func (h *Handle) ID() string { return h.id }

// Events returns the ordered event stream. It is closed after the terminal
// event, or without one when the handle is cancelled.
func (h *Handle) Events() <-chan event.Event { return h.events }

// State returns the current lifecycle state.
func (h *Handle) State() State { return State(h.state.Load()) }

// Err returns the operation's error once it has finished.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Cancel requests cooperative cancellation and releases the consumer
// immediately. Work already done is not rolled back.
func (h *Handle) Cancel() {
	h.releaseOnce.Do(func() {
		close(h.released)
		h.cancel()
		if h.state.CompareAndSwap(int32(Running), int32(Cancelled)) {
			h.logger.Debug("operation cancelled")
		}
	})
}

// Done is closed when the worker goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the worker goroutine has exited.
func (h *Handle) Wait() { <-h.done }

// Drain consumes events in order, passing text and progress to sink. It
// returns nil on completion, the operation's error on failure, or
// ErrCancelled once the handle is cancelled.
func (h *Handle) Drain(sink Sink) error {
	for {
		if h.isReleased() {
			return ErrCancelled
		}
		select {
		case <-h.released:
			return ErrCancelled
		case ev, ok := <-h.events:
			if !ok {
				<-h.done
				if h.State() == Cancelled {
					return ErrCancelled
				}
				return h.Err()
			}
			if h.isReleased() {
				return ErrCancelled
			}
			switch ev.Type {
			case event.Text:
				sink.Text(ev.Message)
			case event.Progress:
				sink.Progress(ev.Percent, ev.Status)
			case event.Error:
				<-h.done
				return ev.Err
			case event.Completed:
				sink.Progress(ev.Percent, ev.Status)
				<-h.done
				return nil
			}
		}
	}
}

type emitter struct{ h *Handle }

func (e emitter) Text(msg string) { e.h.send(event.NewText(msg)) }

func (e emitter) Progress(pct float64, status string) {
	e.h.send(event.NewProgress(pct, status))
}
