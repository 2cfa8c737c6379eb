// Package event defines the messages an archive operation streams to its
// consumer: text lines, progress updates and one terminal outcome.
package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	Text Type = iota + 1
	Progress
	Error
	Completed
)

var typeNames = [...]string{
	Text:      "Text",
	Progress:  "Progress",
	Error:     "Error",
	Completed: "Completed",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Terminal reports whether the type ends an event stream.
func (t Type) Terminal() bool {
	return t == Error || t == Completed
}

// FinishedStatus is the status carried by the terminal Completed event.
const FinishedStatus = "Finished"

// Event is one message from a running archive operation to its consumer.
type Event struct {
	Type      Type
	Timestamp time.Time
	Message   string  // Text
	Percent   float64 // Progress, Completed (0-100)
	Status    string  // Progress, Completed
	Err       error   // Error
}

// NewText builds a Text event stamped with the current time.
func NewText(msg string) Event {
	return Event{Type: Text, Timestamp: time.Now(), Message: msg}
}

// NewProgress builds a Progress event. Percent is clamped to [0, 100].
func NewProgress(pct float64, status string) Event {
	return Event{Type: Progress, Timestamp: time.Now(), Percent: clamp(pct), Status: status}
}

func NewError(err error) Event {
	return Event{Type: Error, Timestamp: time.Now(), Err: err}
}

// NewCompleted builds the terminal success event.
func NewCompleted() Event {
	return Event{Type: Completed, Timestamp: time.Now(), Percent: 100, Status: FinishedStatus}
}

func clamp(pct float64) float64 {
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}
