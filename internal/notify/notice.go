package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Level classifies how a renderer should present a notice.
type Level string

// Supported notice levels.
const (
	LevelLoading Level = "loading"
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a single transient message for the operator.
type Notice struct {
	// ID uniquely identifies the notice; the hub assigns one when empty.
	ID string `json:"id"`
	// Key groups notices that replace each other (e.g. crawl progress followed
	// by crawl success). Empty keys never replace.
	Key string `json:"key,omitempty"`
	// Level is the presentation class.
	Level Level `json:"level"`
	// Operation names the dashboard operation that raised the notice.
	Operation string `json:"operation,omitempty"`
	// Message is the human-readable text.
	Message string `json:"message"`
	// Err optionally carries the underlying error text.
	Err string `json:"error,omitempty"`
	// TS is when the notice was raised.
	TS time.Time `json:"ts"`
}

// Validate performs coarse validation on a notice.
func (n Notice) Validate() error {
	switch n.Level {
	case LevelLoading, LevelInfo, LevelSuccess, LevelWarning, LevelError:
	default:
		return fmt.Errorf("unknown level %q", n.Level)
	}
	if n.Message == "" {
		return errors.New("message is required")
	}
	if n.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	return nil
}

// Emitter publishes individual notices.
type Emitter interface {
	Emit(n Notice)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Notice)

// Emit calls f(n).
func (f EmitterFunc) Emit(n Notice) {
	f(n)
}

// Discard drops every notice.
var Discard Emitter = EmitterFunc(func(Notice) {})

// Sink consumes batches of notices. Implementations must honor ctx deadlines
// and tolerate repeated calls.
type Sink interface {
	Consume(ctx context.Context, batch []Notice) error
	Close(ctx context.Context) error
}
