// Package notify delivers notification intents produced by the production
// fan-out (and anything else that wants to tell a user something) to the
// configured sinks: the persisted inbox, a chat channel and email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/floorboard/internal/production"
)

const (
	defaultAttempts = 3
	defaultBackoff  = 500 * time.Millisecond
)

// Message is one notification for one user.
type Message struct {
	UserID string
	Text   string
	Kind   string
	TaskID string
}

// FromIntents converts fan-out intents into messages.
func FromIntents(intents []production.NotificationIntent) []Message {
	out := make([]Message, 0, len(intents))
	for _, in := range intents {
		out = append(out, Message{UserID: in.UserID, Text: in.Message, Kind: in.Kind, TaskID: in.TaskID})
	}
	return out
}

// Sink delivers a message through one channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, msg Message) error
}

// TemporaryError marks a delivery failure worth retrying.
type TemporaryError struct {
	Err error
}

func (e *TemporaryError) Error() string { return "temporary: " + e.Err.Error() }
func (e *TemporaryError) Unwrap() error { return e.Err }

// Temporary wraps err as retryable. A nil err stays nil.
func Temporary(err error) error {
	if err == nil {
		return nil
	}
	return &TemporaryError{Err: err}
}

// IsTemporary reports whether err, or anything it wraps, is retryable.
func IsTemporary(err error) bool {
	var te *TemporaryError
	return errors.As(err, &te)
}

// Failure is one message a sink could not deliver.
type Failure struct {
	Sink     string
	Message  Message
	Attempts int
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("notify: %s to %s after %d attempt(s): %v", f.Sink, f.Message.UserID, f.Attempts, f.Err)
}

// Report summarises one Execute call.
type Report struct {
	Delivered int
	Failed    []Failure
}

// OK reports whether every delivery succeeded.
func (r Report) OK() bool { return len(r.Failed) == 0 }

// Opts holds parameters for creating a Dispatcher.
type Opts struct {
	Sinks       []Sink
	MaxAttempts int           // per message per sink; default 3
	Backoff     time.Duration // doubled after each temporary failure; default 500ms
	Logger      zerolog.Logger
}

// Dispatcher fans messages out to every sink.
type Dispatcher struct {
	sinks    []Sink
	attempts int
	backoff  time.Duration
	logger   zerolog.Logger
}

// NewDispatcher creates a Dispatcher. Nil sinks are skipped.
func NewDispatcher(opts Opts) *Dispatcher {
	d := &Dispatcher{
		attempts: opts.MaxAttempts,
		backoff:  opts.Backoff,
		logger:   opts.Logger,
	}
	if d.attempts <= 0 {
		d.attempts = defaultAttempts
	}
	if d.backoff <= 0 {
		d.backoff = defaultBackoff
	}
	for _, s := range opts.Sinks {
		if s != nil {
			d.sinks = append(d.sinks, s)
		}
	}
	return d
}

// Sinks returns the names of the configured sinks.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Execute delivers every message to every sink. Permanent failures are not
// retried; temporary ones are retried with backoff up to MaxAttempts. Nothing
// here is fatal: failures are logged and returned in the Report.
func (d *Dispatcher) Execute(ctx context.Context, msgs []Message) Report {
	var rep Report
	for _, msg := range msgs {
		for _, sink := range d.sinks {
			n, err := d.deliver(ctx, sink, msg)
			if err == nil {
				rep.Delivered++
				continue
			}
			f := Failure{Sink: sink.Name(), Message: msg, Attempts: n, Err: err}
			d.logger.Warn().Err(err).
				Str("sink", f.Sink).
				Str("userId", msg.UserID).
				Str("taskId", msg.TaskID).
				Int("attempts", n).
				Msg("notification delivery failed")
			rep.Failed = append(rep.Failed, f)
		}
	}
	return rep
}

// ExecuteIntents is Execute for fan-out intents.
func (d *Dispatcher) ExecuteIntents(ctx context.Context, intents []production.NotificationIntent) Report {
	return d.Execute(ctx, FromIntents(intents))
}

func (d *Dispatcher) deliver(ctx context.Context, sink Sink, msg Message) (int, error) {
	wait := d.backoff
	var err error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		err = sink.Deliver(ctx, msg)
		if err == nil || !IsTemporary(err) || attempt == d.attempts {
			return attempt, err
		}
		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return d.attempts, err
}
