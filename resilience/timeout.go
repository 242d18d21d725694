package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Timeout bounds each operation with a deadline.
type Timeout struct {
	d time.Duration
}

// NewTimeout creates a timeout wrapper. Non-positive durations default to 30s.
func NewTimeout(d time.Duration) *Timeout {
	if d <= 0 {
		d = 30 * time.Second
	}
	return &Timeout{d: d}
}

// Duration returns the configured timeout.
func (t *Timeout) Duration() time.Duration { return t.d }

// Execute runs op with a derived deadline and returns as soon as either op
// finishes or the deadline passes. An op that ignores its context keeps
// running in the background after Execute returns.
//
// A timeout is reported as ErrTimeout, which does not match
// context.DeadlineExceeded. Errors of the parent context pass through.
func (t *Timeout) Execute(parent context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, t.d)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		if err != nil && parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrTimeout, t.d)
		}
		return err
	case <-ctx.Done():
		if err := parent.Err(); err != nil {
			return err
		}
		return fmt.Errorf("%w after %s", ErrTimeout, t.d)
	}
}

// IsContextError reports whether err came from context cancellation or a
// deadline.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
