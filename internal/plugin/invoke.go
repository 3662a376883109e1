package plugin

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

// ErrPanic wraps a recovered panic raised by plugin code.
var ErrPanic = errors.New("plugin panicked")

// PanicError is returned by Guard when fn panicked. The stack is kept for
// logs and is not part of Error.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%v: %v", ErrPanic, e.Value)
}

// Unwrap makes errors.Is(err, ErrPanic) hold.
func (e *PanicError) Unwrap() error {
	return ErrPanic
}

// Guard runs fn under timeout, converting panics into errors. When the
// deadline passes Guard returns immediately with timedOut set even if fn has
// not returned; fn keeps its cancelled context and its result is discarded.
// A non-positive timeout only inherits the deadline of ctx.
func Guard[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (result T, timedOut bool, err error) {
	callCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &PanicError{Value: r, Stack: debug.Stack()}}
			}
		}()
		v, err := fn(callCtx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && errors.Is(out.err, context.DeadlineExceeded) {
			return result, true, out.err
		}
		return out.value, false, out.err
	case <-callCtx.Done():
		return result, errors.Is(callCtx.Err(), context.DeadlineExceeded), callCtx.Err()
	}
}
