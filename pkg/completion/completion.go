package completion

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

var (
	ErrTimeout = errors.New("completion timed out")
	ErrPanic   = errors.New("completion panicked")
)

// Completion bridges a callback-driven API into a value that is resumed
// exactly once. Later Resolve calls are ignored, so a result callback racing
// a timeout or a cancellation is harmless.
type Completion[T any] struct {
	resumed atomic.Bool
	done    chan struct{}
	val     T
}

func New[T any]() *Completion[T] {
	return &Completion[T]{done: make(chan struct{})}
}

// Resolve stores v and wakes the waiter. It reports whether this call was the
// one that resumed the completion.
func (c *Completion[T]) Resolve(v T) bool {
	if !c.resumed.CompareAndSwap(false, true) {
		return false
	}
	c.val = v
	close(c.done)
	return true
}

func (c *Completion[T]) Done() <-chan struct{} {
	return c.done
}

func (c *Completion[T]) Resolved() bool {
	return c.resumed.Load()
}

// Value blocks until the completion is resolved and returns the value. A
// caller whose Resolve lost the race gets the winner's value.
func (c *Completion[T]) Value() T {
	<-c.done
	return c.val
}

// Wait blocks until the completion is resolved or ctx ends.
func (c *Completion[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		return c.val, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

type result[T any] struct {
	val T
	err error
}

// Run calls fn on its own goroutine and waits at most timeout for it. fn gets
// a context that is canceled when Run returns, but Run does not depend on fn
// honoring it: a stuck fn is abandoned and ErrTimeout is returned. A panic in
// fn is returned as ErrPanic.
func Run[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := New[result[T]]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.Resolve(result[T]{err: fmt.Errorf("%w: %v", ErrPanic, r)})
			}
		}()
		v, err := fn(rctx)
		c.Resolve(result[T]{val: v, err: err})
	}()

	select {
	case <-c.Done():
		r := c.Value()
		return r.val, r.err
	case <-rctx.Done():
		var zero T
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, ErrTimeout
	}
}
