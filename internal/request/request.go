// Package request turns a single blocking storage primitive into a value
// that can be awaited.
//
// A Request settles exactly once, either resolved with a value or rejected
// with an error. Every caller of Await observes the same outcome. There is
// no retry and no transformation of the value; the package only moves the
// result of one operation from the goroutine that ran it to whoever waits.
package request

import (
	"context"
	"fmt"
	"sync"
)

// Request is the pending outcome of one asynchronous operation.
//
// The zero value is not usable; create requests with New or Go.
type Request[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

// New creates an unsettled request.
func New[T any]() *Request[T] {
	return &Request[T]{done: make(chan struct{})}
}

// Go runs fn on its own goroutine and returns a request that settles with
// fn's result. A panic inside fn rejects the request instead of crashing
// the process.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Request[T] {
	r := New[T]()
	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.Reject(fmt.Errorf("request panicked: %v", p))
			}
		}()
		v, err := fn(ctx)
		r.settle(v, err)
	}()
	return r
}

// Resolve settles the request with v. Returns false if it was already settled.
func (r *Request[T]) Resolve(v T) bool {
	return r.settle(v, nil)
}

// Reject settles the request with err. A nil err is replaced so that a
// rejection can never be mistaken for success.
// Returns false if the request was already settled.
func (r *Request[T]) Reject(err error) bool {
	if err == nil {
		err = fmt.Errorf("request rejected without cause")
	}
	var zero T
	return r.settle(zero, err)
}

func (r *Request[T]) settle(v T, err error) bool {
	settled := false
	r.once.Do(func() {
		r.val = v
		r.err = err
		settled = true
		close(r.done)
	})
	return settled
}

// Done returns a channel closed once the request settles.
func (r *Request[T]) Done() <-chan struct{} {
	return r.done
}

// Settled reports whether the request has settled, without blocking.
func (r *Request[T]) Settled() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Await blocks until the request settles or ctx is done.
//
// Cancelling ctx only stops this wait; the underlying operation keeps
// running and still settles the request for other waiters. A request that
// has already settled reports its outcome even if ctx is done.
func (r *Request[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-r.done:
		return r.val, r.err
	case <-ctx.Done():
		select {
		case <-r.done:
			return r.val, r.err
		default:
		}
		var zero T
		return zero, ctx.Err()
	}
}
