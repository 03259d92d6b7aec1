package messenger

import (
	"context"
	"sync"
)

// Promise is a one-shot completion signal for a send. It settles exactly once,
// either resolved or rejected with an error; later settle calls are ignored.
type Promise struct {
	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	err       error
	onSuccess []func()
	onFailure []func(error)
}

// NewPromise creates an unsettled promise
func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Then registers continuations. Either may be nil. If the promise has already
// settled the matching continuation runs immediately on the caller's goroutine.
func (p *Promise) Then(onSuccess func(), onFailure func(error)) *Promise {
	p.mu.Lock()
	if !p.settled {
		if onSuccess != nil {
			p.onSuccess = append(p.onSuccess, onSuccess)
		}
		if onFailure != nil {
			p.onFailure = append(p.onFailure, onFailure)
		}
		p.mu.Unlock()
		return p
	}
	err := p.err
	p.mu.Unlock()

	if err == nil && onSuccess != nil {
		onSuccess()
	} else if err != nil && onFailure != nil {
		onFailure(err)
	}
	return p
}

// Resolve settles the promise successfully
func (p *Promise) Resolve() bool {
	return p.settle(nil)
}

// Reject settles the promise with err
func (p *Promise) Reject(err error) bool {
	if err == nil {
		err = ErrTransportFailure
	}
	return p.settle(err)
}

func (p *Promise) settle(err error) bool {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return false
	}
	p.settled = true
	p.err = err
	onSuccess, onFailure := p.onSuccess, p.onFailure
	p.onSuccess, p.onFailure = nil, nil
	close(p.done)
	p.mu.Unlock()

	if err == nil {
		for _, fn := range onSuccess {
			fn()
		}
		return true
	}
	for _, fn := range onFailure {
		fn(err)
	}
	return true
}

// Done is closed once the promise settles
func (p *Promise) Done() <-chan struct{} {
	return p.done
}

// Err returns the rejection error, or nil while pending or after success
func (p *Promise) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Settled reports whether the promise has resolved or rejected
func (p *Promise) Settled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settled
}

// Wait blocks until the promise settles or ctx ends
func (p *Promise) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
