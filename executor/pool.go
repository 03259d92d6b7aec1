// Package executor provides the I/O execution context of the messenger: a fixed
// pool of worker goroutines and strands that serialize work on top of it.
package executor

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrPoolClosed is returned when submitting to a stopped pool
var ErrPoolClosed = errors.New("executor pool closed")

// Task is a unit of work run by a pool worker
type Task func()

// Pool runs tasks on a fixed number of worker goroutines.
// It is safe for concurrent use.
type Pool struct {
	tasks  chan Task
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines draining a queue of the given depth.
// The pool stops when ctx is cancelled or Stop is called.
func NewPool(ctx context.Context, workers, depth int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if depth < 1 {
		depth = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)
	p := &Pool{
		tasks:  make(chan Task, depth),
		group:  group,
		ctx:    gctx,
		cancel: cancel,
	}

	for i := 0; i < workers; i++ {
		id := i
		group.Go(func() error {
			return p.work(id)
		})
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewPool",
		"workers":  workers,
		"depth":    depth,
	}).Debug("Executor pool started")

	return p
}

func (p *Pool) work(id int) error {
	for {
		select {
		case <-p.ctx.Done():
			return nil
		case task, ok := <-p.tasks:
			if !ok {
				return nil
			}
			p.run(id, task)
		}
	}
}

func (p *Pool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Pool.run",
				"worker":   id,
				"panic":    r,
			}).Error("Recovered panic in executor task")
		}
	}()
	task()
}

// Submit queues a task. It blocks while the queue is full and fails once the
// pool is stopped.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// Stop cancels the workers and waits for them to exit. Queued tasks that did
// not start are dropped.
func (p *Pool) Stop() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	err := p.group.Wait()

	logrus.WithFields(logrus.Fields{
		"function": "Pool.Stop",
	}).Debug("Executor pool stopped")

	return err
}

// Context returns the pool's lifetime context
func (p *Pool) Context() context.Context {
	return p.ctx
}
