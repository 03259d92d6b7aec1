package executor

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Strand serializes tasks on top of a Pool: tasks posted to one strand never
// run concurrently and run in posting order. Different strands proceed in
// parallel on the shared workers.
type Strand struct {
	pool *Pool
	name string

	mu      sync.Mutex
	queue   []Task
	running bool
}

// NewStrand creates a strand bound to pool. name labels log entries.
func NewStrand(pool *Pool, name string) *Strand {
	return &Strand{pool: pool, name: name}
}

// Post queues task behind every task previously posted to this strand.
// Post never runs the task inline, so it is safe to call from inside a task.
func (s *Strand) Post(task Task) {
	s.mu.Lock()
	s.queue = append(s.queue, task)
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	if err := s.pool.Submit(s.drain); err != nil {
		s.mu.Lock()
		dropped := len(s.queue)
		s.queue = nil
		s.running = false
		s.mu.Unlock()

		logrus.WithFields(logrus.Fields{
			"function": "Strand.Post",
			"strand":   s.name,
			"dropped":  dropped,
			"error":    err.Error(),
		}).Warn("Strand tasks dropped, executor unavailable")
	}
}

// drain runs queued tasks until the queue is empty
func (s *Strand) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		task := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.pool.run(-1, task)
	}
}

// Pending returns the number of tasks waiting on the strand
func (s *Strand) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Name returns the label given at construction
func (s *Strand) Name() string {
	return s.name
}
