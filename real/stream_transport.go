package real

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/headunit/interfaces"
)

// ErrTransportClosed is reported for frames sent after or pending at Close
var ErrTransportClosed = errors.New("transport closed")

// Sleeper provides an abstraction over time.Sleep for deterministic testing.
type Sleeper interface {
	// Sleep pauses execution for the specified duration.
	Sleep(d time.Duration)
}

// DefaultSleeper implements Sleeper using the standard library time.Sleep.
type DefaultSleeper struct{}

// Sleep pauses execution for the specified duration using time.Sleep.
func (DefaultSleeper) Sleep(d time.Duration) {
	time.Sleep(d)
}

// StreamConfig configures a StreamTransport
type StreamConfig struct {
	// RetryAttempts is the number of write attempts per frame; values below 1 mean 1
	RetryAttempts int

	// QueueDepth is the number of frames buffered ahead of the writer
	QueueDepth int
}

// DefaultStreamConfig returns the configuration used by the factory
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{RetryAttempts: 3, QueueDepth: 64}
}

// StreamStats is a snapshot of transport counters
type StreamStats struct {
	Frames    uint64
	Bytes     uint64
	Retries   uint64
	Failures  uint64
	Connected bool
}

type writeRequest struct {
	data     []byte
	complete func(error)
}

// StreamTransport writes frames to an io.Writer from a single goroutine
type StreamTransport struct {
	w      io.Writer
	config StreamConfig

	mu      sync.RWMutex
	sleeper Sleeper
	closed  bool
	queue   chan writeRequest
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once

	frames   atomic.Uint64
	bytes    atomic.Uint64
	retries  atomic.Uint64
	failures atomic.Uint64
}

var _ interfaces.ITransportCloser = (*StreamTransport)(nil)

// NewStreamTransport starts a transport writing to w
func NewStreamTransport(w io.Writer, config StreamConfig) *StreamTransport {
	if config.RetryAttempts < 1 {
		config.RetryAttempts = 1
	}
	if config.QueueDepth < 1 {
		config.QueueDepth = DefaultStreamConfig().QueueDepth
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewStreamTransport",
		"retries":     config.RetryAttempts,
		"queue_depth": config.QueueDepth,
	}).Info("Creating stream transport")

	t := &StreamTransport{
		w:       w,
		config:  config,
		sleeper: DefaultSleeper{},
		queue:   make(chan writeRequest, config.QueueDepth),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go t.run()
	return t
}

// SetSleeper sets a custom Sleeper implementation (primarily for testing).
func (t *StreamTransport) SetSleeper(s Sleeper) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sleeper = s
}

// Send implements interfaces.ITransport. It blocks only while the queue is full.
func (t *StreamTransport) Send(data []byte, complete func(error)) {
	if complete == nil {
		complete = func(error) {}
	}

	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		complete(ErrTransportClosed)
		return
	}
	select {
	case t.queue <- writeRequest{data: data, complete: complete}:
		t.mu.RUnlock()
	case <-t.stop:
		t.mu.RUnlock()
		complete(ErrTransportClosed)
	}
}

func (t *StreamTransport) run() {
	defer close(t.done)
	for req := range t.queue {
		select {
		case <-t.stop:
			req.complete(ErrTransportClosed)
			continue
		default:
		}
		req.complete(t.deliver(req.data))
	}
}

// deliver writes data with retries
func (t *StreamTransport) deliver(data []byte) error {
	var lastErr error
	for attempt := 0; attempt < t.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			t.retries.Add(1)
		}
		err := t.writeAll(data)
		if err == nil {
			t.frames.Add(1)
			t.bytes.Add(uint64(len(data)))
			return nil
		}
		lastErr = err
		logDeliveryRetry(len(data), attempt+1, err)

		select {
		case <-t.stop:
			return fmt.Errorf("%w: %w", ErrTransportClosed, lastErr)
		default:
		}
		t.waitBeforeRetry(attempt)
	}
	return t.handleDeliveryFailure(len(data), lastErr)
}

// writeAll continues after short writes; data is consumed from the first unwritten byte
func (t *StreamTransport) writeAll(data []byte) error {
	for len(data) > 0 {
		n, err := t.w.Write(data)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		data = data[n:]
	}
	return nil
}

// logDeliveryRetry logs a failed write attempt.
func logDeliveryRetry(size, attempt int, err error) {
	logrus.WithFields(logrus.Fields{
		"function":   "StreamTransport.deliver",
		"frame_size": size,
		"attempt":    attempt,
		"error":      err.Error(),
	}).Warn("Frame write failed")
}

// waitBeforeRetry backs off linearly between attempts.
func (t *StreamTransport) waitBeforeRetry(attempt int) {
	if attempt >= t.config.RetryAttempts-1 {
		return
	}
	t.mu.RLock()
	sleeper := t.sleeper
	t.mu.RUnlock()
	sleeper.Sleep(time.Duration(500*(attempt+1)) * time.Millisecond)
}

// handleDeliveryFailure logs and returns an error after all attempts fail.
func (t *StreamTransport) handleDeliveryFailure(size int, lastErr error) error {
	t.failures.Add(1)
	logrus.WithFields(logrus.Fields{
		"function":   "StreamTransport.deliver",
		"frame_size": size,
		"attempts":   t.config.RetryAttempts,
		"error":      lastErr.Error(),
	}).Error("All write attempts failed")

	return fmt.Errorf("failed to write frame after %d attempts: %w", t.config.RetryAttempts, lastErr)
}

// Close implements interfaces.ITransportCloser
func (t *StreamTransport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.stop)
		if closer, ok := t.w.(io.Closer); ok {
			err = closer.Close()
		}

		t.mu.Lock()
		t.closed = true
		close(t.queue)
		t.mu.Unlock()

		<-t.done

		logrus.WithFields(logrus.Fields{
			"function": "StreamTransport.Close",
			"frames":   t.frames.Load(),
			"failures": t.failures.Load(),
		}).Info("Stream transport closed")
	})
	return err
}

// IsConnected implements interfaces.ITransportCloser
func (t *StreamTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return !t.closed
}

// Stats returns a snapshot of the transport counters
func (t *StreamTransport) Stats() StreamStats {
	return StreamStats{
		Frames:    t.frames.Load(),
		Bytes:     t.bytes.Load(),
		Retries:   t.retries.Load(),
		Failures:  t.failures.Load(),
		Connected: t.IsConnected(),
	}
}
