package testing

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrTransportClosed is reported to sends issued after Close
var ErrTransportClosed = errors.New("simulated transport closed")

// SendRecord represents a transport write for test verification
type SendRecord struct {
	Index     int
	Data      []byte
	Timestamp int64
	Success   bool
	Error     error
}

type pendingSend struct {
	index    int
	complete func(error)
}

// SimulatedTransport implements interfaces.ITransport in memory. Every write is
// recorded. Completions run inline unless manual completion is enabled, in
// which case the test drives them with CompleteNext.
type SimulatedTransport struct {
	mu       sync.Mutex
	sendLog  []SendRecord
	failures map[int]error
	manual   bool
	pending  []pendingSend
	closed   bool
	changed  chan struct{}
}

// NewSimulatedTransport creates a simulated transport with automatic completion
func NewSimulatedTransport() *SimulatedTransport {
	logrus.WithFields(logrus.Fields{
		"function": "NewSimulatedTransport",
	}).Debug("Creating simulated transport for testing")

	return &SimulatedTransport{
		sendLog:  make([]SendRecord, 0),
		failures: make(map[int]error),
		changed:  make(chan struct{}),
	}
}

// Send implements interfaces.ITransport.Send with simulation
func (s *SimulatedTransport) Send(data []byte, complete func(error)) {
	s.mu.Lock()
	index := len(s.sendLog)
	record := SendRecord{
		Index:     index,
		Data:      append([]byte(nil), data...),
		Timestamp: time.Now().UnixNano(),
	}

	var err error
	switch {
	case s.closed:
		err = ErrTransportClosed
	case s.failures[index] != nil:
		err = s.failures[index]
	}
	record.Success = err == nil
	record.Error = err
	s.sendLog = append(s.sendLog, record)

	if s.manual && err == nil {
		s.pending = append(s.pending, pendingSend{index: index, complete: complete})
		s.signalLocked()
		s.mu.Unlock()
		return
	}
	s.signalLocked()
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "SimulatedTransport.Send",
		"index":    index,
		"size":     len(data),
		"success":  err == nil,
	}).Debug("Simulated transport write")

	complete(err)
}

// signalLocked wakes WaitForSends callers; s.mu must be held
func (s *SimulatedTransport) signalLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// FailAt makes the write with the given zero-based index fail with err
func (s *SimulatedTransport) FailAt(index int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[index] = err
}

// SetManualCompletion holds completions until CompleteNext is called
func (s *SimulatedTransport) SetManualCompletion(manual bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manual = manual
}

// CompleteNext completes the oldest held write with err.
// It returns false when nothing is pending.
func (s *SimulatedTransport) CompleteNext(err error) bool {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return false
	}
	next := s.pending[0]
	s.pending = s.pending[1:]
	if err != nil {
		s.sendLog[next.index].Success = false
		s.sendLog[next.index].Error = err
	}
	s.mu.Unlock()

	next.complete(err)
	return true
}

// PendingCount returns the number of writes awaiting manual completion
func (s *SimulatedTransport) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// GetSendLog returns a copy of every recorded write
func (s *SimulatedTransport) GetSendLog() []SendRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := make([]SendRecord, len(s.sendLog))
	copy(log, s.sendLog)
	return log
}

// Frames returns the bytes of every recorded write, in order
func (s *SimulatedTransport) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := make([][]byte, len(s.sendLog))
	for i, r := range s.sendLog {
		frames[i] = r.Data
	}
	return frames
}

// SendCount returns the number of recorded writes
func (s *SimulatedTransport) SendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sendLog)
}

// WaitForSends blocks until at least n writes were recorded or timeout passes
func (s *SimulatedTransport) WaitForSends(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		s.mu.Lock()
		if len(s.sendLog) >= n {
			s.mu.Unlock()
			return true
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-deadline.C:
			return false
		}
	}
}

// ClearSendLog clears the send log for test cleanup
func (s *SimulatedTransport) ClearSendLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendLog = make([]SendRecord, 0)
	s.failures = make(map[int]error)
}

// Close fails later sends and every held completion
func (s *SimulatedTransport) Close() error {
	s.mu.Lock()
	s.closed = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, p := range pending {
		p.complete(ErrTransportClosed)
	}
	return nil
}

// IsConnected returns true until Close
func (s *SimulatedTransport) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}
