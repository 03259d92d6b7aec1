// Package sidechannel carries latency sensitive payloads between the messenger
// and local consumers outside the framed link: decoded media for the renderer,
// and touch, sensor and microphone input flowing back towards the phone.
package sidechannel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// MsgType tags a side-channel packet with its stream
type MsgType uint8

const (
	Video MsgType = iota
	MediaAudio
	GuidanceAudio
	SystemAudio
	TelephonyAudio
	Touch
	Sensor
	Microphone
)

var msgTypeNames = map[MsgType]string{
	Video:          "VIDEO",
	MediaAudio:     "MEDIA_AUDIO",
	GuidanceAudio:  "GUIDANCE_AUDIO",
	SystemAudio:    "SYSTEM_AUDIO",
	TelephonyAudio: "TELEPHONY_AUDIO",
	Touch:          "TOUCH",
	Sensor:         "SENSOR",
	Microphone:     "MICROPHONE",
}

func (t MsgType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MsgType(%d)", uint8(t))
}

// Packet is one side-channel payload
type Packet struct {
	Type          MsgType
	TimestampUsec uint64
	Data          []byte
}

// TypeHandler receives packets of one type
type TypeHandler func(Packet)

// Transport is the side-channel contract used by the interceptor handlers
type Transport interface {
	// Send enqueues a packet; false means it was dropped
	Send(msgType MsgType, timestampUsec uint64, data []byte) bool

	// AddTypeHandler registers h for packets of msgType
	AddTypeHandler(msgType MsgType, h TypeHandler)

	Start() error
	Stop() error
	IsRunning() bool
}

var (
	// ErrAlreadyRunning indicates Start on a running transport
	ErrAlreadyRunning = errors.New("side channel already running")
	// ErrNotRunning indicates Stop on a stopped transport
	ErrNotRunning = errors.New("side channel not running")
)

// DefaultQueueDepth is the packet capacity used when none is given
const DefaultQueueDepth = 256

// Queue is an in-process Transport. Send never blocks: packets beyond the
// queue depth are dropped and counted. A single goroutine delivers packets to
// the handlers of their type in send order.
type Queue struct {
	depth int

	mu       sync.RWMutex
	handlers map[MsgType][]TypeHandler
	packets  chan Packet
	cancel   context.CancelFunc
	done     chan struct{}

	running   atomic.Bool
	sent      atomic.Uint64
	dropped   atomic.Uint64
	delivered atomic.Uint64
}

var _ Transport = (*Queue)(nil)

// NewQueue creates a stopped queue holding up to depth packets
func NewQueue(depth int) *Queue {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &Queue{
		depth:    depth,
		handlers: make(map[MsgType][]TypeHandler),
	}
}

// AddTypeHandler implements Transport
func (q *Queue) AddTypeHandler(msgType MsgType, h TypeHandler) {
	if h == nil {
		return
	}
	q.mu.Lock()
	q.handlers[msgType] = append(q.handlers[msgType], h)
	q.mu.Unlock()
}

// Start launches the delivery goroutine
func (q *Queue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running.Load() {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.packets = make(chan Packet, q.depth)
	q.cancel = cancel
	q.done = make(chan struct{})
	q.running.Store(true)

	go q.deliver(ctx, q.packets, q.done)

	logrus.WithFields(logrus.Fields{
		"function": "Queue.Start",
		"package":  "sidechannel",
		"depth":    q.depth,
	}).Info("Side channel started")
	return nil
}

// Stop halts delivery; packets still queued are discarded
func (q *Queue) Stop() error {
	q.mu.Lock()
	if !q.running.Load() {
		q.mu.Unlock()
		return ErrNotRunning
	}
	q.running.Store(false)
	q.cancel()
	done := q.done
	q.mu.Unlock()

	<-done

	logrus.WithFields(logrus.Fields{
		"function":  "Queue.Stop",
		"package":   "sidechannel",
		"sent":      q.sent.Load(),
		"dropped":   q.dropped.Load(),
		"delivered": q.delivered.Load(),
	}).Info("Side channel stopped")
	return nil
}

// IsRunning implements Transport
func (q *Queue) IsRunning() bool {
	return q.running.Load()
}

// Send implements Transport. data is copied.
func (q *Queue) Send(msgType MsgType, timestampUsec uint64, data []byte) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.running.Load() {
		q.dropped.Add(1)
		return false
	}

	pkt := Packet{Type: msgType, TimestampUsec: timestampUsec, Data: append([]byte(nil), data...)}
	select {
	case q.packets <- pkt:
		q.sent.Add(1)
		return true
	default:
		q.dropped.Add(1)
		logrus.WithFields(logrus.Fields{
			"function": "Queue.Send",
			"package":  "sidechannel",
			"type":     msgType.String(),
			"size":     len(data),
		}).Debug("Side channel full, dropping packet")
		return false
	}
}

func (q *Queue) deliver(ctx context.Context, packets <-chan Packet, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case pkt := <-packets:
			q.dispatch(pkt)
		}
	}
}

func (q *Queue) dispatch(pkt Packet) {
	q.mu.RLock()
	handlers := append([]TypeHandler(nil), q.handlers[pkt.Type]...)
	q.mu.RUnlock()

	for _, h := range handlers {
		h(pkt)
	}
	q.delivered.Add(1)
}

// SentCount returns the number of packets accepted by Send
func (q *Queue) SentCount() uint64 { return q.sent.Load() }

// DropCount returns the number of packets rejected by Send
func (q *Queue) DropCount() uint64 { return q.dropped.Load() }

// DeliveredCount returns the number of packets handed to handlers
func (q *Queue) DeliveredCount() uint64 { return q.delivered.Load() }
