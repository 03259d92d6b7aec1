package messenger

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Send results recorded by Metrics
const (
	ResultSuccess    = "success"
	ResultInProgress = "in_progress"
	ResultTransport  = "transport_error"
	ResultCrypto     = "crypto_error"
	ResultTimeout    = "timeout"
	ResultMalformed  = "malformed"
	ResultNoSendPath = "no_send_path"
)

// Metrics holds the messenger's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	framesSent     *prometheus.CounterVec
	bytesSent      prometheus.Counter
	sends          *prometheus.CounterVec
	inFlight       prometheus.Gauge
	sendDuration   prometheus.Histogram
	framesReceived *prometheus.CounterVec
	reassembled    *prometheus.CounterVec
}

// NewMetrics creates the collectors under namespace and registers them on reg.
// A nil reg leaves them unregistered, which tests use to read values directly.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messenger",
			Name:      "frames_sent_total",
			Help:      "Frames handed to the transport, by frame type.",
		}, []string{"frame_type"}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messenger",
			Name:      "bytes_sent_total",
			Help:      "Encoded frame bytes acknowledged by the transport.",
		}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messenger",
			Name:      "sends_total",
			Help:      "Completed send sessions, by channel and result.",
		}, []string{"channel", "result"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "messenger",
			Name:      "send_in_flight",
			Help:      "1 while a send session is active.",
		}),
		sendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "messenger",
			Name:      "send_duration_seconds",
			Help:      "Time from session start to settlement.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messenger",
			Name:      "frames_received_total",
			Help:      "Inbound frames pushed to the assembler, by frame type.",
		}, []string{"frame_type"}),
		reassembled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messenger",
			Name:      "messages_received_total",
			Help:      "Inbound messages reassembled, by channel.",
		}, []string{"channel"}),
	}

	if reg != nil {
		for _, c := range m.collectors() {
			if err := reg.Register(c); err != nil {
				var already prometheus.AlreadyRegisteredError
				if errors.As(err, &already) {
					continue
				}
				logrus.WithFields(logrus.Fields{
					"function": "NewMetrics",
					"error":    err.Error(),
				}).Warn("Failed to register messenger collector")
			}
		}
	}
	return m
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.framesSent, m.bytesSent, m.sends, m.inFlight, m.sendDuration, m.framesReceived, m.reassembled}
}

func (m *Metrics) frameSent(frameType FrameType, bytes int) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(frameType.String()).Inc()
	m.bytesSent.Add(float64(bytes))
}

func (m *Metrics) sessionStarted() {
	if m == nil {
		return
	}
	m.inFlight.Set(1)
}

func (m *Metrics) sessionFinished(channel ChannelID, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.Set(0)
	m.sends.WithLabelValues(channel.String(), result).Inc()
	m.sendDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) sendRejected(channel ChannelID, result string) {
	if m == nil {
		return
	}
	m.sends.WithLabelValues(channel.String(), result).Inc()
}

func (m *Metrics) frameReceived(frameType FrameType) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(frameType.String()).Inc()
}

func (m *Metrics) messageReceived(channel ChannelID) {
	if m == nil {
		return
	}
	m.reassembled.WithLabelValues(channel.String()).Inc()
}

// SendCount returns the sends counter for channel and result
func (m *Metrics) SendCount(channel ChannelID, result string) prometheus.Counter {
	return m.sends.WithLabelValues(channel.String(), result)
}

// FrameCount returns the frames counter for frameType
func (m *Metrics) FrameCount(frameType FrameType) prometheus.Counter {
	return m.framesSent.WithLabelValues(frameType.String())
}

// resultFor maps a session error to its metric label
func resultFor(err error) string {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, ErrOperationInProgress):
		return ResultInProgress
	case errors.Is(err, ErrSendTimeout):
		return ResultTimeout
	case errors.Is(err, ErrCryptoFailure):
		return ResultCrypto
	case errors.Is(err, ErrMalformedMessage), errors.Is(err, ErrMalformedFrame):
		return ResultMalformed
	case errors.Is(err, ErrNoSendPath):
		return ResultNoSendPath
	default:
		return ResultTransport
	}
}
