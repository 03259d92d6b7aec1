package interceptor

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/headunit/messenger"
	"github.com/opd-ai/headunit/sidechannel"
)

// Routing verdicts recorded by Metrics
const (
	VerdictConsumed  = "consumed"
	VerdictIgnored   = "ignored"
	VerdictNoHandler = "no_handler"
)

// Metrics holds the router's prometheus collectors. A nil *Metrics is valid.
type Metrics struct {
	routed        *prometheus.CounterVec
	sideChannel   *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	outboxPending prometheus.Gauge
}

// NewMetrics creates the collectors under namespace and registers them on reg
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "messages_total",
			Help:      "Inbound messages routed, by channel and verdict.",
		}, []string{"channel", "verdict"}),
		sideChannel: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "side_channel_packets_total",
			Help:      "Side-channel packets delivered to handlers, by type.",
		}, []string{"type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "outbox_dropped_total",
			Help:      "Replies dropped by the outbox, by channel.",
		}, []string{"channel"}),
		outboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "outbox_pending",
			Help:      "Replies waiting behind the one in flight.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.routed, m.sideChannel, m.dropped, m.outboxPending} {
			if err := reg.Register(c); err != nil {
				var already prometheus.AlreadyRegisteredError
				if errors.As(err, &already) {
					continue
				}
				logrus.WithFields(logrus.Fields{
					"function": "NewMetrics",
					"package":  "interceptor",
					"error":    err.Error(),
				}).Warn("Failed to register router collector")
			}
		}
	}
	return m
}

func (m *Metrics) messageRouted(channel messenger.ChannelID, verdict string) {
	if m == nil {
		return
	}
	m.routed.WithLabelValues(channel.String(), verdict).Inc()
}

func (m *Metrics) sideChannelPacket(t sidechannel.MsgType) {
	if m == nil {
		return
	}
	m.sideChannel.WithLabelValues(t.String()).Inc()
}

func (m *Metrics) outboxDropped(channel messenger.ChannelID) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(channel.String()).Inc()
}

func (m *Metrics) outboxBacklog(n int) {
	if m == nil {
		return
	}
	m.outboxPending.Set(float64(n))
}

// RoutedCount returns the routing counter for channel and verdict
func (m *Metrics) RoutedCount(channel messenger.ChannelID, verdict string) prometheus.Counter {
	return m.routed.WithLabelValues(channel.String(), verdict)
}

// DroppedCount returns the outbox drop counter for channel
func (m *Metrics) DroppedCount(channel messenger.ChannelID) prometheus.Counter {
	return m.dropped.WithLabelValues(channel.String())
}
