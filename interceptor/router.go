package interceptor

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/opd-ai/headunit/messenger"
	"github.com/opd-ai/headunit/sidechannel"
)

// Router dispatches inbound messages to the handler registered for their channel
type Router struct {
	registry *Registry
	metrics  *Metrics

	mu   sync.Mutex
	side sidechannel.Transport
}

// NewRouter creates a router over registry. metrics may be nil.
func NewRouter(registry *Registry, metrics *Metrics) *Router {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Router{registry: registry, metrics: metrics}
}

// Registry returns the handler registry
func (r *Router) Registry() *Registry {
	return r.registry
}

// Route hands msg to its channel's handler and reports whether it was consumed.
// Messages for channels without a handler are not consumed.
func (r *Router) Route(msg *messenger.Message) bool {
	consumed, _ := r.RouteErr(msg)
	return consumed
}

// RouteErr is Route for callers that need to tell a missing handler apart from
// a message its handler declined: the former also returns ErrHandlerNotFound.
func (r *Router) RouteErr(msg *messenger.Message) (bool, error) {
	if msg == nil {
		return false, fmt.Errorf("%w: nil message", messenger.ErrMalformedMessage)
	}
	h, ok := r.registry.Lookup(msg.ChannelID)
	if !ok {
		err := fmt.Errorf("%w: channel %s", messenger.ErrHandlerNotFound, msg.ChannelID)
		logrus.WithFields(logrus.Fields{
			"function": "Router.RouteErr",
			"package":  "interceptor",
			"channel":  msg.ChannelID.String(),
			"size":     len(msg.Payload),
			"error":    err.Error(),
		}).Debug("No handler for channel")
		r.metrics.messageRouted(msg.ChannelID, VerdictNoHandler)
		return false, err
	}

	consumed := h.Handle(msg)
	verdict := VerdictIgnored
	if consumed {
		verdict = VerdictConsumed
	}
	r.metrics.messageRouted(msg.ChannelID, verdict)
	return consumed, nil
}

// SetMessageSender gives every registered handler the sender to reply through
func (r *Router) SetMessageSender(sender Sender) {
	for _, h := range r.registry.Handlers() {
		h.SetMessageSender(sender)
	}
}

// BindSideChannel connects handlers to transport: publishers get the transport
// and input consumers are registered for their packet types.
func (r *Router) BindSideChannel(transport sidechannel.Transport) {
	r.mu.Lock()
	r.side = transport
	r.mu.Unlock()

	for _, h := range r.registry.Handlers() {
		if binder, ok := h.(SideChannelBinder); ok {
			binder.BindSideChannel(transport)
		}
		if c, ok := h.(TouchConsumer); ok {
			transport.AddTypeHandler(sidechannel.Touch, func(p sidechannel.Packet) {
				r.metrics.sideChannelPacket(p.Type)
				c.OnTouchEvent(p.TimestampUsec, p.Data)
			})
		}
		if c, ok := h.(SensorConsumer); ok {
			transport.AddTypeHandler(sidechannel.Sensor, func(p sidechannel.Packet) {
				r.metrics.sideChannelPacket(p.Type)
				c.OnSensorEvent(p.TimestampUsec, p.Data)
			})
		}
		if c, ok := h.(MicrophoneConsumer); ok {
			transport.AddTypeHandler(sidechannel.Microphone, func(p sidechannel.Packet) {
				r.metrics.sideChannelPacket(p.Type)
				c.OnMicrophoneAudio(p.TimestampUsec, p.Data)
			})
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Router.BindSideChannel",
		"package":  "interceptor",
		"handlers": len(r.registry.Handlers()),
	}).Info("Side channel bound")
}

// Close resets handler sessions and stops the bound side channel
func (r *Router) Close() error {
	var err error
	for _, h := range r.registry.Handlers() {
		if closer, ok := h.(interface{ Close() error }); ok {
			err = multierr.Append(err, closer.Close())
		}
	}

	r.mu.Lock()
	side := r.side
	r.side = nil
	r.mu.Unlock()
	if side != nil && side.IsRunning() {
		err = multierr.Append(err, side.Stop())
	}
	return err
}
