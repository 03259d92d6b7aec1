package headunit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/opd-ai/headunit/executor"
	"github.com/opd-ai/headunit/factory"
	"github.com/opd-ai/headunit/interceptor"
	"github.com/opd-ai/headunit/interfaces"
	"github.com/opd-ai/headunit/messenger"
	"github.com/opd-ai/headunit/sidechannel"
)

// ErrEncryptionDisabled is the crypto failure of ENCRYPTED sends when the
// configuration disables encryption
var ErrEncryptionDisabled = errors.New("encryption disabled")

// ErrClosed is returned by operations on a closed HeadUnit
var ErrClosed = errors.New("head unit closed")

// Options configures New
type Options struct {
	// Config is the head-unit configuration; nil means factory.DefaultConfig
	Config *factory.Config

	// Transport carries outbound frames; it may be set later with SetTransport
	Transport interfaces.ITransport

	// Cipher seals outbound and opens inbound chunks; it may be set later with
	// SetCipher once the handshake completes
	Cipher interfaces.ICipher

	// Registerer receives the prometheus collectors; nil leaves them unregistered
	Registerer prometheus.Registerer

	// IsPaired reports whether a phone Bluetooth address is already paired
	IsPaired func(address string) bool

	// TimeProvider drives send timeouts; nil uses the wall clock
	TimeProvider messenger.TimeProvider
}

// HeadUnit is the assembled messenger: an I/O pool with the sender strand, the
// outbound MessageSender behind an Outbox, the inbound Assembler, the dispatch
// Router with its handlers, and the side channel to local media components.
type HeadUnit struct {
	config  *factory.Config
	mconfig interfaces.MessengerConfig

	pool      *executor.Pool
	strand    *executor.Strand
	sender    *messenger.MessageSender
	outbox    *interceptor.Outbox
	assembler *messenger.Assembler
	router    *interceptor.Router
	side      *sidechannel.Queue

	mu        sync.Mutex
	transport interfaces.ITransport
	closed    bool
}

// New wires a HeadUnit and starts its pool and side channel
func New(ctx context.Context, opts Options) (*HeadUnit, error) {
	config := opts.Config
	if config == nil {
		config = factory.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	mc := config.MessengerConfig()
	if err := mc.Validate(); err != nil {
		return nil, fmt.Errorf("messenger config: %w", err)
	}

	pool := executor.NewPool(ctx, mc.WorkerCount, mc.QueueDepth)
	strand := executor.NewStrand(pool, "messenger")

	senderOpts := []messenger.MessengerOption{
		messenger.WithSendTimeout(mc.SendTimeoutDuration()),
		messenger.WithMetrics(messenger.NewMetrics(config.MetricsNamespace, opts.Registerer)),
	}
	if opts.TimeProvider != nil {
		senderOpts = append(senderOpts, messenger.WithTimeProvider(opts.TimeProvider))
	}

	h := &HeadUnit{
		config:    config.Clone(),
		mconfig:   *mc,
		pool:      pool,
		strand:    strand,
		transport: opts.Transport,
	}
	h.sender = messenger.NewMessageSender(strand, opts.Transport, h.outboundCryptor(opts.Cipher), senderOpts...)
	h.assembler = messenger.NewAssembler(decryptorOf(opts.Cipher), nil)

	regOpts := config.RegistryOptions()
	regOpts.IsPaired = opts.IsPaired
	registry := interceptor.DefaultRegistry(regOpts)
	for _, id := range registry.Channels() {
		h.sender.RegisterChannel(messenger.StaticChannel(id))
	}

	metrics := interceptor.NewMetrics(config.MetricsNamespace, opts.Registerer)
	h.router = interceptor.NewRouter(registry, metrics)
	h.outbox = interceptor.NewOutbox(h.sender, config.OutboxDepth, metrics)
	h.router.SetMessageSender(h.outbox)

	h.side = sidechannel.NewQueue(config.SideChannelQueueDepth)
	h.router.BindSideChannel(h.side)
	if err := h.side.Start(); err != nil {
		return nil, multierr.Append(err, pool.Stop())
	}

	logrus.WithFields(logrus.Fields{
		"function":      "New",
		"channels":      len(registry.Channels()),
		"has_transport": opts.Transport != nil,
		"has_cipher":    opts.Cipher != nil,
		"encryption":    mc.EnableEncryption,
	}).Info("Head unit created")
	return h, nil
}

// disabledCryptor fails every seal so ENCRYPTED messages cannot leave in clear
type disabledCryptor struct{}

func (disabledCryptor) Encrypt([]byte) ([]byte, int, error) {
	return nil, 0, ErrEncryptionDisabled
}

func (disabledCryptor) SealedSize(n int) int { return n }

// outboundCryptor lets plain traffic flow without a cipher when encryption is
// disabled, and refuses to seal anything in that mode
func (h *HeadUnit) outboundCryptor(c interfaces.ICipher) interfaces.ICryptor {
	if !h.mconfig.EnableEncryption {
		return disabledCryptor{}
	}
	if c == nil {
		return nil
	}
	return c
}

func decryptorOf(c interfaces.ICipher) interfaces.IDecryptor {
	if c == nil {
		return nil
	}
	return c
}

// SetTransport replaces the outbound transport
func (h *HeadUnit) SetTransport(t interfaces.ITransport) {
	h.mu.Lock()
	h.transport = t
	h.mu.Unlock()
	h.sender.SetTransport(t)
}

// SetCipher installs the session cipher for both directions
func (h *HeadUnit) SetCipher(c interfaces.ICipher) {
	h.sender.SetCryptor(h.outboundCryptor(c))
	h.assembler.SetDecryptor(decryptorOf(c))
}

// Send queues msg behind any reply in flight
func (h *HeadUnit) Send(msg *messenger.Message) error {
	return h.outbox.Enqueue(msg)
}

// Route passes one inbound message to its channel handler
func (h *HeadUnit) Route(msg *messenger.Message) bool {
	return h.router.Route(msg)
}

// Serve reads frames from r and routes every complete message until r ends,
// the stream breaks, or ctx is cancelled. A clean end of stream returns nil.
func (h *HeadUnit) Serve(ctx context.Context, r io.Reader) error {
	logrus.WithFields(logrus.Fields{
		"function": "HeadUnit.Serve",
	}).Info("Serving inbound stream")

	err := h.assembler.ReadMessages(r, func(msg *messenger.Message) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		h.router.Route(msg)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logrus.WithFields(logrus.Fields{
			"function": "HeadUnit.Serve",
			"error":    err.Error(),
		}).Warn("Inbound stream stopped")
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Config returns a copy of the configuration the head unit was built with
func (h *HeadUnit) Config() *factory.Config { return h.config.Clone() }

// Sender returns the outbound message sender
func (h *HeadUnit) Sender() *messenger.MessageSender { return h.sender }

// Outbox returns the serializing front of the sender
func (h *HeadUnit) Outbox() *interceptor.Outbox { return h.outbox }

// MessengerConfig returns the send pipeline settings derived from Config
func (h *HeadUnit) MessengerConfig() interfaces.MessengerConfig { return h.mconfig }

// Router returns the inbound dispatch router
func (h *HeadUnit) Router() *interceptor.Router { return h.router }

// SideChannel returns the queue to local media components
func (h *HeadUnit) SideChannel() sidechannel.Transport { return h.side }

// Close stops the head unit: handler sessions and the side channel, the outbox,
// the transport when it can be closed, then the pool. Calling Close twice
// returns ErrClosed.
func (h *HeadUnit) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	h.closed = true
	transport := h.transport
	h.mu.Unlock()

	err := h.router.Close()
	err = multierr.Append(err, h.outbox.Close())
	if closer, ok := transport.(interfaces.ITransportCloser); ok {
		err = multierr.Append(err, closer.Close())
	}
	err = multierr.Append(err, h.pool.Stop())

	logrus.WithFields(logrus.Fields{
		"function": "HeadUnit.Close",
		"errors":   len(multierr.Errors(err)),
	}).Info("Head unit closed")
	return err
}
