package interceptor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opd-ai/headunit/aap"
	"github.com/opd-ai/headunit/executor"
	"github.com/opd-ai/headunit/messenger"
	sim "github.com/opd-ai/headunit/testing"
)

type fixture struct {
	transport *sim.SimulatedTransport
	cryptor   *sim.SimulatedCryptor
	sender    *messenger.MessageSender
	outbox    *Outbox
	metrics   *Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pool := executor.NewPool(context.Background(), 2, 64)
	t.Cleanup(func() { _ = pool.Stop() })

	f := &fixture{
		transport: sim.NewSimulatedTransport(),
		cryptor:   sim.NewSimulatedCryptor(0x5a),
		metrics:   NewMetrics("test", nil),
	}
	f.sender = messenger.NewMessageSender(executor.NewStrand(pool, "interceptor-test"), f.transport, f.cryptor)
	f.outbox = NewOutbox(f.sender, 16, f.metrics)
	return f
}

// sent waits for n transport writes and decodes them as single-frame messages
func (f *fixture) sent(t *testing.T, n int) []*messenger.Message {
	t.Helper()
	require.True(t, f.transport.WaitForSends(n, 2*time.Second), "expected %d sends, got %d", n, f.transport.SendCount())
	f.settle(t)

	raw := f.transport.Frames()
	require.Len(t, raw, n)
	out := make([]*messenger.Message, 0, n)
	for _, data := range raw {
		frame, _, err := messenger.DecodeFrame(data)
		require.NoError(t, err)
		require.Equal(t, messenger.FrameBulk, frame.Header.FrameType)

		payload := frame.Payload
		if frame.Header.EncryptionType == messenger.EncryptionEncrypted {
			payload, err = f.cryptor.Decrypt(payload)
			require.NoError(t, err)
		}
		out = append(out, &messenger.Message{
			ChannelID:      frame.Header.ChannelID,
			EncryptionType: frame.Header.EncryptionType,
			MessageType:    frame.Header.MessageType,
			Payload:        payload,
		})
	}
	return out
}

// settle waits until the outbox has nothing in flight
func (f *fixture) settle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return !f.outbox.Busy() }, 2*time.Second, time.Millisecond)
}

func inbound(t *testing.T, ch messenger.ChannelID, typ messenger.MessageType, id messenger.MessageID, m messenger.ProtoMarshaler) *messenger.Message {
	t.Helper()
	var body []byte
	if m != nil {
		var err error
		body, err = m.Marshal()
		require.NoError(t, err)
	}
	return messenger.NewMessage(ch, messenger.EncryptionPlain, typ, id, body)
}

func openRequest(t *testing.T, ch messenger.ChannelID) *messenger.Message {
	return inbound(t, ch, messenger.MessageControl, aap.MessageChannelOpenRequest,
		&aap.ChannelOpenRequest{Priority: 0, ServiceID: int32(ch)})
}

func messageID(t *testing.T, msg *messenger.Message) messenger.MessageID {
	t.Helper()
	id, err := msg.ID()
	require.NoError(t, err)
	return id
}

// open routes a channel open request and consumes its reply
func (f *fixture) open(t *testing.T, h Handler, ch messenger.ChannelID) {
	t.Helper()
	require.True(t, h.Handle(openRequest(t, ch)))
	f.sent(t, 1)
	f.transport.ClearSendLog()
}
