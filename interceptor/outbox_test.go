package interceptor

import (
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/headunit/aap"
	"github.com/opd-ai/headunit/messenger"
)

// manualDispatcher records dispatched messages and lets the test settle them
type manualDispatcher struct {
	mu       sync.Mutex
	canSend  bool
	messages []*messenger.Message
	promises []*messenger.Promise
}

func (d *manualDispatcher) Dispatch(msg *messenger.Message) *messenger.Promise {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := messenger.NewPromise()
	d.messages = append(d.messages, msg)
	d.promises = append(d.promises, p)
	return p
}

func (d *manualDispatcher) CanSend() bool { return d.canSend }

func (d *manualDispatcher) dispatched() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.messages)
}

func (d *manualDispatcher) promise(i int) *messenger.Promise {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.promises[i]
}

func msgWithID(id messenger.MessageID) *messenger.Message {
	return messenger.NewMessage(messenger.ChannelSensor, messenger.EncryptionPlain, messenger.MessageSpecific, id, nil)
}

func TestOutboxDispatchesOneAtATime(t *testing.T) {
	d := &manualDispatcher{canSend: true}
	o := NewOutbox(d, 4, nil)

	require.NoError(t, o.Enqueue(msgWithID(1)))
	require.NoError(t, o.Enqueue(msgWithID(2)))
	require.NoError(t, o.Enqueue(msgWithID(3)))
	assert.Equal(t, 1, d.dispatched())
	assert.Equal(t, 2, o.Pending())
	assert.True(t, o.Busy())

	d.promise(0).Resolve()
	assert.Equal(t, 2, d.dispatched())

	// a failed send still releases the next message
	d.promise(1).Reject(errors.New("boom"))
	assert.Equal(t, 3, d.dispatched())

	d.promise(2).Resolve()
	assert.False(t, o.Busy())
	assert.Equal(t, 0, o.Pending())

	for i, want := range []messenger.MessageID{1, 2, 3} {
		id, err := d.messages[i].ID()
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
}

func TestOutboxBacklogLimit(t *testing.T) {
	d := &manualDispatcher{canSend: true}
	metrics := NewMetrics("test", nil)
	o := NewOutbox(d, 1, metrics)

	require.NoError(t, o.Enqueue(msgWithID(1)))
	require.NoError(t, o.Enqueue(msgWithID(2)))
	assert.ErrorIs(t, o.Enqueue(msgWithID(3)), ErrOutboxFull)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DroppedCount(messenger.ChannelSensor)))
}

func TestOutboxWithoutSendPath(t *testing.T) {
	d := &manualDispatcher{canSend: false}
	metrics := NewMetrics("test", nil)
	o := NewOutbox(d, 1, metrics)

	o.SendProtobuf(messenger.ChannelSensor, messenger.EncryptionPlain, messenger.MessageSpecific,
		aap.SensorMessageResponse, &aap.SensorStartResponse{})
	assert.Equal(t, 0, d.dispatched())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DroppedCount(messenger.ChannelSensor)))
}

func TestOutboxClose(t *testing.T) {
	d := &manualDispatcher{canSend: true}
	o := NewOutbox(d, 4, nil)

	require.NoError(t, o.Enqueue(msgWithID(1)))
	require.NoError(t, o.Enqueue(msgWithID(2)))
	require.NoError(t, o.Close())
	assert.ErrorIs(t, o.Close(), ErrOutboxClosed)
	assert.ErrorIs(t, o.Enqueue(msgWithID(3)), ErrOutboxClosed)

	d.promise(0).Resolve()
	assert.Equal(t, 1, d.dispatched(), "backlog discarded on close")
	assert.False(t, o.Busy())
}

func TestOutboxSubmitSettlesWithOwnResult(t *testing.T) {
	d := &manualDispatcher{canSend: true}
	o := NewOutbox(d, 4, nil)

	require.NoError(t, o.Enqueue(msgWithID(1)))
	second, err := o.Submit(msgWithID(2))
	require.NoError(t, err)
	third, err := o.Submit(msgWithID(3))
	require.NoError(t, err)
	assert.Equal(t, 1, d.dispatched(), "submitted messages wait behind the one in flight")

	d.promise(0).Reject(errors.New("earlier failure"))
	assert.False(t, second.Settled(), "an earlier failure does not settle later messages")

	stall := errors.New("stall")
	d.promise(1).Reject(stall)
	assert.ErrorIs(t, second.Err(), stall)
	assert.Equal(t, 3, d.dispatched())
	assert.True(t, o.Busy(), "third is in flight")

	d.promise(2).Resolve()
	assert.True(t, third.Settled())
	assert.NoError(t, third.Err())
	assert.False(t, o.Busy())
}

func TestOutboxCloseRejectsSubmitted(t *testing.T) {
	d := &manualDispatcher{canSend: true}
	o := NewOutbox(d, 4, nil)

	first, err := o.Submit(msgWithID(1))
	require.NoError(t, err)
	queued, err := o.Submit(msgWithID(2))
	require.NoError(t, err)

	require.NoError(t, o.Close())
	assert.ErrorIs(t, queued.Err(), ErrOutboxClosed)

	_, err = o.Submit(msgWithID(3))
	assert.ErrorIs(t, err, ErrOutboxClosed)

	d.promise(0).Resolve()
	assert.NoError(t, first.Err())
	assert.Equal(t, 1, d.dispatched())
}

func TestOutboxOverMessageSender(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.outbox.SendProtobuf(messenger.ChannelBluetooth, messenger.EncryptionPlain, messenger.MessageSpecific,
			aap.BluetoothMessagePairingResponse, &aap.BluetoothPairingResponse{Status: int32(i)})
	}

	sent := f.sent(t, 5)
	for i, msg := range sent {
		var resp aap.BluetoothPairingResponse
		require.NoError(t, resp.Unmarshal(msg.Body()))
		assert.Equal(t, int32(i), resp.Status)
	}
}
