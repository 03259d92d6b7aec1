package headunit

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/headunit/aap"
	"github.com/opd-ai/headunit/cryptor"
	"github.com/opd-ai/headunit/factory"
	"github.com/opd-ai/headunit/messenger"
	sim "github.com/opd-ai/headunit/testing"
)

// phoneMessage decodes the single-frame control message at index i of the send log
func phoneMessage(t *testing.T, transport *sim.SimulatedTransport, i int) (messenger.MessageID, []byte) {
	t.Helper()
	require.True(t, transport.WaitForSends(i+1, 2*time.Second))
	frame, _, err := messenger.DecodeFrame(transport.Frames()[i])
	require.NoError(t, err)
	msg := &messenger.Message{ChannelID: frame.Header.ChannelID, MessageType: frame.Header.MessageType, Payload: frame.Payload}
	require.Equal(t, messenger.ChannelControl, msg.ChannelID)
	id, err := msg.ID()
	require.NoError(t, err)
	return id, msg.Body()
}

func TestAuthenticateNoiseHandshake(t *testing.T) {
	transport := sim.NewSimulatedTransport()
	hu, err := New(context.Background(), Options{Config: factory.TestConfig(), Transport: transport})
	require.NoError(t, err)
	defer hu.Close()

	local, err := cryptor.NewHandshake(cryptor.Initiator, cryptor.DHKey{})
	require.NoError(t, err)
	phoneKey, err := cryptor.GenerateKeypair()
	require.NoError(t, err)
	phone, err := cryptor.NewHandshake(cryptor.Responder, phoneKey)
	require.NoError(t, err)

	pr, pw := io.Pipe()
	defer pw.Close()

	done := make(chan error, 1)
	go func() { done <- hu.Authenticate(context.Background(), pr, local) }()

	// message 0 from the head unit
	id, body := phoneMessage(t, transport, 0)
	require.Equal(t, aap.MessageEncapsulatedSSL, id)
	_, err = phone.ReadMessage(body)
	require.NoError(t, err)

	// message 1 from the phone
	reply, err := phone.WriteMessage(nil)
	require.NoError(t, err)
	frame, err := messenger.EncodeFrame(messenger.FrameHeader{
		ChannelID:   messenger.ChannelControl,
		FrameType:   messenger.FrameBulk,
		MessageType: messenger.MessageControl,
	}, messenger.NewMessage(messenger.ChannelControl, messenger.EncryptionPlain, messenger.MessageControl, aap.MessageEncapsulatedSSL, reply).Payload, 0)
	require.NoError(t, err)
	_, err = pw.Write(frame)
	require.NoError(t, err)

	// message 2 from the head unit
	id, body = phoneMessage(t, transport, 1)
	require.Equal(t, aap.MessageEncapsulatedSSL, id)
	_, err = phone.ReadMessage(body)
	require.NoError(t, err)
	require.True(t, phone.Complete())

	id, body = phoneMessage(t, transport, 2)
	require.Equal(t, aap.MessageAuthComplete, id)
	var complete aap.AuthComplete
	require.NoError(t, complete.Unmarshal(body))
	assert.Equal(t, aap.StatusSuccess, complete.Status)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Authenticate did not return")
	}
	assert.Equal(t, phoneKey.Public, local.PeerStatic())

	// traffic after the handshake is sealed with the negotiated cipher
	phoneCipher, err := phone.Cipher()
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg := messenger.NewMessage(messenger.ChannelSensor, messenger.EncryptionEncrypted, messenger.MessageSpecific, aap.SensorMessageBatch, []byte{0x01})
	require.NoError(t, hu.Sender().Dispatch(msg).Wait(ctx))

	require.True(t, transport.WaitForSends(4, 2*time.Second))
	sealed, _, err := messenger.DecodeFrame(transport.Frames()[3])
	require.NoError(t, err)
	plain, err := phoneCipher.Decrypt(sealed.Payload)
	require.NoError(t, err)
	assert.Equal(t, msg.Payload, plain)
}

func TestAuthenticateWithoutTransport(t *testing.T) {
	hu, err := New(context.Background(), Options{Config: factory.TestConfig()})
	require.NoError(t, err)
	defer hu.Close()

	hs, err := cryptor.NewHandshake(cryptor.Initiator, cryptor.DHKey{})
	require.NoError(t, err)
	assert.ErrorIs(t, hu.Authenticate(context.Background(), nil, hs), ErrNoTransport)
}

func TestAuthenticateStreamEnds(t *testing.T) {
	transport := sim.NewSimulatedTransport()
	hu, err := New(context.Background(), Options{Config: factory.TestConfig(), Transport: transport})
	require.NoError(t, err)
	defer hu.Close()

	hs, err := cryptor.NewHandshake(cryptor.Responder, cryptor.DHKey{})
	require.NoError(t, err)

	pr, pw := io.Pipe()
	require.NoError(t, pw.Close())
	err = hu.Authenticate(context.Background(), pr, hs)
	assert.ErrorIs(t, err, io.EOF)
}

func TestAuthenticateWaitsForReplyInFlight(t *testing.T) {
	transport := sim.NewSimulatedTransport()
	transport.SetManualCompletion(true)
	hu, err := New(context.Background(), Options{Config: factory.TestConfig(), Transport: transport})
	require.NoError(t, err)
	defer hu.Close()

	reply := messenger.NewMessage(messenger.ChannelSensor, messenger.EncryptionPlain, messenger.MessageControl, aap.MessageChannelOpenResponse, nil)
	require.NoError(t, hu.Send(reply))
	require.True(t, transport.WaitForSends(1, time.Second))

	hs, err := cryptor.NewHandshake(cryptor.Initiator, cryptor.DHKey{})
	require.NoError(t, err)
	pr, pw := io.Pipe()

	done := make(chan error, 1)
	go func() { done <- hu.Authenticate(context.Background(), pr, hs) }()

	select {
	case err := <-done:
		t.Fatalf("Authenticate returned while a reply was in flight: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 1, transport.SendCount(), "handshake waits behind the reply")

	require.True(t, transport.CompleteNext(nil))
	id, _ := phoneMessage(t, transport, 1)
	assert.Equal(t, aap.MessageEncapsulatedSSL, id)
	require.True(t, transport.CompleteNext(nil))

	// the phone hangs up before answering
	require.NoError(t, pw.Close())
	select {
	case err := <-done:
		assert.ErrorIs(t, err, io.EOF)
		assert.NotErrorIs(t, err, messenger.ErrOperationInProgress)
	case <-time.After(2 * time.Second):
		t.Fatal("Authenticate did not return")
	}
}
