package cryptor

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/headunit/interfaces"
	"github.com/opd-ai/headunit/limits"
)

var (
	_ interfaces.ICipher = (*AEADCipher)(nil)
	_ interfaces.ICipher = (*NoiseCipher)(nil)
)

func aeadPair(t *testing.T) (*AEADCipher, *AEADCipher) {
	t.Helper()
	key := bytes.Repeat([]byte{0x42}, KeySize)
	hu, err := NewAEADCipher(key, LabelHeadUnit, LabelPhone)
	require.NoError(t, err)
	phone, err := NewAEADCipher(key, LabelPhone, LabelHeadUnit)
	require.NoError(t, err)
	return hu, phone
}

func TestAEADCipherRoundTrip(t *testing.T) {
	hu, phone := aeadPair(t)

	for i, chunk := range [][]byte{{0x00, 0x01}, bytes.Repeat([]byte{7}, limits.MaxFramePayloadSize), {}} {
		sealed, n, err := hu.Encrypt(chunk)
		require.NoError(t, err)
		assert.Equal(t, len(chunk)+limits.EncryptionOverhead, n, "chunk %d", i)
		assert.Equal(t, hu.SealedSize(len(chunk)), n, "chunk %d", i)

		plain, err := phone.Decrypt(sealed[:n])
		require.NoError(t, err)
		assert.Equal(t, len(chunk), len(plain))
		assert.True(t, bytes.Equal(chunk, plain))
	}

	sent, received := hu.Counters()
	assert.Equal(t, uint64(3), sent)
	assert.Equal(t, uint64(0), received)
}

func TestAEADCipherDirectionsDiffer(t *testing.T) {
	hu, phone := aeadPair(t)

	a, _, err := hu.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, _, err := phone.Encrypt([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	// A sender cannot open its own output
	_, err = hu.Decrypt(a)
	assert.ErrorIs(t, err, ErrOpenFailed)
}

func TestAEADCipherRejectsReorderAndTamper(t *testing.T) {
	hu, phone := aeadPair(t)

	first, _, err := hu.Encrypt([]byte("first"))
	require.NoError(t, err)
	second, _, err := hu.Encrypt([]byte("second"))
	require.NoError(t, err)

	_, err = phone.Decrypt(second)
	assert.ErrorIs(t, err, ErrOpenFailed)

	tampered := append([]byte(nil), first...)
	tampered[0] ^= 0xff
	_, err = phone.Decrypt(tampered)
	assert.ErrorIs(t, err, ErrOpenFailed)

	plain, err := phone.Decrypt(first)
	require.NoError(t, err)
	assert.Equal(t, "first", string(plain))
}

func TestNewAEADCipherKeyLength(t *testing.T) {
	_, err := NewAEADCipher(make([]byte, 16), LabelHeadUnit, LabelPhone)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func completeHandshake(t *testing.T) (*Handshake, *Handshake) {
	t.Helper()
	initiator, err := NewHandshake(Initiator, DHKey{})
	require.NoError(t, err)
	responder, err := NewHandshake(Responder, DHKey{})
	require.NoError(t, err)

	msg1, err := initiator.WriteMessage(nil)
	require.NoError(t, err)
	_, err = responder.ReadMessage(msg1)
	require.NoError(t, err)

	msg2, err := responder.WriteMessage([]byte("head unit"))
	require.NoError(t, err)
	payload, err := initiator.ReadMessage(msg2)
	require.NoError(t, err)
	assert.Equal(t, "head unit", string(payload))

	msg3, err := initiator.WriteMessage(nil)
	require.NoError(t, err)
	_, err = responder.ReadMessage(msg3)
	require.NoError(t, err)

	return initiator, responder
}

func TestHandshakeXX(t *testing.T) {
	initiator, responder := completeHandshake(t)

	assert.True(t, initiator.Complete())
	assert.True(t, responder.Complete())
	assert.Len(t, initiator.PeerStatic(), 32)
	assert.Len(t, responder.PeerStatic(), 32)

	ic, err := initiator.Cipher()
	require.NoError(t, err)
	rc, err := responder.Cipher()
	require.NoError(t, err)

	sealed, n, err := ic.Encrypt([]byte("to phone"))
	require.NoError(t, err)
	assert.Equal(t, len("to phone")+limits.EncryptionOverhead, n)
	assert.Equal(t, ic.SealedSize(len("to phone")), n)
	plain, err := rc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "to phone", string(plain))

	sealed, _, err = rc.Encrypt([]byte("to head unit"))
	require.NoError(t, err)
	plain, err = ic.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "to head unit", string(plain))
}

func TestHandshakeOrdering(t *testing.T) {
	initiator, err := NewHandshake(Initiator, DHKey{})
	require.NoError(t, err)
	responder, err := NewHandshake(Responder, DHKey{})
	require.NoError(t, err)

	_, err = responder.WriteMessage(nil)
	assert.ErrorIs(t, err, ErrOutOfTurn)
	_, err = initiator.ReadMessage([]byte{0x01})
	assert.ErrorIs(t, err, ErrOutOfTurn)

	_, err = initiator.Cipher()
	assert.ErrorIs(t, err, ErrHandshakeNotComplete)
}

func TestHandshakeCompleteRejectsMoreMessages(t *testing.T) {
	initiator, responder := completeHandshake(t)

	_, err := initiator.WriteMessage(nil)
	assert.ErrorIs(t, err, ErrHandshakeComplete)
	_, err = responder.ReadMessage(nil)
	assert.ErrorIs(t, err, ErrHandshakeComplete)
}

func TestHandshakeWithProvidedKey(t *testing.T) {
	key, err := GenerateKeypair()
	require.NoError(t, err)

	initiator, err := NewHandshake(Initiator, key)
	require.NoError(t, err)
	responder, err := NewHandshake(Responder, DHKey{})
	require.NoError(t, err)

	msg1, err := initiator.WriteMessage(nil)
	require.NoError(t, err)
	_, err = responder.ReadMessage(msg1)
	require.NoError(t, err)
	msg2, err := responder.WriteMessage(nil)
	require.NoError(t, err)
	_, err = initiator.ReadMessage(msg2)
	require.NoError(t, err)
	msg3, err := initiator.WriteMessage(nil)
	require.NoError(t, err)
	_, err = responder.ReadMessage(msg3)
	require.NoError(t, err)

	assert.Equal(t, key.Public, responder.PeerStatic())
	assert.Equal(t, "initiator", Initiator.String())
	assert.Equal(t, "responder", Responder.String())
}
