package cryptor

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/flynn/noise"
	"github.com/sirupsen/logrus"
)

var (
	// ErrHandshakeNotComplete indicates the handshake has not produced ciphers yet
	ErrHandshakeNotComplete = errors.New("handshake not complete")
	// ErrHandshakeComplete indicates a handshake message after completion
	ErrHandshakeComplete = errors.New("handshake already complete")
	// ErrOutOfTurn indicates a read or write when the peer should act
	ErrOutOfTurn = errors.New("handshake message out of turn")
)

// Role selects which side of the handshake this end plays
type Role uint8

const (
	// Initiator sends the first handshake message
	Initiator Role = iota
	// Responder answers it
	Responder
)

func (r Role) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "responder"
}

// DHKey is a Curve25519 static keypair
type DHKey = noise.DHKey

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

const noiseTagSize = 16

// GenerateKeypair creates a fresh static keypair
func GenerateKeypair() (DHKey, error) {
	return cipherSuite.GenerateKeypair(rand.Reader)
}

// Handshake runs the Noise XX pattern. Neither side needs to know the other's
// static key in advance; both learn it during the exchange.
//
//	-> e
//	<- e, ee, s, es
//	-> s, se
type Handshake struct {
	mu       sync.Mutex
	role     Role
	state    *noise.HandshakeState
	messages int
	send     *noise.CipherState
	recv     *noise.CipherState
}

// NewHandshake prepares a handshake. A zero static key is replaced by a
// freshly generated one.
func NewHandshake(role Role, static DHKey) (*Handshake, error) {
	if len(static.Private) == 0 {
		var err error
		static, err = GenerateKeypair()
		if err != nil {
			return nil, fmt.Errorf("failed to generate static keypair: %w", err)
		}
	}

	state, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Random:        rand.Reader,
		Pattern:       noise.HandshakeXX,
		Initiator:     role == Initiator,
		StaticKeypair: static,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create handshake state: %w", err)
	}

	return &Handshake{role: role, state: state}, nil
}

// myTurn reports whether this side writes the next message.
// The initiator writes messages 0 and 2, the responder message 1.
func (h *Handshake) myTurn() bool {
	initiatorTurn := h.messages%2 == 0
	return initiatorTurn == (h.role == Initiator)
}

// WriteTurn reports whether the next handshake message is ours to write
func (h *Handshake) WriteTurn() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.send == nil && h.myTurn()
}

// WriteMessage produces the next handshake message carrying payload
func (h *Handshake) WriteMessage(payload []byte) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.send != nil {
		return nil, ErrHandshakeComplete
	}
	if !h.myTurn() {
		return nil, fmt.Errorf("%w: %s cannot write message %d", ErrOutOfTurn, h.role, h.messages)
	}

	msg, cs1, cs2, err := h.state.WriteMessage(nil, payload)
	if err != nil {
		return nil, fmt.Errorf("%s write failed: %w", h.role, err)
	}
	h.messages++
	h.split(cs1, cs2)
	return msg, nil
}

// ReadMessage consumes the peer's next handshake message and returns its payload
func (h *Handshake) ReadMessage(msg []byte) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.send != nil {
		return nil, ErrHandshakeComplete
	}
	if h.myTurn() {
		return nil, fmt.Errorf("%w: %s cannot read message %d", ErrOutOfTurn, h.role, h.messages)
	}

	payload, cs1, cs2, err := h.state.ReadMessage(nil, msg)
	if err != nil {
		return nil, fmt.Errorf("%s read failed: %w", h.role, err)
	}
	h.messages++
	h.split(cs1, cs2)
	return payload, nil
}

// split stores the transport ciphers once the pattern finishes. cs1 carries
// initiator to responder traffic.
func (h *Handshake) split(cs1, cs2 *noise.CipherState) {
	if cs1 == nil || cs2 == nil {
		return
	}
	if h.role == Initiator {
		h.send, h.recv = cs1, cs2
	} else {
		h.send, h.recv = cs2, cs1
	}

	logrus.WithFields(logrus.Fields{
		"function": "Handshake.split",
		"package":  "cryptor",
		"role":     h.role.String(),
		"messages": h.messages,
	}).Info("Noise handshake complete")
}

// Complete reports whether transport ciphers are available
func (h *Handshake) Complete() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.send != nil
}

// PeerStatic returns the peer's static public key once it has been received
func (h *Handshake) PeerStatic() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.PeerStatic()
}

// Cipher returns the session cipher negotiated by the handshake
func (h *Handshake) Cipher() (*NoiseCipher, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.send == nil {
		return nil, ErrHandshakeNotComplete
	}
	return &NoiseCipher{send: h.send, recv: h.recv}, nil
}

// NoiseCipher seals chunks with the transport cipher states of a Noise session
type NoiseCipher struct {
	mu   sync.Mutex
	send *noise.CipherState
	recv *noise.CipherState
}

// Encrypt implements interfaces.ICryptor
func (c *NoiseCipher) Encrypt(plaintext []byte) ([]byte, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sealed, err := c.send.Encrypt(nil, nil, plaintext)
	if err != nil {
		return nil, 0, fmt.Errorf("noise encrypt: %w", err)
	}
	return sealed, len(sealed), nil
}

// SealedSize implements interfaces.ICryptor; ChaChaPoly appends a 16 byte tag
func (c *NoiseCipher) SealedSize(n int) int {
	return n + noiseTagSize
}

// Decrypt implements interfaces.IDecryptor
func (c *NoiseCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	plain, err := c.recv.Decrypt(nil, nil, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}
	return plain, nil
}
