package cryptor

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrInvalidKey indicates a key of the wrong length
	ErrInvalidKey = errors.New("invalid cipher key")
	// ErrNonceExhausted indicates the direction's counter would wrap
	ErrNonceExhausted = errors.New("nonce space exhausted")
	// ErrOpenFailed indicates a chunk that failed authentication
	ErrOpenFailed = errors.New("ciphertext authentication failed")
)

// KeySize is the length of an AEADCipher key
const KeySize = chacha20poly1305.KeySize

// AEADCipher seals chunks with ChaCha20-Poly1305. The send and receive
// directions keep separate 64-bit counters that form the low bytes of the nonce;
// the high bytes hold a direction label so both peers can share one key.
type AEADCipher struct {
	aead cipher.AEAD

	mu        sync.Mutex
	sendLabel uint32
	recvLabel uint32
	sendCount uint64
	recvCount uint64
}

// Direction labels for NewAEADCipher
const (
	LabelHeadUnit uint32 = 0x48550000
	LabelPhone    uint32 = 0x50480000
)

// NewAEADCipher creates a cipher that seals with sendLabel nonces and opens
// with recvLabel nonces. The peer must be created with the labels swapped.
func NewAEADCipher(key []byte, sendLabel, recvLabel uint32) (*AEADCipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "NewAEADCipher",
		"package":    "cryptor",
		"send_label": fmt.Sprintf("%#08x", sendLabel),
		"recv_label": fmt.Sprintf("%#08x", recvLabel),
	}).Debug("Created AEAD cipher")

	return &AEADCipher{aead: aead, sendLabel: sendLabel, recvLabel: recvLabel}, nil
}

func nonceFor(label uint32, counter uint64) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint32(nonce[0:4], label)
	binary.BigEndian.PutUint64(nonce[4:12], counter)
	return nonce
}

// Encrypt implements interfaces.ICryptor
func (c *AEADCipher) Encrypt(plaintext []byte) ([]byte, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sendCount == ^uint64(0) {
		return nil, 0, ErrNonceExhausted
	}
	sealed := c.aead.Seal(nil, nonceFor(c.sendLabel, c.sendCount), plaintext, nil)
	c.sendCount++
	return sealed, len(sealed), nil
}

// SealedSize implements interfaces.ICryptor
func (c *AEADCipher) SealedSize(n int) int {
	return n + chacha20poly1305.Overhead
}

// Decrypt implements interfaces.IDecryptor
func (c *AEADCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recvCount == ^uint64(0) {
		return nil, ErrNonceExhausted
	}
	plain, err := c.aead.Open(nil, nonceFor(c.recvLabel, c.recvCount), ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk %d: %w", ErrOpenFailed, c.recvCount, err)
	}
	c.recvCount++
	return plain, nil
}

// Counters returns the number of chunks sealed and opened
func (c *AEADCipher) Counters() (sent, received uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendCount, c.recvCount
}
