package testing

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
)

// SimulatedTag is appended by SimulatedCryptor to every sealed chunk
var SimulatedTag = []byte("SIMTAG16SIMTAG16")

// ErrSimulatedCrypto is the failure injected by FailAfter
var ErrSimulatedCrypto = errors.New("simulated crypto failure")

// SimulatedCryptor implements interfaces.ICipher without real cryptography:
// Encrypt XORs each byte with a key byte and appends SimulatedTag, Decrypt
// reverses it. Sealed chunks are therefore distinguishable from plaintext and
// grow by len(SimulatedTag), like an AEAD.
type SimulatedCryptor struct {
	mu        sync.Mutex
	key       byte
	calls     int
	failAfter int
}

// NewSimulatedCryptor creates a cryptor using key for the XOR
func NewSimulatedCryptor(key byte) *SimulatedCryptor {
	return &SimulatedCryptor{key: key, failAfter: -1}
}

// FailAfter makes every Encrypt call after the first n fail; negative disables
func (c *SimulatedCryptor) FailAfter(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failAfter = n
}

// Calls returns the number of Encrypt calls so far
func (c *SimulatedCryptor) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Encrypt implements interfaces.ICryptor
func (c *SimulatedCryptor) Encrypt(plaintext []byte) ([]byte, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failAfter >= 0 && c.calls >= c.failAfter {
		c.calls++
		return nil, 0, ErrSimulatedCrypto
	}
	c.calls++

	out := make([]byte, len(plaintext), len(plaintext)+len(SimulatedTag))
	for i, b := range plaintext {
		out[i] = b ^ c.key
	}
	out = append(out, SimulatedTag...)
	return out, len(out), nil
}

// SealedSize implements interfaces.ICryptor
func (c *SimulatedCryptor) SealedSize(n int) int {
	return n + len(SimulatedTag)
}

// Decrypt implements interfaces.IDecryptor
func (c *SimulatedCryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < len(SimulatedTag) || !bytes.HasSuffix(ciphertext, SimulatedTag) {
		return nil, fmt.Errorf("%w: missing tag", ErrSimulatedCrypto)
	}
	body := ciphertext[:len(ciphertext)-len(SimulatedTag)]
	out := make([]byte, len(body))
	for i, b := range body {
		out[i] = b ^ c.key
	}
	return out, nil
}
