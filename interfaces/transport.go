package interfaces

import (
	"errors"
	"fmt"
	"time"
)

// ITransport is the physical link consumed by the messenger.
// Send is asynchronous; complete is invoked exactly once, from any goroutine,
// with nil on success or the write error.
type ITransport interface {
	Send(data []byte, complete func(err error))
}

// ICryptor seals outbound chunk payloads.
// Encrypt returns the ciphertext buffer and the number of valid bytes in it.
// SealedSize reports the sealed length of an n byte chunk before it is sealed,
// so a FIRST frame can announce the size of chunks not yet encrypted.
type ICryptor interface {
	Encrypt(plaintext []byte) (ciphertext []byte, size int, err error)
	SealedSize(n int) int
}

// IDecryptor opens inbound chunk payloads sealed by the peer's ICryptor
type IDecryptor interface {
	Decrypt(ciphertext []byte) ([]byte, error)
}

// ICipher is a bidirectional cryptor, the usual shape of a session cipher
type ICipher interface {
	ICryptor
	IDecryptor
}

// ITransportCloser is a transport that owns resources needing release
type ITransportCloser interface {
	ITransport

	// Close stops the transport; pending completions fire with an error
	Close() error

	// IsConnected returns true while the link accepts writes
	IsConnected() bool
}

var (
	// ErrInvalidTimeout indicates a negative send timeout
	ErrInvalidTimeout = errors.New("invalid send timeout")

	// ErrInvalidWorkerCount indicates a non-positive worker count
	ErrInvalidWorkerCount = errors.New("invalid worker count")

	// ErrInvalidQueueDepth indicates a non-positive queue depth
	ErrInvalidQueueDepth = errors.New("invalid queue depth")
)

// MessengerConfig holds configuration for the messenger send pipeline
type MessengerConfig struct {
	// SendTimeout bounds a whole send session in milliseconds; 0 disables the bound
	SendTimeout int

	// WorkerCount is the number of goroutines in the I/O execution pool
	WorkerCount int

	// QueueDepth is the buffered task capacity of the pool
	QueueDepth int

	// EnableEncryption allows ENCRYPTED messages; without it they fail with a crypto error
	EnableEncryption bool
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *MessengerConfig) Validate() error {
	if c.SendTimeout < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTimeout, c.SendTimeout)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkerCount, c.WorkerCount)
	}
	if c.QueueDepth <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQueueDepth, c.QueueDepth)
	}
	return nil
}

// SendTimeoutDuration converts SendTimeout to a time.Duration
func (c *MessengerConfig) SendTimeoutDuration() time.Duration {
	return time.Duration(c.SendTimeout) * time.Millisecond
}
