// Package interfaces defines the external capabilities consumed by the
// head-unit messenger and the configuration shared by its implementations.
//
// # Capabilities
//
// The messenger core never performs I/O or cryptography itself. It consumes:
//
//   - ITransport: asynchronous "send bytes, get completion" over the physical link.
//     The real package provides a stream implementation; the testing package a
//     recording simulation.
//
//   - ICryptor / IDecryptor: per-chunk seal and open. SealedSize lets the sender
//     announce a message's sealed length before sealing its chunks one at a time
//     as they are written. The cryptor package adapts
//     ChaCha20-Poly1305 and Noise cipher states to these interfaces.
//
// # Configuration
//
// MessengerConfig carries the pipeline settings. The factory package builds it from
// defaults, an optional YAML file and HEADUNIT_* environment variables:
//
//	cfg := &interfaces.MessengerConfig{SendTimeout: 5000, WorkerCount: 4, QueueDepth: 256}
//	if err := cfg.Validate(); err != nil {
//	    // ErrInvalidTimeout, ErrInvalidWorkerCount or ErrInvalidQueueDepth
//	}
package interfaces
