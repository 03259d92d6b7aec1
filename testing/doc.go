// Package testing provides simulation infrastructure for deterministic testing
// of the head-unit messenger.
//
// # Overview
//
// SimulatedTransport mirrors the production stream transport but operates
// entirely in memory. Every write is recorded so tests can decode and verify
// the exact frames the messenger produced.
//
// # Simulation vs Real Implementation
//
//   - Simulation (this package): writes are recorded; completions run inline or,
//     with manual completion, when the test calls CompleteNext.
//
//   - Real (real package): writes go to an io.Writer such as a USB endpoint or
//     TCP connection from a single writer goroutine.
//
// Both implement interfaces.ITransport, allowing the factory package to switch
// between them.
//
// # Usage
//
//	sim := testing.NewSimulatedTransport()
//	sim.FailAt(1, errors.New("usb stall")) // second write fails
//	sim.SetManualCompletion(true)
//
//	// ... send through a messenger.MessageSender ...
//
//	sim.WaitForSends(1, time.Second)
//	sim.CompleteNext(nil)
//
// SimulatedCryptor provides a reversible, tag-appending stand-in for a session
// cipher with injectable failures.
package testing
