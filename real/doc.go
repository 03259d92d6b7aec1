// Package real provides the production transport for the messenger.
//
// StreamTransport implements interfaces.ITransportCloser over any io.Writer:
// a USB accessory endpoint opened as a file, or a TCP connection to a phone
// running wireless projection. Frames are written by a single goroutine in the
// order Send was called, so the completion of frame N always fires before the
// write of frame N+1 starts.
//
// # Retries
//
// A failed write is retried up to StreamConfig.RetryAttempts times with linear
// backoff (500ms, 1s, ...). Partial writes continue from the first unwritten
// byte and do not count as failures. The Sleeper used for backoff can be
// replaced for deterministic tests:
//
//	t := real.NewStreamTransport(conn, real.StreamConfig{RetryAttempts: 3})
//	t.SetSleeper(noSleep{})
//
// # Shutdown
//
// Close stops accepting frames, closes the writer when it is an io.Closer and
// fails every queued frame with ErrTransportClosed.
package real
