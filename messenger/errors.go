package messenger

import "errors"

var (
	// ErrMalformedFrame indicates bytes that do not decode to a frame, or a frame
	// sequence that does not reassemble into a message
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrIncompleteFrame indicates the buffer ends before the frame does
	ErrIncompleteFrame = errors.New("incomplete frame")

	// ErrMalformedMessage indicates a payload too short to carry its message id
	ErrMalformedMessage = errors.New("malformed message")

	// ErrOperationInProgress is returned when a send is requested while another is in flight
	ErrOperationInProgress = errors.New("send operation in progress")

	// ErrCryptoFailure wraps errors reported by the cryptor
	ErrCryptoFailure = errors.New("crypto failure")

	// ErrTransportFailure wraps errors reported by the transport
	ErrTransportFailure = errors.New("transport failure")

	// ErrSendTimeout indicates a send session exceeded the configured timeout
	ErrSendTimeout = errors.New("send timeout")

	// ErrNoSendPath indicates a send without a configured transport or cryptor
	ErrNoSendPath = errors.New("no send path configured")

	// ErrHandlerNotFound indicates an inbound message without a channel handler
	ErrHandlerNotFound = errors.New("handler not found")
)
