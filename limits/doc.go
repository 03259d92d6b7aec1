// Package limits provides centralized frame size constants and validation functions
// for the head-unit messenger.
//
// # Frame Size Hierarchy
//
//   - MaxFramePayloadSize (16384 bytes): the largest payload one frame carries.
//     A message below this size is sent as a single BULK frame; a message of this
//     size or larger is split into FIRST, optional MIDDLE and LAST frames.
//
//   - MaxWirePayloadSize (65535 bytes): the largest chunk payload on the wire, the
//     range of a SHORT size field. A sealed chunk may exceed MaxFramePayloadSize by
//     whatever its cipher adds, up to this bound.
//
//   - MaxFrameSize: header, extended size field and MaxWirePayloadSize. Readers use
//     it to bound buffer allocation.
//
//   - MaxMessageSize (16MB): the largest reassembled inbound message.
//
// # Validation Functions
//
//	if err := limits.ValidatePayload(payload); err != nil {
//	    // ErrMessageTooShort or ErrMessageTooLarge
//	}
//
// # Error Types
//
//   - ErrMessageEmpty: Returned when an empty or nil message is provided
//   - ErrMessageTooLarge: Returned when message exceeds the specified limit
//   - ErrMessageTooShort: Returned when a payload lacks its 2-byte message id
package limits
