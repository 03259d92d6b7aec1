// Package messenger implements the message transport core of the head unit:
// the frame codec, the outbound MessageSender, the channel registry and the
// inbound Assembler.
//
// # Framing
//
// Every frame starts with a 2-byte header (channel id, flags) and a size field.
// Flags carry the frame type in bits 0-1 (MIDDLE=0, FIRST=1, LAST=2, BULK=3),
// the message type in bit 2 and the encryption type in bit 3. FIRST frames
// carry an extended size field with the total message length; all others a
// 2-byte payload length.
//
// # Sending
//
// MessageSender sends one message at a time. Messages below 16384 bytes go out
// as a single BULK frame; larger ones are split, and each frame is handed to the
// transport only after the previous one completed:
//
//	promise := sender.Dispatch(messenger.NewMessage(messenger.ChannelSensor,
//	    messenger.EncryptionPlain, messenger.MessageSpecific, 0x8003, body))
//	promise.Then(func() { ... }, func(err error) { ... })
//
// A message submitted while another is in flight fails with
// ErrOperationInProgress. Continuations run on the sender's strand and may
// start the next send.
//
// # Receiving
//
// Assembler reverses the framing, optionally decrypting, and yields Messages
// that the interceptor package routes to channel handlers.
package messenger
