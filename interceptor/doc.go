// Package interceptor routes reassembled inbound messages to per-channel
// handlers and lets those handlers answer through the messenger.
//
// A Registry maps each ChannelID to one Handler. DefaultRegistry installs the
// handlers for every service the head unit advertises; a Router built over it
// dispatches messages, fans the outbound Sender out to every handler and
// connects side-channel aware handlers to a sidechannel.Transport.
//
// Every handler answers a CONTROL ChannelOpenRequest on its channel with a
// successful ChannelOpenResponse carried on the same channel and encryption
// type, and remembers both for unsolicited sends triggered later from the side
// channel. Handle returns true when the message was consumed.
//
// Handlers reply through an Outbox, which feeds the single-session
// MessageSender one message at a time so that back to back replies are not
// rejected as in progress.
package interceptor
