// Package headunit assembles the Android Auto head-unit messenger.
//
// A HeadUnit owns the pieces the subpackages provide and wires them together:
//
//	      inbound bytes                            outbound frames
//	           │                                          ▲
//	messenger.Assembler ──► interceptor.Router      interfaces.ITransport
//	                           │   ▲                      ▲
//	                  handlers │   │ side channel   messenger.MessageSender
//	                           ▼   │                      ▲
//	                 interceptor.Outbox ──────────────────┘
//
// Inbound frames are reassembled, decrypted and routed to the handler of their
// channel. Handler replies go through the Outbox, which hands them to the
// single-session MessageSender one at a time. Local media components exchange
// video, audio, touch, sensor and microphone packets with the handlers over
// the sidechannel queue.
//
// # Usage
//
//	hu, err := headunit.New(ctx, headunit.Options{
//	    Config:    config,
//	    Transport: transport,
//	})
//	if err != nil {
//	    return err
//	}
//	defer hu.Close()
//
//	// after the handshake
//	hu.SetCipher(cipher)
//	return hu.Serve(ctx, conn)
package headunit
