package headunit

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/headunit/aap"
	"github.com/opd-ai/headunit/cryptor"
	"github.com/opd-ai/headunit/messenger"
)

// ErrNoTransport is returned by Authenticate before a transport is set
var ErrNoTransport = errors.New("no transport")

// Authenticate runs hs with the phone over the control channel and installs
// the negotiated cipher. Handshake messages travel as plain control messages
// with id MessageEncapsulatedSSL. Other inbound messages that arrive meanwhile
// are routed as usual. After the handshake the head unit sends AuthComplete.
func (h *HeadUnit) Authenticate(ctx context.Context, r io.Reader, hs *cryptor.Handshake) error {
	h.mu.Lock()
	hasTransport := h.transport != nil
	h.mu.Unlock()
	if !hasTransport {
		return ErrNoTransport
	}
	if !h.sender.CanSend() {
		// plain control traffic needs a cryptor slot even though nothing is sealed
		h.sender.SetCryptor(disabledCryptor{})
	}

	logger := logrus.WithFields(logrus.Fields{
		"function": "HeadUnit.Authenticate",
	})
	logger.Info("Starting handshake")

	for !hs.Complete() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if hs.WriteTurn() {
			msg, err := hs.WriteMessage(nil)
			if err != nil {
				return fmt.Errorf("handshake write: %w", err)
			}
			if err := h.sendControl(ctx, aap.MessageEncapsulatedSSL, msg); err != nil {
				return fmt.Errorf("handshake send: %w", err)
			}
			continue
		}

		body, err := h.nextHandshakeMessage(r)
		if err != nil {
			return fmt.Errorf("handshake receive: %w", err)
		}
		if _, err := hs.ReadMessage(body); err != nil {
			return fmt.Errorf("handshake read: %w", err)
		}
	}

	cipher, err := hs.Cipher()
	if err != nil {
		return err
	}
	h.SetCipher(cipher)

	body, err := (&aap.AuthComplete{Status: aap.StatusSuccess}).Marshal()
	if err != nil {
		return err
	}
	if err := h.sendControl(ctx, aap.MessageAuthComplete, body); err != nil {
		return fmt.Errorf("auth complete: %w", err)
	}

	logger.WithField("peer_static", fmt.Sprintf("%x", hs.PeerStatic())).Info("Handshake complete")
	return nil
}

// sendControl queues a plain control message behind any reply in flight and
// waits for its own send to settle
func (h *HeadUnit) sendControl(ctx context.Context, id messenger.MessageID, body []byte) error {
	msg := messenger.NewMessage(messenger.ChannelControl, messenger.EncryptionPlain, messenger.MessageControl, id, body)
	promise, err := h.outbox.Submit(msg)
	if err != nil {
		return err
	}
	return promise.Wait(ctx)
}

// nextHandshakeMessage reads frames until a handshake message completes
func (h *HeadUnit) nextHandshakeMessage(r io.Reader) ([]byte, error) {
	for {
		frame, err := messenger.ReadFrame(r)
		if err != nil {
			return nil, err
		}
		msg, err := h.assembler.Push(frame)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			continue
		}

		id, err := msg.ID()
		if err == nil && msg.ChannelID == messenger.ChannelControl && id == aap.MessageEncapsulatedSSL {
			return msg.Body(), nil
		}
		h.router.Route(msg)
	}
}
