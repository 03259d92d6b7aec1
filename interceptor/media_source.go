package interceptor

import (
	"fmt"

	"github.com/pion/opus"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/headunit/aap"
	"github.com/opd-ai/headunit/messenger"
)

// opusFrameBytes holds one decoded 20 ms frame of 48 kHz 16-bit stereo PCM
const opusFrameBytes = 1920 * 2

// MediaSourceHandler serves the microphone channel. The phone opens and
// closes the microphone; while it is open, captured audio arriving on the side
// channel is sent to the phone as timestamped DATA messages.
type MediaSourceHandler struct {
	baseHandler

	codec   string
	decoder *opus.Decoder
	pcm     []byte

	micEnabled  bool
	sessionID   uint32
	nextSession uint32
	sentChunks  uint64
}

var (
	_ Handler            = (*MediaSourceHandler)(nil)
	_ MicrophoneConsumer = (*MediaSourceHandler)(nil)
)

// NewMediaSourceHandler creates the microphone handler. With CodecOpus the
// side-channel packets are Opus frames and are decoded to PCM before sending.
func NewMediaSourceHandler(codec string) *MediaSourceHandler {
	h := &MediaSourceHandler{
		baseHandler: newBaseHandler(messenger.ChannelMediaSourceMicrophone.String()),
		codec:       codec,
	}
	if codec == CodecOpus {
		decoder := opus.NewDecoder()
		h.decoder = &decoder
		h.pcm = make([]byte, opusFrameBytes)
	}
	return h
}

// Handle implements Handler
func (h *MediaSourceHandler) Handle(msg *messenger.Message) bool {
	return h.dispatch(msg, h.handleSpecific)
}

func (h *MediaSourceHandler) handleSpecific(msg *messenger.Message, id messenger.MessageID, body []byte) bool {
	switch id {
	case aap.MediaMessageSetup:
		var setup aap.Setup
		if !h.parse("Setup", body, &setup) {
			return false
		}
		return h.reply(msg, aap.MediaMessageConfig, &aap.Config{
			Status:               aap.MediaConfigReady,
			MaxUnacked:           1,
			ConfigurationIndices: []uint32{0},
		})
	case aap.MediaMessageMicrophoneRequest:
		return h.handleMicrophoneRequest(msg, body)
	case aap.MediaMessageAck:
		var ack aap.Ack
		if !h.parse("Ack", body, &ack) {
			return false
		}
		h.log("Handle").WithFields(logrus.Fields{
			"session_id": ack.SessionID,
			"ack":        ack.Ack,
		}).Debug("Microphone data acknowledged")
		return true
	default:
		return false
	}
}

func (h *MediaSourceHandler) handleMicrophoneRequest(msg *messenger.Message, body []byte) bool {
	var req aap.MicrophoneRequest
	if !h.parse("MicrophoneRequest", body, &req) {
		return false
	}

	h.micEnabled = req.Open
	if req.Open {
		h.nextSession++
		h.sessionID = h.nextSession
	} else {
		h.sessionID = 0
	}

	h.log("handleMicrophoneRequest").WithFields(logrus.Fields{
		"open":       req.Open,
		"session_id": h.sessionID,
		"codec":      h.codec,
	}).Info("Microphone request")

	return h.reply(msg, aap.MediaMessageMicrophoneResponse, &aap.MicrophoneResponse{
		Status:    aap.StatusSuccess,
		SessionID: h.sessionID,
	})
}

// MicrophoneEnabled reports whether the phone has the microphone open
func (h *MediaSourceHandler) MicrophoneEnabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.micEnabled
}

// OnMicrophoneAudio implements MicrophoneConsumer
func (h *MediaSourceHandler) OnMicrophoneAudio(timestampUsec uint64, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	logger := h.log("OnMicrophoneAudio")
	switch {
	case h.sender == nil:
		logger.Error("No message sender, cannot send microphone audio")
		return
	case !h.opened:
		logger.Error("Channel not open, dropping microphone audio")
		return
	case !h.micEnabled:
		logger.Debug("Microphone not enabled, dropping audio")
		return
	case len(data) == 0:
		logger.Error("Empty microphone audio payload")
		return
	}

	pcm, err := h.decode(data)
	if err != nil {
		logger.WithError(err).Warn("Dropping undecodable microphone packet")
		return
	}

	h.sentChunks++
	payload := messenger.PrependTimestamp(messenger.Timestamp(timestampUsec), pcm)
	h.sender.SendRaw(h.channelID, h.encryption, messenger.MessageSpecific, aap.MediaMessageData, payload)
}

// decode returns PCM for one side-channel packet
func (h *MediaSourceHandler) decode(data []byte) ([]byte, error) {
	if h.decoder == nil {
		return data, nil
	}
	bandwidth, stereo, err := h.decoder.Decode(data, h.pcm)
	if err != nil {
		return nil, fmt.Errorf("opus decode: %w", err)
	}
	h.log("decode").WithFields(logrus.Fields{
		"bandwidth": bandwidth,
		"stereo":    stereo,
	}).Debug("Decoded opus packet")
	return append([]byte(nil), h.pcm...), nil
}

// SentChunks returns the number of audio packets sent to the phone
func (h *MediaSourceHandler) SentChunks() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sentChunks
}
