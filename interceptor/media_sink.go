package interceptor

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/headunit/aap"
	"github.com/opd-ai/headunit/messenger"
	"github.com/opd-ai/headunit/sidechannel"
)

// noSession marks a media sink that has not seen a Start message
const noSession int32 = -1

var sinkSideTypes = map[messenger.ChannelID]sidechannel.MsgType{
	messenger.ChannelMediaSinkVideo:          sidechannel.Video,
	messenger.ChannelMediaSinkMediaAudio:     sidechannel.MediaAudio,
	messenger.ChannelMediaSinkGuidanceAudio:  sidechannel.GuidanceAudio,
	messenger.ChannelMediaSinkSystemAudio:    sidechannel.SystemAudio,
	messenger.ChannelMediaSinkTelephonyAudio: sidechannel.TelephonyAudio,
}

// MediaSinkHandler serves a video or audio sink channel. It accepts the
// phone's stream setup, forwards media payloads to the side channel and
// acknowledges each one so the phone keeps streaming.
type MediaSinkHandler struct {
	baseHandler

	video    bool
	sideType sidechannel.MsgType
	now      func() time.Time

	side      sidechannel.Transport
	sessionID int32
	trace     uuid.UUID
	forwarded uint64
}

var (
	_ Handler           = (*MediaSinkHandler)(nil)
	_ SideChannelBinder = (*MediaSinkHandler)(nil)
)

// NewMediaSinkHandler creates the sink for channelID. now supplies timestamps
// for payloads that arrive without one; nil uses time.Now.
func NewMediaSinkHandler(channelID messenger.ChannelID, now func() time.Time) *MediaSinkHandler {
	if now == nil {
		now = time.Now
	}
	sideType, ok := sinkSideTypes[channelID]
	if !ok {
		sideType = sidechannel.MediaAudio
	}
	return &MediaSinkHandler{
		baseHandler: newBaseHandler(channelID.String()),
		video:       channelID == messenger.ChannelMediaSinkVideo,
		sideType:    sideType,
		now:         now,
		sessionID:   noSession,
	}
}

// BindSideChannel implements SideChannelBinder
func (h *MediaSinkHandler) BindSideChannel(transport sidechannel.Transport) {
	h.mu.Lock()
	h.side = transport
	h.mu.Unlock()
}

// SessionID returns the session announced by the last Start, or -1
func (h *MediaSinkHandler) SessionID() int32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessionID
}

// Forwarded returns the number of payloads acknowledged
func (h *MediaSinkHandler) Forwarded() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.forwarded
}

// Handle implements Handler
func (h *MediaSinkHandler) Handle(msg *messenger.Message) bool {
	return h.dispatch(msg, h.handleSpecific)
}

func (h *MediaSinkHandler) handleSpecific(msg *messenger.Message, id messenger.MessageID, body []byte) bool {
	switch id {
	case aap.MediaMessageSetup:
		return h.handleSetup(msg, body)
	case aap.MediaMessageStart:
		var start aap.Start
		if h.parse("Start", body, &start) {
			h.sessionID = start.SessionID
			h.trace = uuid.New()
			h.log("Handle").WithFields(logrus.Fields{
				"session_id":          start.SessionID,
				"configuration_index": start.ConfigurationIndex,
				"trace":               h.trace.String(),
			}).Info("Media session started")
		}
		return false
	case aap.MediaMessageStop:
		if aap.Validate(body) == nil {
			h.log("Handle").WithField("session_id", h.sessionID).Info("Media session stopped")
		}
		return false
	case aap.MediaMessageVideoFocusRequest:
		if h.video {
			var req aap.StatusOnly
			if h.parse("VideoFocusRequest", body, &req) {
				h.log("Handle").WithField("request", req.String()).Debug("Video focus request")
			}
		}
		return false
	case aap.MediaMessageCodecConfig, aap.MediaMessageData:
		return h.handleMediaData(msg, body)
	case aap.MediaMessageAudioUnderflow:
		if h.video {
			return false
		}
		h.log("Handle").WithField("session_id", h.sessionID).Warn("Audio underflow reported")
		return true
	default:
		return false
	}
}

func (h *MediaSinkHandler) handleSetup(msg *messenger.Message, body []byte) bool {
	var setup aap.Setup
	if !h.parse("Setup", body, &setup) {
		return false
	}
	h.log("handleSetup").WithFields(logrus.Fields{
		"channel": msg.ChannelID.String(),
		"codec":   setup.Type,
	}).Info("Media setup")

	config := &aap.Config{
		Status:               aap.MediaConfigReady,
		MaxUnacked:           1,
		ConfigurationIndices: []uint32{0},
	}
	if !h.reply(msg, aap.MediaMessageConfig, config) {
		return false
	}
	if h.video {
		h.reply(msg, aap.MediaMessageVideoFocusNotification, &aap.VideoFocusNotification{
			Focus:       aap.VideoFocusProjected,
			Unsolicited: false,
		})
	}
	return true
}

func (h *MediaSinkHandler) handleMediaData(msg *messenger.Message, body []byte) bool {
	if h.sender == nil {
		h.log("handleMediaData").Error("No message sender, cannot acknowledge media")
		return false
	}
	if h.sessionID < 0 {
		h.log("handleMediaData").Error("No media session, cannot acknowledge media")
		return false
	}

	ts, data, err := messenger.SplitTimestamp(body)
	if err != nil {
		ts, data = messenger.TimestampFromTime(h.now()), body
	}

	if h.ensureSideChannel() {
		h.side.Send(h.sideType, uint64(ts), data)
	}

	h.forwarded++
	h.sender.SendProtobuf(msg.ChannelID, msg.EncryptionType, messenger.MessageSpecific,
		aap.MediaMessageAck, &aap.Ack{SessionID: h.sessionID, Ack: 1})
	return true
}

// ensureSideChannel starts the bound transport on first use
func (h *MediaSinkHandler) ensureSideChannel() bool {
	if h.side == nil {
		return false
	}
	if h.side.IsRunning() {
		return true
	}
	if err := h.side.Start(); err != nil && !h.side.IsRunning() {
		h.log("ensureSideChannel").WithError(err).Error("Failed to start side channel")
		return false
	}
	return true
}

// Close forgets the media session
func (h *MediaSinkHandler) Close() error {
	h.mu.Lock()
	h.sessionID = noSession
	h.mu.Unlock()
	return nil
}
