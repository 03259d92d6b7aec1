package interceptor

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/headunit/aap"
	"github.com/opd-ai/headunit/messenger"
)

// StatusHandler serves channels whose messages the head unit only observes.
// Each known id has a label; its body must be a well-formed protobuf message
// and is logged. Unknown ids are not consumed.
type StatusHandler struct {
	baseHandler

	known map[messenger.MessageID]string
	seen  map[messenger.MessageID]uint64
}

var _ Handler = (*StatusHandler)(nil)

// NewStatusHandler creates a handler for channelID accepting the ids in known
func NewStatusHandler(channelID messenger.ChannelID, known map[messenger.MessageID]string) *StatusHandler {
	return &StatusHandler{
		baseHandler: newBaseHandler(channelID.String()),
		known:       known,
		seen:        make(map[messenger.MessageID]uint64),
	}
}

// Handle implements Handler
func (h *StatusHandler) Handle(msg *messenger.Message) bool {
	return h.dispatch(msg, h.handleSpecific)
}

func (h *StatusHandler) handleSpecific(msg *messenger.Message, id messenger.MessageID, body []byte) bool {
	label, ok := h.known[id]
	if !ok {
		return false
	}
	var status aap.StatusOnly
	if !h.parse(label, body, &status) {
		return false
	}
	h.seen[id]++
	h.log("Handle").WithFields(logrus.Fields{
		"message": label,
		"summary": status.String(),
		"bytes":   len(body),
	}).Debug("Status message")
	return true
}

// Seen returns how many messages with id were consumed
func (h *StatusHandler) Seen(id messenger.MessageID) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seen[id]
}

// NewNavigationStatusHandler observes instrument cluster navigation updates
func NewNavigationStatusHandler() *StatusHandler {
	return NewStatusHandler(messenger.ChannelNavigationStatus, map[messenger.MessageID]string{
		aap.NavigationMessageStart:           "NavigationStart",
		aap.NavigationMessageStop:            "NavigationStop",
		aap.NavigationMessageStatus:          "NavigationStatus",
		aap.NavigationMessageTurnEvent:       "NavigationTurnEvent",
		aap.NavigationMessageDistanceEvent:   "NavigationDistanceEvent",
		aap.NavigationMessageState:           "NavigationState",
		aap.NavigationMessageCurrentPosition: "NavigationCurrentPosition",
	})
}

// NewPhoneStatusHandler observes call state updates
func NewPhoneStatusHandler() *StatusHandler {
	return NewStatusHandler(messenger.ChannelPhoneStatus, map[messenger.MessageID]string{
		aap.PhoneMessageStatus:      "PhoneStatus",
		aap.PhoneMessageStatusInput: "PhoneStatusInput",
	})
}

// NewMediaPlaybackStatusHandler observes now-playing updates
func NewMediaPlaybackStatusHandler() *StatusHandler {
	return NewStatusHandler(messenger.ChannelMediaPlaybackStatus, map[messenger.MessageID]string{
		aap.PlaybackMessageStatus:   "MediaPlaybackStatus",
		aap.PlaybackMessageInput:    "MediaPlaybackInput",
		aap.PlaybackMessageMetadata: "MediaPlaybackMetadata",
	})
}

// NewMediaBrowserHandler observes media library browsing
func NewMediaBrowserHandler() *StatusHandler {
	return NewStatusHandler(messenger.ChannelMediaBrowser, map[messenger.MessageID]string{
		aap.BrowserMessageRootNode:   "MediaRootNode",
		aap.BrowserMessageSourceNode: "MediaSourceNode",
		aap.BrowserMessageListNode:   "MediaListNode",
		aap.BrowserMessageSongNode:   "MediaSongNode",
		aap.BrowserMessageGetNode:    "MediaGetNode",
		aap.BrowserMessageInput:      "MediaBrowseInput",
	})
}

// NewGenericNotificationHandler observes generic notifications
func NewGenericNotificationHandler() *StatusHandler {
	return NewStatusHandler(messenger.ChannelGenericNotification, map[messenger.MessageID]string{
		aap.NotificationMessageSubscribe:   "GenericNotificationSubscribe",
		aap.NotificationMessageUnsubscribe: "GenericNotificationUnsubscribe",
		aap.NotificationMessageMessage:     "GenericNotificationMessage",
		aap.NotificationMessageAck:         "GenericNotificationAck",
	})
}

// NewRadioHandler observes the radio service
func NewRadioHandler() *StatusHandler {
	return NewStatusHandler(messenger.ChannelRadio, map[messenger.MessageID]string{
		aap.RadioMessageActiveRadioNotification:         "ActiveRadioNotification",
		aap.RadioMessageSelectActiveRadioRequest:        "SelectActiveRadioRequest",
		aap.RadioMessageStepChannelRequest:              "StepChannelRequest",
		aap.RadioMessageStepChannelResponse:             "StepChannelResponse",
		aap.RadioMessageSeekStationRequest:              "SeekStationRequest",
		aap.RadioMessageSeekStationResponse:             "SeekStationResponse",
		aap.RadioMessageScanStationsRequest:             "ScanStationsRequest",
		aap.RadioMessageScanStationsResponse:            "ScanStationsResponse",
		aap.RadioMessageTuneToStationRequest:            "TuneToStationRequest",
		aap.RadioMessageTuneToStationResponse:           "TuneToStationResponse",
		aap.RadioMessageGetProgramListRequest:           "GetProgramListRequest",
		aap.RadioMessageGetProgramListResponse:          "GetProgramListResponse",
		aap.RadioMessageStationPresetsNotification:      "StationPresetsNotification",
		aap.RadioMessageCancelOperationsRequest:         "CancelOperationsRequest",
		aap.RadioMessageCancelOperationsResponse:        "CancelOperationsResponse",
		aap.RadioMessageConfigureChannelSpacingRequest:  "ConfigureChannelSpacingRequest",
		aap.RadioMessageConfigureChannelSpacingResponse: "ConfigureChannelSpacingResponse",
		aap.RadioMessageStationInfoNotification:         "RadioStationInfoNotification",
		aap.RadioMessageMuteRadioRequest:                "MuteRadioRequest",
		aap.RadioMessageMuteRadioResponse:               "MuteRadioResponse",
		aap.RadioMessageGetTrafficUpdateRequest:         "GetTrafficUpdateRequest",
		aap.RadioMessageGetTrafficUpdateResponse:        "GetTrafficUpdateResponse",
		aap.RadioMessageSourceRequest:                   "RadioSourceRequest",
		aap.RadioMessageSourceResponse:                  "RadioSourceResponse",
		aap.RadioMessageStateNotification:               "RadioStateNotification",
	})
}

// VendorExtensionHandler consumes every vendor extension message
type VendorExtensionHandler struct {
	baseHandler
}

var _ Handler = (*VendorExtensionHandler)(nil)

// NewVendorExtensionHandler creates the vendor extension handler
func NewVendorExtensionHandler() *VendorExtensionHandler {
	return &VendorExtensionHandler{baseHandler: newBaseHandler(messenger.ChannelVendorExtension.String())}
}

// Handle implements Handler
func (h *VendorExtensionHandler) Handle(msg *messenger.Message) bool {
	return h.dispatch(msg, func(_ *messenger.Message, id messenger.MessageID, body []byte) bool {
		h.log("Handle").WithFields(logrus.Fields{
			"message_id": uint16(id),
			"bytes":      len(body),
		}).Debug("Vendor extension message")
		return true
	})
}
