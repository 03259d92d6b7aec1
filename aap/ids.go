package aap

import "github.com/opd-ai/headunit/messenger"

// Control channel messages, carried with messenger.MessageControl on any channel
const (
	MessageVersionRequest           messenger.MessageID = 0x0001
	MessageVersionResponse          messenger.MessageID = 0x0002
	MessageEncapsulatedSSL          messenger.MessageID = 0x0003
	MessageAuthComplete             messenger.MessageID = 0x0004
	MessageServiceDiscoveryRequest  messenger.MessageID = 0x0005
	MessageServiceDiscoveryResponse messenger.MessageID = 0x0006
	MessageChannelOpenRequest       messenger.MessageID = 0x0007
	MessageChannelOpenResponse      messenger.MessageID = 0x0008
	MessageChannelCloseNotification messenger.MessageID = 0x0009
	MessagePingRequest              messenger.MessageID = 0x000b
	MessagePingResponse             messenger.MessageID = 0x000c
	MessageNavFocusRequest          messenger.MessageID = 0x000d
	MessageNavFocusNotification     messenger.MessageID = 0x000e
	MessageByeByeRequest            messenger.MessageID = 0x000f
	MessageByeByeResponse           messenger.MessageID = 0x0010
	MessageVoiceSessionNotification messenger.MessageID = 0x0011
	MessageAudioFocusRequest        messenger.MessageID = 0x0012
	MessageAudioFocusNotification   messenger.MessageID = 0x0013
)

// Media sink and source messages
const (
	MediaMessageData                   messenger.MessageID = 0x0000
	MediaMessageCodecConfig            messenger.MessageID = 0x0001
	MediaMessageSetup                  messenger.MessageID = 0x8000
	MediaMessageStart                  messenger.MessageID = 0x8001
	MediaMessageStop                   messenger.MessageID = 0x8002
	MediaMessageConfig                 messenger.MessageID = 0x8003
	MediaMessageAck                    messenger.MessageID = 0x8004
	MediaMessageMicrophoneRequest      messenger.MessageID = 0x8005
	MediaMessageMicrophoneResponse     messenger.MessageID = 0x8006
	MediaMessageVideoFocusRequest      messenger.MessageID = 0x8007
	MediaMessageVideoFocusNotification messenger.MessageID = 0x8008
	MediaMessageUpdateUIConfigRequest  messenger.MessageID = 0x8009
	MediaMessageUpdateUIConfigReply    messenger.MessageID = 0x800a
	MediaMessageAudioUnderflow         messenger.MessageID = 0x800b
)

// Sensor source messages
const (
	SensorMessageRequest  messenger.MessageID = 0x8001
	SensorMessageResponse messenger.MessageID = 0x8002
	SensorMessageBatch    messenger.MessageID = 0x8003
	SensorMessageError    messenger.MessageID = 0x8004
)

// Input source messages
const (
	InputMessageInputReport        messenger.MessageID = 0x8001
	InputMessageKeyBindingRequest  messenger.MessageID = 0x8002
	InputMessageKeyBindingResponse messenger.MessageID = 0x8003
	InputMessageInputFeedback      messenger.MessageID = 0x8004
)

// Bluetooth messages
const (
	BluetoothMessagePairingRequest       messenger.MessageID = 0x8001
	BluetoothMessagePairingResponse      messenger.MessageID = 0x8002
	BluetoothMessageAuthenticationData   messenger.MessageID = 0x8003
	BluetoothMessageAuthenticationResult messenger.MessageID = 0x8004
)

// Navigation status (instrument cluster) messages
const (
	NavigationMessageStart           messenger.MessageID = 0x8001
	NavigationMessageStop            messenger.MessageID = 0x8002
	NavigationMessageStatus          messenger.MessageID = 0x8003
	NavigationMessageTurnEvent       messenger.MessageID = 0x8004
	NavigationMessageDistanceEvent   messenger.MessageID = 0x8005
	NavigationMessageState           messenger.MessageID = 0x8006
	NavigationMessageCurrentPosition messenger.MessageID = 0x8007
)

// Phone status messages
const (
	PhoneMessageStatus      messenger.MessageID = 0x8001
	PhoneMessageStatusInput messenger.MessageID = 0x8002
)

// Media playback status messages
const (
	PlaybackMessageStatus   messenger.MessageID = 0x8001
	PlaybackMessageInput    messenger.MessageID = 0x8002
	PlaybackMessageMetadata messenger.MessageID = 0x8003
)

// Media browser messages
const (
	BrowserMessageRootNode   messenger.MessageID = 0x8001
	BrowserMessageSourceNode messenger.MessageID = 0x8002
	BrowserMessageListNode   messenger.MessageID = 0x8003
	BrowserMessageSongNode   messenger.MessageID = 0x8004
	BrowserMessageGetNode    messenger.MessageID = 0x8005
	BrowserMessageInput      messenger.MessageID = 0x8006
)

// Generic notification messages
const (
	NotificationMessageSubscribe   messenger.MessageID = 0x8001
	NotificationMessageUnsubscribe messenger.MessageID = 0x8002
	NotificationMessageMessage     messenger.MessageID = 0x8003
	NotificationMessageAck         messenger.MessageID = 0x8004
)

// Radio messages
const (
	RadioMessageActiveRadioNotification         messenger.MessageID = 0x8001
	RadioMessageSelectActiveRadioRequest        messenger.MessageID = 0x8002
	RadioMessageStepChannelRequest              messenger.MessageID = 0x8003
	RadioMessageStepChannelResponse             messenger.MessageID = 0x8004
	RadioMessageSeekStationRequest              messenger.MessageID = 0x8005
	RadioMessageSeekStationResponse             messenger.MessageID = 0x8006
	RadioMessageScanStationsRequest             messenger.MessageID = 0x8007
	RadioMessageScanStationsResponse            messenger.MessageID = 0x8008
	RadioMessageTuneToStationRequest            messenger.MessageID = 0x8009
	RadioMessageTuneToStationResponse           messenger.MessageID = 0x800a
	RadioMessageGetProgramListRequest           messenger.MessageID = 0x800b
	RadioMessageGetProgramListResponse          messenger.MessageID = 0x800c
	RadioMessageStationPresetsNotification      messenger.MessageID = 0x800d
	RadioMessageCancelOperationsRequest         messenger.MessageID = 0x800e
	RadioMessageCancelOperationsResponse        messenger.MessageID = 0x800f
	RadioMessageConfigureChannelSpacingRequest  messenger.MessageID = 0x8010
	RadioMessageConfigureChannelSpacingResponse messenger.MessageID = 0x8011
	RadioMessageStationInfoNotification         messenger.MessageID = 0x8012
	RadioMessageMuteRadioRequest                messenger.MessageID = 0x8013
	RadioMessageMuteRadioResponse               messenger.MessageID = 0x8014
	RadioMessageGetTrafficUpdateRequest         messenger.MessageID = 0x8015
	RadioMessageGetTrafficUpdateResponse        messenger.MessageID = 0x8016
	RadioMessageSourceRequest                   messenger.MessageID = 0x8017
	RadioMessageSourceResponse                  messenger.MessageID = 0x8018
	RadioMessageStateNotification               messenger.MessageID = 0x8019
)

// MessageStatus values shared by responses
const (
	StatusSuccess int32 = 0
)
