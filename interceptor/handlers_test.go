package interceptor

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/headunit/aap"
	"github.com/opd-ai/headunit/messenger"
	"github.com/opd-ai/headunit/sidechannel"
)

func TestVideoSetupRepliesConfigThenFocus(t *testing.T) {
	f := newFixture(t)
	h := NewMediaSinkHandler(messenger.ChannelMediaSinkVideo, nil)
	h.SetMessageSender(f.outbox)

	setup := inbound(t, messenger.ChannelMediaSinkVideo, messenger.MessageSpecific, aap.MediaMessageSetup, &aap.Setup{Type: 3})
	require.True(t, h.Handle(setup))

	sent := f.sent(t, 2)
	assert.Equal(t, aap.MediaMessageConfig, messageID(t, sent[0]))
	var config aap.Config
	require.NoError(t, config.Unmarshal(sent[0].Body()))
	assert.Equal(t, aap.MediaConfigReady, config.Status)
	assert.Equal(t, uint32(1), config.MaxUnacked)
	assert.Equal(t, []uint32{0}, config.ConfigurationIndices)

	assert.Equal(t, aap.MediaMessageVideoFocusNotification, messageID(t, sent[1]))
	var focus aap.VideoFocusNotification
	require.NoError(t, focus.Unmarshal(sent[1].Body()))
	assert.Equal(t, aap.VideoFocusProjected, focus.Focus)
	assert.False(t, focus.Unsolicited)
}

func TestAudioSetupRepliesConfigOnly(t *testing.T) {
	f := newFixture(t)
	h := NewMediaSinkHandler(messenger.ChannelMediaSinkGuidanceAudio, nil)
	h.SetMessageSender(f.outbox)

	setup := inbound(t, messenger.ChannelMediaSinkGuidanceAudio, messenger.MessageSpecific, aap.MediaMessageSetup, &aap.Setup{Type: 1})
	require.True(t, h.Handle(setup))

	sent := f.sent(t, 1)
	assert.Equal(t, aap.MediaMessageConfig, messageID(t, sent[0]))
	assert.Equal(t, messenger.ChannelMediaSinkGuidanceAudio, sent[0].ChannelID)
}

func TestMediaDataRequiresSession(t *testing.T) {
	f := newFixture(t)
	now := time.UnixMicro(1_700_000_000_000_000)
	h := NewMediaSinkHandler(messenger.ChannelMediaSinkVideo, func() time.Time { return now })
	h.SetMessageSender(f.outbox)

	queue := sidechannel.NewQueue(8)
	packets := make(chan sidechannel.Packet, 4)
	queue.AddTypeHandler(sidechannel.Video, func(p sidechannel.Packet) { packets <- p })
	h.BindSideChannel(queue)
	t.Cleanup(func() {
		if queue.IsRunning() {
			_ = queue.Stop()
		}
	})

	data := messenger.NewMessage(messenger.ChannelMediaSinkVideo, messenger.EncryptionPlain, messenger.MessageSpecific,
		aap.MediaMessageData, messenger.PrependTimestamp(42, []byte{0xde, 0xad}))
	assert.False(t, h.Handle(data), "no session yet")
	assert.Equal(t, int32(-1), h.SessionID())

	start := inbound(t, messenger.ChannelMediaSinkVideo, messenger.MessageSpecific, aap.MediaMessageStart, &aap.Start{SessionID: 7})
	assert.False(t, h.Handle(start))
	assert.Equal(t, int32(7), h.SessionID())

	require.True(t, h.Handle(data))
	sent := f.sent(t, 1)
	assert.Equal(t, aap.MediaMessageAck, messageID(t, sent[0]))
	var ack aap.Ack
	require.NoError(t, ack.Unmarshal(sent[0].Body()))
	assert.Equal(t, aap.Ack{SessionID: 7, Ack: 1}, ack)

	select {
	case p := <-packets:
		assert.Equal(t, uint64(42), p.TimestampUsec)
		assert.Equal(t, []byte{0xde, 0xad}, p.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("video packet not forwarded")
	}

	codec := messenger.NewMessage(messenger.ChannelMediaSinkVideo, messenger.EncryptionPlain, messenger.MessageSpecific,
		aap.MediaMessageCodecConfig, []byte{0x00, 0x00, 0x01})
	require.True(t, h.Handle(codec))
	select {
	case p := <-packets:
		assert.Equal(t, uint64(now.UnixMicro()), p.TimestampUsec)
		assert.Equal(t, []byte{0x00, 0x00, 0x01}, p.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("codec config not forwarded")
	}
	assert.Equal(t, uint64(2), h.Forwarded())

	require.NoError(t, h.Close())
	assert.Equal(t, int32(-1), h.SessionID())
}

func TestAudioUnderflow(t *testing.T) {
	audio := NewMediaSinkHandler(messenger.ChannelMediaSinkMediaAudio, nil)
	video := NewMediaSinkHandler(messenger.ChannelMediaSinkVideo, nil)

	msg := inbound(t, messenger.ChannelMediaSinkMediaAudio, messenger.MessageSpecific, aap.MediaMessageAudioUnderflow, nil)
	assert.True(t, audio.Handle(msg))
	assert.False(t, video.Handle(msg))
}

func TestInputKeyBinding(t *testing.T) {
	f := newFixture(t)
	h := NewInputSourceHandler(0, 0)
	h.SetMessageSender(f.outbox)

	req := inbound(t, messenger.ChannelInputSource, messenger.MessageSpecific, aap.InputMessageKeyBindingRequest,
		&aap.KeyBindingRequest{Keycodes: []int32{3, 4, 84}})
	require.True(t, h.Handle(req))

	sent := f.sent(t, 1)
	assert.Equal(t, aap.InputMessageKeyBindingResponse, messageID(t, sent[0]))
	var resp aap.KeyBindingResponse
	require.NoError(t, resp.Unmarshal(sent[0].Body()))
	assert.Equal(t, aap.StatusSuccess, resp.Status)
}

func TestTouchToPixels(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		name  string
		x, y  float32
		wantX uint32
		wantY uint32
	}{
		{"origin", 0, 0, 0, 0},
		{"center rounds half up", 0.5, 0.5, 960, 540},
		{"far corner", 1, 1, 1919, 1079},
		{"clamped", -0.5, 1.5, 0, 1079},
		{"nan", nan, 0.25, 0, 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			h := NewInputSourceHandler(0, 0)
			h.SetMessageSender(f.outbox)
			f.open(t, h, messenger.ChannelInputSource)

			h.OnTouchEvent(5, TouchPacket{X: tt.x, Y: tt.y, PointerID: 1, Action: uint32(aap.PointerActionMoved)}.Bytes())

			sent := f.sent(t, 1)
			var report aap.InputReport
			require.NoError(t, report.Unmarshal(sent[0].Body()))
			require.NotNil(t, report.TouchEvent)
			require.Len(t, report.TouchEvent.Pointers, 1)
			assert.Equal(t, tt.wantX, report.TouchEvent.Pointers[0].X)
			assert.Equal(t, tt.wantY, report.TouchEvent.Pointers[0].Y)
			assert.Equal(t, aap.PointerActionMoved, report.TouchEvent.Action)
		})
	}
}

func TestTouchDropped(t *testing.T) {
	f := newFixture(t)
	h := NewInputSourceHandler(0, 0)
	h.SetMessageSender(f.outbox)

	h.OnTouchEvent(0, TouchPacket{X: 0.5, Y: 0.5}.Bytes())
	assert.False(t, f.outbox.Busy(), "channel not open")

	f.open(t, h, messenger.ChannelInputSource)
	h.OnTouchEvent(0, []byte{1, 2, 3})
	assert.False(t, f.outbox.Busy(), "short payload")
	assert.Equal(t, uint64(0), h.ReportsSent())
}

func TestDecodeTouchPacket(t *testing.T) {
	in := TouchPacket{X: 0.25, Y: 0.75, PointerID: 9, Action: 2}
	out, ok := DecodeTouchPacket(in.Bytes())
	require.True(t, ok)
	assert.Equal(t, in, out)

	_, ok = DecodeTouchPacket(make([]byte, TouchPacketSize+1))
	assert.False(t, ok)
}

func TestSensorRequestAndBatch(t *testing.T) {
	f := newFixture(t)
	h := NewSensorHandler()
	h.SetMessageSender(f.outbox)

	req := inbound(t, messenger.ChannelSensor, messenger.MessageSpecific, aap.SensorMessageRequest,
		&aap.SensorRequest{Type: aap.SensorLocation})
	require.True(t, h.Handle(req))
	assert.True(t, h.Requested(aap.SensorLocation))

	sent := f.sent(t, 1)
	assert.Equal(t, aap.SensorMessageResponse, messageID(t, sent[0]))
	f.transport.ClearSendLog()

	doc := `{"location": {"latitude": 37.7749, "longitude": -122.4194, "accuracy_m": 4.5,
		"altitude_m": 16.25, "speed_mps": 13.4, "bearing_deg": 271.5},
		"night_mode": {"enabled": true},
		"driving_status": {"status": "no_keyboard_input"}}`
	h.OnSensorEvent(1, []byte(doc))

	sent = f.sent(t, 1)
	assert.Equal(t, aap.SensorMessageBatch, messageID(t, sent[0]))
	var batch aap.SensorBatch
	require.NoError(t, batch.Unmarshal(sent[0].Body()))
	require.Len(t, batch.Locations, 1)
	assert.Equal(t, aap.LocationData{
		LatitudeE7:  377749000,
		LongitudeE7: -1224194000,
		AccuracyE3:  4500,
		AltitudeE2:  1625,
		SpeedE3:     13400,
		BearingE6:   271500000,
	}, batch.Locations[0])
	assert.Equal(t, []bool{true}, batch.NightMode)
	assert.Equal(t, []aap.DrivingStatus{aap.DrivingStatusNoKeyboardInput}, batch.DrivingStatus)
	assert.Equal(t, uint64(1), h.BatchesSent())
}

func TestSensorEventRejected(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"invalid json", `{"location":`},
		{"section not an object", `{"night_mode": true}`},
		{"non object aborts earlier sections", `{"location": {"latitude": 1, "longitude": 2}, "driving_status": "no_video"}`},
		{"no handled keys", `{"speed": {"kmh": 10}}`},
		{"missing latitude", `{"location": {"longitude": 2}}`},
		{"wrong type", `{"night_mode": {"enabled": "yes"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			h := NewSensorHandler()
			h.SetMessageSender(f.outbox)
			f.open(t, h, messenger.ChannelSensor)

			h.OnSensorEvent(0, []byte(tt.doc))
			assert.False(t, f.outbox.Busy())
			assert.Equal(t, uint64(0), h.BatchesSent())
		})
	}
}

func TestSensorUnknownDrivingStatusIsUnrestricted(t *testing.T) {
	f := newFixture(t)
	h := NewSensorHandler()
	h.SetMessageSender(f.outbox)
	f.open(t, h, messenger.ChannelSensor)

	h.OnSensorEvent(0, []byte(`{"driving_status": {"status": "parked"}}`))
	sent := f.sent(t, 1)
	var batch aap.SensorBatch
	require.NoError(t, batch.Unmarshal(sent[0].Body()))
	assert.Equal(t, []aap.DrivingStatus{aap.DrivingStatusUnrestricted}, batch.DrivingStatus)
}

func TestSensorEventWithoutChannel(t *testing.T) {
	f := newFixture(t)
	h := NewSensorHandler()
	h.SetMessageSender(f.outbox)

	h.OnSensorEvent(0, []byte(`{"night_mode": {"enabled": false}}`))
	assert.False(t, f.outbox.Busy())
}

func TestBluetoothPairing(t *testing.T) {
	f := newFixture(t)
	var asked string
	h := NewBluetoothHandler(func(addr string) bool {
		asked = addr
		return true
	})
	h.SetMessageSender(f.outbox)

	req := inbound(t, messenger.ChannelBluetooth, messenger.MessageSpecific, aap.BluetoothMessagePairingRequest,
		&aap.BluetoothPairingRequest{PhoneAddress: "11:22:33:44:55:66", PairingMethod: aap.PairingNumericComp})
	require.True(t, h.Handle(req))
	assert.Equal(t, "11:22:33:44:55:66", asked)

	sent := f.sent(t, 2)
	assert.Equal(t, aap.BluetoothMessagePairingResponse, messageID(t, sent[0]))
	var resp aap.BluetoothPairingResponse
	require.NoError(t, resp.Unmarshal(sent[0].Body()))
	assert.Equal(t, aap.BluetoothPairingResponse{Status: aap.StatusSuccess, AlreadyPaired: true}, resp)

	assert.Equal(t, aap.BluetoothMessageAuthenticationData, messageID(t, sent[1]))
	var auth aap.BluetoothAuthenticationData
	require.NoError(t, auth.Unmarshal(sent[1].Body()))
	assert.Equal(t, DefaultPairingAuthData, auth.AuthData)
	assert.Equal(t, aap.PairingNumericComp, auth.PairingMethod)

	result := inbound(t, messenger.ChannelBluetooth, messenger.MessageSpecific, aap.BluetoothMessageAuthenticationResult,
		&aap.BluetoothAuthenticationResult{Status: 0})
	assert.True(t, h.Handle(result))
	last, ok := h.LastAuthenticationResult()
	require.True(t, ok)
	assert.Equal(t, int32(0), last.Status)
}

func TestMicrophoneFlow(t *testing.T) {
	f := newFixture(t)
	h := NewMediaSourceHandler(CodecPCM)
	h.SetMessageSender(f.outbox)

	h.OnMicrophoneAudio(1, []byte{1, 2})
	assert.False(t, f.outbox.Busy(), "channel not open")

	f.open(t, h, messenger.ChannelMediaSourceMicrophone)

	h.OnMicrophoneAudio(1, []byte{1, 2})
	assert.False(t, f.outbox.Busy(), "microphone not enabled")

	open := inbound(t, messenger.ChannelMediaSourceMicrophone, messenger.MessageSpecific, aap.MediaMessageMicrophoneRequest,
		&aap.MicrophoneRequest{Open: true})
	require.True(t, h.Handle(open))
	sent := f.sent(t, 1)
	assert.Equal(t, aap.MediaMessageMicrophoneResponse, messageID(t, sent[0]))
	var resp aap.MicrophoneResponse
	require.NoError(t, resp.Unmarshal(sent[0].Body()))
	assert.Equal(t, aap.MicrophoneResponse{Status: aap.StatusSuccess, SessionID: 1}, resp)
	assert.True(t, h.MicrophoneEnabled())
	f.transport.ClearSendLog()

	h.OnMicrophoneAudio(99, []byte{0x10, 0x20, 0x30})
	sent = f.sent(t, 1)
	assert.Equal(t, aap.MediaMessageData, messageID(t, sent[0]))
	ts, pcm, err := messenger.SplitTimestamp(sent[0].Body())
	require.NoError(t, err)
	assert.Equal(t, messenger.Timestamp(99), ts)
	assert.Equal(t, []byte{0x10, 0x20, 0x30}, pcm)
	f.transport.ClearSendLog()

	h.OnMicrophoneAudio(100, nil)
	assert.False(t, f.outbox.Busy(), "empty payload")

	ack := inbound(t, messenger.ChannelMediaSourceMicrophone, messenger.MessageSpecific, aap.MediaMessageAck,
		&aap.Ack{SessionID: 1, Ack: 1})
	assert.True(t, h.Handle(ack))

	closeReq := inbound(t, messenger.ChannelMediaSourceMicrophone, messenger.MessageSpecific, aap.MediaMessageMicrophoneRequest,
		&aap.MicrophoneRequest{Open: false})
	require.True(t, h.Handle(closeReq))
	sent = f.sent(t, 1)
	require.NoError(t, resp.Unmarshal(sent[0].Body()))
	assert.Equal(t, uint32(0), resp.SessionID)
	assert.False(t, h.MicrophoneEnabled())
	assert.Equal(t, uint64(1), h.SentChunks())
}

func TestMicrophoneOpusRejectsGarbage(t *testing.T) {
	f := newFixture(t)
	h := NewMediaSourceHandler(CodecOpus)
	h.SetMessageSender(f.outbox)
	f.open(t, h, messenger.ChannelMediaSourceMicrophone)

	open := inbound(t, messenger.ChannelMediaSourceMicrophone, messenger.MessageSpecific, aap.MediaMessageMicrophoneRequest,
		&aap.MicrophoneRequest{Open: true})
	require.True(t, h.Handle(open))
	f.sent(t, 1)

	// CELT-only TOC byte, which the decoder does not support
	h.OnMicrophoneAudio(1, []byte{0xfc, 0x00, 0x00})
	assert.False(t, f.outbox.Busy())
	assert.Equal(t, uint64(0), h.SentChunks())
}

func TestStatusHandlers(t *testing.T) {
	tests := []struct {
		name    string
		handler *StatusHandler
		channel messenger.ChannelID
		known   messenger.MessageID
	}{
		{"navigation", NewNavigationStatusHandler(), messenger.ChannelNavigationStatus, aap.NavigationMessageState},
		{"phone", NewPhoneStatusHandler(), messenger.ChannelPhoneStatus, aap.PhoneMessageStatus},
		{"playback", NewMediaPlaybackStatusHandler(), messenger.ChannelMediaPlaybackStatus, aap.PlaybackMessageMetadata},
		{"browser", NewMediaBrowserHandler(), messenger.ChannelMediaBrowser, aap.BrowserMessageSongNode},
		{"notification", NewGenericNotificationHandler(), messenger.ChannelGenericNotification, aap.NotificationMessageMessage},
		{"radio", NewRadioHandler(), messenger.ChannelRadio, aap.RadioMessageStateNotification},
	}

	body := []byte{0x08, 0x00}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok := messenger.NewMessage(tt.channel, messenger.EncryptionPlain, messenger.MessageSpecific, tt.known, body)
			assert.True(t, tt.handler.Handle(ok))
			assert.Equal(t, uint64(1), tt.handler.Seen(tt.known))

			bad := messenger.NewMessage(tt.channel, messenger.EncryptionPlain, messenger.MessageSpecific, tt.known, []byte{0x0a, 0x09})
			assert.False(t, tt.handler.Handle(bad))

			unknown := messenger.NewMessage(tt.channel, messenger.EncryptionPlain, messenger.MessageSpecific, 0x7fff, body)
			assert.False(t, tt.handler.Handle(unknown))
			assert.Equal(t, uint64(3), tt.handler.Received())
		})
	}
}

func TestVendorExtensionConsumesEverything(t *testing.T) {
	h := NewVendorExtensionHandler()
	for _, id := range []messenger.MessageID{0x0000, 0x8001, 0xffff} {
		msg := messenger.NewMessage(messenger.ChannelVendorExtension, messenger.EncryptionPlain, messenger.MessageSpecific, id, []byte{0xff})
		assert.True(t, h.Handle(msg))
	}
}
