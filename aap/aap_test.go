package aap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestChannelOpenResponseWireBytes(t *testing.T) {
	b, err := (&ChannelOpenResponse{Status: StatusSuccess}).Marshal()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x08, 0x00}, b)
}

func TestNegativeStatusEncodesAsTenByteVarint(t *testing.T) {
	b, err := (&ChannelOpenResponse{Status: -1}).Marshal()
	require.NoError(t, err)
	assert.Len(t, b, 11)

	var got ChannelOpenResponse
	require.NoError(t, got.Unmarshal(b))
	assert.Equal(t, int32(-1), got.Status)
}

func TestConfigMatchesGeneratedEncoding(t *testing.T) {
	b, err := (&Config{Status: MediaConfigReady, MaxUnacked: 1, ConfigurationIndices: []uint32{0}}).Marshal()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x08, 0x02, 0x10, 0x01, 0x18, 0x00}, b)

	var got Config
	require.NoError(t, got.Unmarshal(b))
	assert.Equal(t, MediaConfigReady, got.Status)
	assert.Equal(t, uint32(1), got.MaxUnacked)
	assert.Equal(t, []uint32{0}, got.ConfigurationIndices)
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	b := protowire.AppendTag(nil, 9, protowire.BytesType)
	b = protowire.AppendString(b, "ignored")
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)
	b = protowire.AppendTag(b, 7, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 5)

	var start Start
	require.NoError(t, start.Unmarshal(b))
	assert.Equal(t, int32(42), start.SessionID)
}

func TestInputReportNestedMessages(t *testing.T) {
	in := &InputReport{
		Timestamp: 123456,
		TouchEvent: &TouchEvent{
			Pointers: []Pointer{{X: 959, Y: 539, PointerID: 2}},
			Action:   PointerActionMoved,
		},
	}
	b, err := in.Marshal()
	require.NoError(t, err)

	var out InputReport
	require.NoError(t, out.Unmarshal(b))
	assert.Equal(t, in.Timestamp, out.Timestamp)
	require.NotNil(t, out.TouchEvent)
	assert.Equal(t, in.TouchEvent.Pointers, out.TouchEvent.Pointers)
	assert.Equal(t, PointerActionMoved, out.TouchEvent.Action)
}

func TestSensorBatchSections(t *testing.T) {
	batch := &SensorBatch{
		Locations:     []LocationData{{LatitudeE7: 377749000, LongitudeE7: -1224194000, AccuracyE3: 5000}},
		NightMode:     []bool{true},
		DrivingStatus: []DrivingStatus{DrivingStatusNoVideo},
	}
	b, err := batch.Marshal()
	require.NoError(t, err)

	var out SensorBatch
	require.NoError(t, out.Unmarshal(b))
	assert.Equal(t, batch.Locations, out.Locations)
	assert.Equal(t, []bool{true}, out.NightMode)
	assert.Equal(t, []DrivingStatus{DrivingStatusNoVideo}, out.DrivingStatus)
	assert.False(t, out.Empty())
	assert.True(t, (&SensorBatch{}).Empty())
}

func TestBluetoothPairingRequestStrings(t *testing.T) {
	b, err := (&BluetoothPairingRequest{PhoneAddress: "AA:BB:CC:DD:EE:FF", PairingMethod: PairingPIN}).Marshal()
	require.NoError(t, err)

	var out BluetoothPairingRequest
	require.NoError(t, out.Unmarshal(b))
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", out.PhoneAddress)
	assert.Equal(t, PairingPIN, out.PairingMethod)
}

func TestValidate(t *testing.T) {
	generated, err := proto.Marshal(wrapperspb.String("head unit"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"empty", nil, false},
		{"generated message", generated, false},
		{"truncated varint", []byte{0x08, 0x80}, true},
		{"length past end", []byte{0x0a, 0x05, 0x01}, true},
		{"field zero", []byte{0x00, 0x01}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.data)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidWire)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStatusOnly(t *testing.T) {
	b, err := (&MicrophoneResponse{Status: 3, SessionID: 9}).Marshal()
	require.NoError(t, err)

	var s StatusOnly
	require.NoError(t, s.Unmarshal(b))
	assert.Equal(t, int32(3), s.Status)
	assert.Equal(t, 2, s.Fields)
	assert.Equal(t, "status=3 fields=2", s.String())

	n, err := FieldCount(b)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
