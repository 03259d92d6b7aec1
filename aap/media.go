package aap

// MediaConfigStatus is the readiness reported in a media Config
type MediaConfigStatus int32

const (
	MediaConfigWait  MediaConfigStatus = 1
	MediaConfigReady MediaConfigStatus = 2
)

// VideoFocusMode selects who owns the display
type VideoFocusMode int32

const (
	VideoFocusProjected             VideoFocusMode = 1
	VideoFocusNative                VideoFocusMode = 2
	VideoFocusNativeTransient       VideoFocusMode = 3
	VideoFocusProjectedNoInputFocus VideoFocusMode = 4
)

// Setup announces the codec a media stream will use
type Setup struct {
	Type int32
}

// Marshal encodes the setup message
func (m *Setup) Marshal() ([]byte, error) {
	var e encoder
	e.int32(1, m.Type)
	return e.b, nil
}

// Unmarshal decodes b into m
func (m *Setup) Unmarshal(b []byte) error {
	*m = Setup{}
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.Type = f.int32()
		}
		return nil
	})
}

// Config answers Setup with the sink's flow control parameters
type Config struct {
	Status               MediaConfigStatus
	MaxUnacked           uint32
	ConfigurationIndices []uint32
}

// Marshal encodes the config message
func (m *Config) Marshal() ([]byte, error) {
	var e encoder
	e.int32(1, int32(m.Status))
	e.varint(2, uint64(m.MaxUnacked))
	for _, idx := range m.ConfigurationIndices {
		e.varint(3, uint64(idx))
	}
	return e.b, nil
}

// Unmarshal decodes b into m
func (m *Config) Unmarshal(b []byte) error {
	*m = Config{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Status = MediaConfigStatus(f.int32())
		case 2:
			m.MaxUnacked = uint32(f.value)
		case 3:
			m.ConfigurationIndices = append(m.ConfigurationIndices, uint32(f.value))
		}
		return nil
	})
}

// Start opens a media session
type Start struct {
	SessionID          int32
	ConfigurationIndex uint32
}

// Marshal encodes the start message
func (m *Start) Marshal() ([]byte, error) {
	var e encoder
	e.int32(1, m.SessionID)
	e.varint(2, uint64(m.ConfigurationIndex))
	return e.b, nil
}

// Unmarshal decodes b into m
func (m *Start) Unmarshal(b []byte) error {
	*m = Start{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.SessionID = f.int32()
		case 2:
			m.ConfigurationIndex = uint32(f.value)
		}
		return nil
	})
}

// Ack acknowledges media frames of a session
type Ack struct {
	SessionID int32
	Ack       uint32
}

// Marshal encodes the ack
func (m *Ack) Marshal() ([]byte, error) {
	var e encoder
	e.int32(1, m.SessionID)
	e.varint(2, uint64(m.Ack))
	return e.b, nil
}

// Unmarshal decodes b into m
func (m *Ack) Unmarshal(b []byte) error {
	*m = Ack{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.SessionID = f.int32()
		case 2:
			m.Ack = uint32(f.value)
		}
		return nil
	})
}

// VideoFocusNotification tells the phone who owns the display
type VideoFocusNotification struct {
	Focus       VideoFocusMode
	Unsolicited bool
}

// Marshal encodes the notification
func (m *VideoFocusNotification) Marshal() ([]byte, error) {
	var e encoder
	e.int32(1, int32(m.Focus))
	e.boolean(2, m.Unsolicited)
	return e.b, nil
}

// Unmarshal decodes b into m
func (m *VideoFocusNotification) Unmarshal(b []byte) error {
	*m = VideoFocusNotification{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Focus = VideoFocusMode(f.int32())
		case 2:
			m.Unsolicited = f.bool()
		}
		return nil
	})
}

// MicrophoneRequest opens or closes the head unit microphone
type MicrophoneRequest struct {
	Open                  bool
	AncEnabled            bool
	EchoCancellingEnabled bool
	MaxUnacked            int32
}

// Marshal encodes the request
func (m *MicrophoneRequest) Marshal() ([]byte, error) {
	var e encoder
	e.boolean(1, m.Open)
	e.boolean(2, m.AncEnabled)
	e.boolean(3, m.EchoCancellingEnabled)
	e.int32(4, m.MaxUnacked)
	return e.b, nil
}

// Unmarshal decodes b into m
func (m *MicrophoneRequest) Unmarshal(b []byte) error {
	*m = MicrophoneRequest{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Open = f.bool()
		case 2:
			m.AncEnabled = f.bool()
		case 3:
			m.EchoCancellingEnabled = f.bool()
		case 4:
			m.MaxUnacked = f.int32()
		}
		return nil
	})
}

// MicrophoneResponse answers a MicrophoneRequest
type MicrophoneResponse struct {
	Status    int32
	SessionID uint32
}

// Marshal encodes the response
func (m *MicrophoneResponse) Marshal() ([]byte, error) {
	var e encoder
	e.int32(1, m.Status)
	e.varint(2, uint64(m.SessionID))
	return e.b, nil
}

// Unmarshal decodes b into m
func (m *MicrophoneResponse) Unmarshal(b []byte) error {
	*m = MicrophoneResponse{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Status = f.int32()
		case 2:
			m.SessionID = uint32(f.value)
		}
		return nil
	})
}
