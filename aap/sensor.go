package aap

// SensorType identifies a sensor the phone may subscribe to
type SensorType int32

const (
	SensorLocation      SensorType = 1
	SensorCompass       SensorType = 2
	SensorSpeed         SensorType = 3
	SensorNightMode     SensorType = 10
	SensorDrivingStatus SensorType = 13
)

// DrivingStatus is a bit set of UX restrictions
type DrivingStatus int32

const (
	DrivingStatusUnrestricted    DrivingStatus = 0
	DrivingStatusNoVideo         DrivingStatus = 1
	DrivingStatusNoKeyboardInput DrivingStatus = 2
	DrivingStatusNoVoiceInput    DrivingStatus = 4
	DrivingStatusNoConfig        DrivingStatus = 8
	DrivingStatusLimitMessageLen DrivingStatus = 16
)

// SensorRequest subscribes the phone to a sensor
type SensorRequest struct {
	Type            SensorType
	MinUpdatePeriod int64
}

// Marshal encodes the request
func (m *SensorRequest) Marshal() ([]byte, error) {
	var e encoder
	e.int32(1, int32(m.Type))
	e.varint(2, uint64(m.MinUpdatePeriod))
	return e.b, nil
}

// Unmarshal decodes b into m
func (m *SensorRequest) Unmarshal(b []byte) error {
	*m = SensorRequest{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Type = SensorType(f.int32())
		case 2:
			m.MinUpdatePeriod = int64(f.value)
		}
		return nil
	})
}

// SensorStartResponse answers a SensorRequest
type SensorStartResponse struct {
	Status int32
}

// Marshal encodes the response
func (m *SensorStartResponse) Marshal() ([]byte, error) {
	var e encoder
	e.int32(1, m.Status)
	return e.b, nil
}

// Unmarshal decodes b into m
func (m *SensorStartResponse) Unmarshal(b []byte) error {
	*m = SensorStartResponse{}
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.Status = f.int32()
		}
		return nil
	})
}

// LocationData is a GPS fix in fixed-point units
type LocationData struct {
	LatitudeE7  int32
	LongitudeE7 int32
	AccuracyE3  uint32
	AltitudeE2  int32
	SpeedE3     int32
	BearingE6   int32
}

func (l *LocationData) marshal() []byte {
	var e encoder
	e.int32(2, l.LatitudeE7)
	e.int32(3, l.LongitudeE7)
	e.varint(4, uint64(l.AccuracyE3))
	e.int32(5, l.AltitudeE2)
	e.int32(6, l.SpeedE3)
	e.int32(7, l.BearingE6)
	return e.b
}

func (l *LocationData) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 2:
			l.LatitudeE7 = f.int32()
		case 3:
			l.LongitudeE7 = f.int32()
		case 4:
			l.AccuracyE3 = uint32(f.value)
		case 5:
			l.AltitudeE2 = f.int32()
		case 6:
			l.SpeedE3 = f.int32()
		case 7:
			l.BearingE6 = f.int32()
		}
		return nil
	})
}

// SensorBatch delivers sensor readings to the phone
type SensorBatch struct {
	Locations     []LocationData
	NightMode     []bool
	DrivingStatus []DrivingStatus
}

// Marshal encodes the batch
func (m *SensorBatch) Marshal() ([]byte, error) {
	var e encoder
	for i := range m.Locations {
		e.bytes(1, m.Locations[i].marshal())
	}
	for _, night := range m.NightMode {
		var inner encoder
		inner.boolean(1, night)
		e.bytes(10, inner.b)
	}
	for _, status := range m.DrivingStatus {
		var inner encoder
		inner.int32(1, int32(status))
		e.bytes(13, inner.b)
	}
	return e.b, nil
}

// Unmarshal decodes b into m
func (m *SensorBatch) Unmarshal(b []byte) error {
	*m = SensorBatch{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			var loc LocationData
			if err := loc.unmarshal(f.data); err != nil {
				return err
			}
			m.Locations = append(m.Locations, loc)
		case 10:
			night := false
			err := walk(f.data, func(inner field) error {
				if inner.num == 1 {
					night = inner.bool()
				}
				return nil
			})
			if err != nil {
				return err
			}
			m.NightMode = append(m.NightMode, night)
		case 13:
			var status DrivingStatus
			err := walk(f.data, func(inner field) error {
				if inner.num == 1 {
					status = DrivingStatus(inner.int32())
				}
				return nil
			})
			if err != nil {
				return err
			}
			m.DrivingStatus = append(m.DrivingStatus, status)
		}
		return nil
	})
}

// Empty reports whether the batch carries no readings
func (m *SensorBatch) Empty() bool {
	return len(m.Locations) == 0 && len(m.NightMode) == 0 && len(m.DrivingStatus) == 0
}
