package aap

// PointerAction is the touch action of an InputReport
type PointerAction int32

const (
	PointerActionDown        PointerAction = 0
	PointerActionUp          PointerAction = 1
	PointerActionMoved       PointerAction = 2
	PointerActionPointerDown PointerAction = 5
	PointerActionPointerUp   PointerAction = 6
)

// Pointer is one touch contact in display pixels
type Pointer struct {
	X         uint32
	Y         uint32
	PointerID uint32
}

func (p *Pointer) marshal() []byte {
	var e encoder
	e.varint(1, uint64(p.X))
	e.varint(2, uint64(p.Y))
	e.varint(3, uint64(p.PointerID))
	return e.b
}

func (p *Pointer) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			p.X = uint32(f.value)
		case 2:
			p.Y = uint32(f.value)
		case 3:
			p.PointerID = uint32(f.value)
		}
		return nil
	})
}

// TouchEvent groups the pointers of one touch action
type TouchEvent struct {
	Pointers    []Pointer
	ActionIndex uint32
	Action      PointerAction
}

func (t *TouchEvent) marshal() []byte {
	var e encoder
	for i := range t.Pointers {
		e.bytes(1, t.Pointers[i].marshal())
	}
	e.varint(2, uint64(t.ActionIndex))
	e.int32(3, int32(t.Action))
	return e.b
}

func (t *TouchEvent) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			var p Pointer
			if err := p.unmarshal(f.data); err != nil {
				return err
			}
			t.Pointers = append(t.Pointers, p)
		case 2:
			t.ActionIndex = uint32(f.value)
		case 3:
			t.Action = PointerAction(f.int32())
		}
		return nil
	})
}

// InputReport carries user input from the head unit to the phone
type InputReport struct {
	Timestamp  uint64
	TouchEvent *TouchEvent
}

// Marshal encodes the report
func (m *InputReport) Marshal() ([]byte, error) {
	var e encoder
	e.varint(1, m.Timestamp)
	if m.TouchEvent != nil {
		e.bytes(3, m.TouchEvent.marshal())
	}
	return e.b, nil
}

// Unmarshal decodes b into m
func (m *InputReport) Unmarshal(b []byte) error {
	*m = InputReport{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Timestamp = f.value
		case 3:
			m.TouchEvent = &TouchEvent{}
			return m.TouchEvent.unmarshal(f.data)
		}
		return nil
	})
}

// KeyBindingRequest lists the keycodes the phone wants reported
type KeyBindingRequest struct {
	Keycodes []int32
}

// Marshal encodes the request
func (m *KeyBindingRequest) Marshal() ([]byte, error) {
	var e encoder
	for _, k := range m.Keycodes {
		e.int32(1, k)
	}
	return e.b, nil
}

// Unmarshal decodes b into m
func (m *KeyBindingRequest) Unmarshal(b []byte) error {
	*m = KeyBindingRequest{}
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.Keycodes = append(m.Keycodes, f.int32())
		}
		return nil
	})
}

// KeyBindingResponse answers a KeyBindingRequest
type KeyBindingResponse struct {
	Status int32
}

// Marshal encodes the response
func (m *KeyBindingResponse) Marshal() ([]byte, error) {
	var e encoder
	e.int32(1, m.Status)
	return e.b, nil
}

// Unmarshal decodes b into m
func (m *KeyBindingResponse) Unmarshal(b []byte) error {
	*m = KeyBindingResponse{}
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.Status = f.int32()
		}
		return nil
	})
}
