package aap

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ChannelOpenRequest asks the head unit to open a service channel
type ChannelOpenRequest struct {
	Priority  int32
	ServiceID int32
}

// Marshal encodes the request
func (m *ChannelOpenRequest) Marshal() ([]byte, error) {
	var e encoder
	e.int32(1, m.Priority)
	e.int32(2, m.ServiceID)
	return e.b, nil
}

// Unmarshal decodes b into m
func (m *ChannelOpenRequest) Unmarshal(b []byte) error {
	*m = ChannelOpenRequest{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Priority = f.int32()
		case 2:
			m.ServiceID = f.int32()
		}
		return nil
	})
}

// ChannelOpenResponse answers a ChannelOpenRequest
type ChannelOpenResponse struct {
	Status int32
}

// Marshal encodes the response
func (m *ChannelOpenResponse) Marshal() ([]byte, error) {
	var e encoder
	e.int32(1, m.Status)
	return e.b, nil
}

// Unmarshal decodes b into m
func (m *ChannelOpenResponse) Unmarshal(b []byte) error {
	*m = ChannelOpenResponse{}
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.Status = f.int32()
		}
		return nil
	})
}

// StatusOnly is any response whose first field is a status code. It is used to
// log the outcome of messages the head unit does not otherwise model.
type StatusOnly struct {
	Status int32
	Fields int
}

// Unmarshal decodes b into m
func (m *StatusOnly) Unmarshal(b []byte) error {
	*m = StatusOnly{}
	return walk(b, func(f field) error {
		m.Fields++
		if f.num == 1 && f.typ == protowire.VarintType {
			m.Status = f.int32()
		}
		return nil
	})
}

func (m StatusOnly) String() string {
	return fmt.Sprintf("status=%d fields=%d", m.Status, m.Fields)
}

// AuthComplete ends the handshake on the control channel
type AuthComplete struct {
	Status int32
}

// Marshal encodes the notification
func (m *AuthComplete) Marshal() ([]byte, error) {
	var e encoder
	e.int32(1, m.Status)
	return e.b, nil
}

// Unmarshal decodes b into m
func (m *AuthComplete) Unmarshal(b []byte) error {
	*m = AuthComplete{}
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.Status = f.int32()
		}
		return nil
	})
}
