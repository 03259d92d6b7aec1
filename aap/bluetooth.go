package aap

// PairingMethod is how the phone and head unit authenticate a Bluetooth pairing
type PairingMethod int32

const (
	PairingUnavailable PairingMethod = -1
	PairingOOB         PairingMethod = 1
	PairingNumericComp PairingMethod = 2
	PairingPasskey     PairingMethod = 3
	PairingPIN         PairingMethod = 4
)

// BluetoothPairingRequest is sent by the phone to start pairing
type BluetoothPairingRequest struct {
	PhoneAddress  string
	PairingMethod PairingMethod
}

// Marshal encodes the request
func (m *BluetoothPairingRequest) Marshal() ([]byte, error) {
	var e encoder
	e.str(1, m.PhoneAddress)
	e.int32(2, int32(m.PairingMethod))
	return e.b, nil
}

// Unmarshal decodes b into m
func (m *BluetoothPairingRequest) Unmarshal(b []byte) error {
	*m = BluetoothPairingRequest{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.PhoneAddress = string(f.data)
		case 2:
			m.PairingMethod = PairingMethod(f.int32())
		}
		return nil
	})
}

// BluetoothPairingResponse answers a pairing request
type BluetoothPairingResponse struct {
	Status        int32
	AlreadyPaired bool
}

// Marshal encodes the response
func (m *BluetoothPairingResponse) Marshal() ([]byte, error) {
	var e encoder
	e.int32(1, m.Status)
	e.boolean(2, m.AlreadyPaired)
	return e.b, nil
}

// Unmarshal decodes b into m
func (m *BluetoothPairingResponse) Unmarshal(b []byte) error {
	*m = BluetoothPairingResponse{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Status = f.int32()
		case 2:
			m.AlreadyPaired = f.bool()
		}
		return nil
	})
}

// BluetoothAuthenticationData carries the pairing secret
type BluetoothAuthenticationData struct {
	AuthData      string
	PairingMethod PairingMethod
}

// Marshal encodes the message
func (m *BluetoothAuthenticationData) Marshal() ([]byte, error) {
	var e encoder
	e.str(1, m.AuthData)
	e.int32(2, int32(m.PairingMethod))
	return e.b, nil
}

// Unmarshal decodes b into m
func (m *BluetoothAuthenticationData) Unmarshal(b []byte) error {
	*m = BluetoothAuthenticationData{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.AuthData = string(f.data)
		case 2:
			m.PairingMethod = PairingMethod(f.int32())
		}
		return nil
	})
}

// BluetoothAuthenticationResult reports the outcome of pairing
type BluetoothAuthenticationResult struct {
	Status int32
}

// Marshal encodes the result
func (m *BluetoothAuthenticationResult) Marshal() ([]byte, error) {
	var e encoder
	e.int32(1, m.Status)
	return e.b, nil
}

// Unmarshal decodes b into m
func (m *BluetoothAuthenticationResult) Unmarshal(b []byte) error {
	*m = BluetoothAuthenticationResult{}
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.Status = f.int32()
		}
		return nil
	})
}
