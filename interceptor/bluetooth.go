package interceptor

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/headunit/aap"
	"github.com/opd-ai/headunit/messenger"
)

// DefaultPairingAuthData is the passkey offered during Bluetooth pairing
const DefaultPairingAuthData = "123456"

// BluetoothHandler answers the phone's Bluetooth pairing requests
type BluetoothHandler struct {
	baseHandler

	isPaired func(address string) bool
	authData string
	lastAuth *aap.BluetoothAuthenticationResult
}

var _ Handler = (*BluetoothHandler)(nil)

// NewBluetoothHandler creates the handler. isPaired reports whether a phone
// address is already paired; nil treats every phone as unpaired.
func NewBluetoothHandler(isPaired func(address string) bool) *BluetoothHandler {
	if isPaired == nil {
		isPaired = func(string) bool { return false }
	}
	return &BluetoothHandler{
		baseHandler: newBaseHandler(messenger.ChannelBluetooth.String()),
		isPaired:    isPaired,
		authData:    DefaultPairingAuthData,
	}
}

// Handle implements Handler
func (h *BluetoothHandler) Handle(msg *messenger.Message) bool {
	return h.dispatch(msg, h.handleSpecific)
}

func (h *BluetoothHandler) handleSpecific(msg *messenger.Message, id messenger.MessageID, body []byte) bool {
	switch id {
	case aap.BluetoothMessagePairingRequest:
		return h.handlePairingRequest(msg, body)
	case aap.BluetoothMessageAuthenticationResult:
		var result aap.BluetoothAuthenticationResult
		if !h.parse("BluetoothAuthenticationResult", body, &result) {
			return false
		}
		h.lastAuth = &result
		h.log("Handle").WithField("status", result.Status).Info("Bluetooth authentication result")
		return true
	default:
		return false
	}
}

func (h *BluetoothHandler) handlePairingRequest(msg *messenger.Message, body []byte) bool {
	var req aap.BluetoothPairingRequest
	if !h.parse("BluetoothPairingRequest", body, &req) {
		return false
	}
	if h.sender == nil {
		h.log("handlePairingRequest").Error("No message sender, cannot answer pairing request")
		return false
	}

	paired := h.isPaired(req.PhoneAddress)
	h.log("handlePairingRequest").WithFields(logrus.Fields{
		"phone_address":  req.PhoneAddress,
		"pairing_method": req.PairingMethod,
		"already_paired": paired,
	}).Info("Bluetooth pairing request")

	h.reply(msg, aap.BluetoothMessagePairingResponse, &aap.BluetoothPairingResponse{
		Status:        aap.StatusSuccess,
		AlreadyPaired: paired,
	})
	h.reply(msg, aap.BluetoothMessageAuthenticationData, &aap.BluetoothAuthenticationData{
		AuthData:      h.authData,
		PairingMethod: req.PairingMethod,
	})
	return true
}

// LastAuthenticationResult returns the most recent authentication result, if any
func (h *BluetoothHandler) LastAuthenticationResult() (aap.BluetoothAuthenticationResult, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastAuth == nil {
		return aap.BluetoothAuthenticationResult{}, false
	}
	return *h.lastAuth, true
}
