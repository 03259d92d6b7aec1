package interceptor

import (
	"encoding/binary"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/headunit/aap"
	"github.com/opd-ai/headunit/messenger"
)

// TouchPacketSize is the side-channel touch layout: little-endian float32 x,
// float32 y, uint32 pointer id and uint32 action. x and y are normalized to [0, 1].
const TouchPacketSize = 16

// TouchPacket is a decoded side-channel touch
type TouchPacket struct {
	X         float32
	Y         float32
	PointerID uint32
	Action    uint32
}

// Bytes returns the side-channel form of p
func (p TouchPacket) Bytes() []byte {
	b := make([]byte, TouchPacketSize)
	binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(p.X))
	binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(p.Y))
	binary.LittleEndian.PutUint32(b[8:12], p.PointerID)
	binary.LittleEndian.PutUint32(b[12:16], p.Action)
	return b
}

// DecodeTouchPacket parses a side-channel touch
func DecodeTouchPacket(data []byte) (TouchPacket, bool) {
	if len(data) != TouchPacketSize {
		return TouchPacket{}, false
	}
	return TouchPacket{
		X:         math.Float32frombits(binary.LittleEndian.Uint32(data[0:4])),
		Y:         math.Float32frombits(binary.LittleEndian.Uint32(data[4:8])),
		PointerID: binary.LittleEndian.Uint32(data[8:12]),
		Action:    binary.LittleEndian.Uint32(data[12:16]),
	}, true
}

func clampUnit(v float32) float32 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// toPixel maps a normalized coordinate onto [0, dim-1]
func toPixel(norm float32, dim uint32) uint32 {
	if dim == 0 {
		return 0
	}
	limit := int64(dim) - 1
	px := int64(math.Round(float64(norm * float32(dim-1))))
	if px < 0 {
		return 0
	}
	if px > limit {
		return uint32(limit)
	}
	return uint32(px)
}

// InputSourceHandler serves the input channel and turns side-channel touches
// into InputReports
type InputSourceHandler struct {
	baseHandler

	width  uint32
	height uint32
	sent   uint64
}

var (
	_ Handler       = (*InputSourceHandler)(nil)
	_ TouchConsumer = (*InputSourceHandler)(nil)
)

// NewInputSourceHandler creates the input handler for a width x height touch
// surface. Zero dimensions fall back to DefaultTouchWidth x DefaultTouchHeight.
func NewInputSourceHandler(width, height uint32) *InputSourceHandler {
	if width == 0 || height == 0 {
		width, height = DefaultTouchWidth, DefaultTouchHeight
	}
	return &InputSourceHandler{
		baseHandler: newBaseHandler(messenger.ChannelInputSource.String()),
		width:       width,
		height:      height,
	}
}

// Handle implements Handler
func (h *InputSourceHandler) Handle(msg *messenger.Message) bool {
	return h.dispatch(msg, h.handleSpecific)
}

func (h *InputSourceHandler) handleSpecific(msg *messenger.Message, id messenger.MessageID, body []byte) bool {
	if id != aap.InputMessageKeyBindingRequest {
		return false
	}
	var req aap.KeyBindingRequest
	if !h.parse("KeyBindingRequest", body, &req) {
		return false
	}
	h.log("Handle").WithField("keycodes", req.Keycodes).Debug("Key binding request")
	return h.reply(msg, aap.InputMessageKeyBindingResponse, &aap.KeyBindingResponse{Status: aap.StatusSuccess})
}

// OnTouchEvent implements TouchConsumer
func (h *InputSourceHandler) OnTouchEvent(timestampUsec uint64, data []byte) {
	touch, ok := DecodeTouchPacket(data)
	if !ok {
		h.log("OnTouchEvent").WithFields(logrus.Fields{
			"expected": TouchPacketSize,
			"got":      len(data),
		}).Error("Touch payload size mismatch")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sender == nil || h.channelID == messenger.ChannelNone {
		h.log("OnTouchEvent").Error("Cannot send input report, sender or channel unavailable")
		return
	}

	report := h.buildReport(timestampUsec, touch)
	h.sent++
	h.sender.SendProtobuf(h.channelID, h.encryption, messenger.MessageSpecific, aap.InputMessageInputReport, report)
}

func (h *InputSourceHandler) buildReport(timestampUsec uint64, touch TouchPacket) *aap.InputReport {
	px := toPixel(clampUnit(touch.X), h.width)
	py := toPixel(clampUnit(touch.Y), h.height)

	h.log("buildReport").WithFields(logrus.Fields{
		"x":          px,
		"y":          py,
		"pointer_id": touch.PointerID,
		"action":     touch.Action,
	}).Debug("Touch decoded")

	return &aap.InputReport{
		Timestamp: timestampUsec,
		TouchEvent: &aap.TouchEvent{
			Pointers: []aap.Pointer{{X: px, Y: py, PointerID: touch.PointerID}},
			Action:   aap.PointerAction(touch.Action),
		},
	}
}

// ReportsSent returns the number of input reports sent
func (h *InputSourceHandler) ReportsSent() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sent
}
