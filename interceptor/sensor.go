package interceptor

import (
	"bytes"
	"math"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/headunit/aap"
	"github.com/opd-ai/headunit/messenger"
)

type locationEvent struct {
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	AccuracyM  *float64 `json:"accuracy_m"`
	AltitudeM  *float64 `json:"altitude_m"`
	SpeedMps   *float64 `json:"speed_mps"`
	BearingDeg *float64 `json:"bearing_deg"`
}

type nightModeEvent struct {
	Enabled *bool `json:"enabled"`
}

type drivingStatusEvent struct {
	Status *string `json:"status"`
}

var drivingStatuses = map[string]aap.DrivingStatus{
	"no_video":          aap.DrivingStatusNoVideo,
	"no_keyboard_input": aap.DrivingStatusNoKeyboardInput,
	"no_voice_input":    aap.DrivingStatusNoVoiceInput,
	"no_config":         aap.DrivingStatusNoConfig,
	"limit_message_len": aap.DrivingStatusLimitMessageLen,
}

func fixed(v float64, scale float64) int32 {
	return int32(math.Round(v * scale))
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// SensorHandler serves the sensor channel. It accepts the phone's sensor
// subscriptions and turns side-channel sensor JSON into SensorBatch messages.
//
// A sensor document may carry any of:
//
//	{"location": {"latitude": 37.7, "longitude": -122.4, "accuracy_m": 5,
//	              "altitude_m": 12.5, "speed_mps": 3.2, "bearing_deg": 90},
//	 "night_mode": {"enabled": true},
//	 "driving_status": {"status": "no_video"}}
type SensorHandler struct {
	baseHandler

	requested map[aap.SensorType]bool
	batches   uint64
}

var (
	_ Handler        = (*SensorHandler)(nil)
	_ SensorConsumer = (*SensorHandler)(nil)
)

// NewSensorHandler creates the sensor handler
func NewSensorHandler() *SensorHandler {
	return &SensorHandler{
		baseHandler: newBaseHandler(messenger.ChannelSensor.String()),
		requested:   make(map[aap.SensorType]bool),
	}
}

// Handle implements Handler
func (h *SensorHandler) Handle(msg *messenger.Message) bool {
	return h.dispatch(msg, h.handleSpecific)
}

func (h *SensorHandler) handleSpecific(msg *messenger.Message, id messenger.MessageID, body []byte) bool {
	switch id {
	case aap.SensorMessageRequest:
		var req aap.SensorRequest
		if !h.parse("SensorRequest", body, &req) {
			return false
		}
		h.requested[req.Type] = true
		h.channelID = msg.ChannelID
		h.encryption = msg.EncryptionType
		h.log("Handle").WithFields(logrus.Fields{
			"sensor_type":       req.Type,
			"min_update_period": req.MinUpdatePeriod,
		}).Info("Sensor requested")
		return h.reply(msg, aap.SensorMessageResponse, &aap.SensorStartResponse{Status: aap.StatusSuccess})
	case aap.SensorMessageResponse:
		var resp aap.StatusOnly
		if !h.parse("SensorResponse", body, &resp) {
			return false
		}
		h.log("Handle").WithField("response", resp.String()).Debug("Sensor response")
		return true
	default:
		return false
	}
}

// Requested reports whether the phone subscribed to sensor t
func (h *SensorHandler) Requested(t aap.SensorType) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.requested[t]
}

// OnSensorEvent implements SensorConsumer. All recognized sections of one
// document are sent in a single SensorBatch. A section that is present but not
// an object aborts the whole document.
func (h *SensorHandler) OnSensorEvent(timestampUsec uint64, data []byte) {
	logger := h.log("OnSensorEvent").WithField("timestamp", timestampUsec)

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		logger.WithError(err).WithField("bytes", len(data)).Error("Failed to parse sensor json")
		return
	}

	batch, ok := buildSensorBatch(doc, logger)
	if !ok {
		return
	}
	if batch.Empty() {
		logger.Debug("Sensor json contained no handled keys")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sender == nil || h.channelID == messenger.ChannelNone {
		logger.Error("Cannot send sensor batch, sender or channel unavailable")
		return
	}
	h.batches++
	h.sender.SendProtobuf(h.channelID, h.encryption, messenger.MessageSpecific, aap.SensorMessageBatch, batch)
}

func buildSensorBatch(doc map[string]json.RawMessage, logger *logrus.Entry) (*aap.SensorBatch, bool) {
	batch := &aap.SensorBatch{}

	for _, key := range []string{"location", "night_mode", "driving_status"} {
		raw, present := doc[key]
		if !present {
			continue
		}
		if !isObject(raw) {
			logger.WithField("key", key).Error("Sensor json section is not an object")
			return nil, false
		}

		switch key {
		case "location":
			var loc locationEvent
			if err := json.Unmarshal(raw, &loc); err != nil || loc.Latitude == nil || loc.Longitude == nil {
				logger.Error("Location json missing latitude/longitude")
				continue
			}
			batch.Locations = append(batch.Locations, locationData(loc))
		case "night_mode":
			var night nightModeEvent
			if err := json.Unmarshal(raw, &night); err != nil || night.Enabled == nil {
				logger.Error("Night mode json missing enabled boolean")
				continue
			}
			batch.NightMode = append(batch.NightMode, *night.Enabled)
		case "driving_status":
			var driving drivingStatusEvent
			if err := json.Unmarshal(raw, &driving); err != nil || driving.Status == nil {
				logger.Error("Driving status json missing status")
				continue
			}
			status, known := drivingStatuses[*driving.Status]
			if !known {
				status = aap.DrivingStatusUnrestricted
			}
			batch.DrivingStatus = append(batch.DrivingStatus, status)
		}
	}
	return batch, true
}

func locationData(loc locationEvent) aap.LocationData {
	out := aap.LocationData{
		LatitudeE7:  fixed(*loc.Latitude, 1e7),
		LongitudeE7: fixed(*loc.Longitude, 1e7),
	}
	if loc.AccuracyM != nil {
		out.AccuracyE3 = uint32(math.Round(*loc.AccuracyM * 1e3))
	}
	if loc.AltitudeM != nil {
		out.AltitudeE2 = fixed(*loc.AltitudeM, 1e2)
	}
	if loc.SpeedMps != nil {
		out.SpeedE3 = fixed(*loc.SpeedMps, 1e3)
	}
	if loc.BearingDeg != nil {
		out.BearingE6 = fixed(*loc.BearingDeg, 1e6)
	}
	return out
}

// BatchesSent returns the number of sensor batches sent
func (h *SensorHandler) BatchesSent() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.batches
}
