package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeTelemetryRecorded = "telemetry.recorded"
	EventTypeTelemetryAlarm    = "telemetry.alarm"
)

// TelemetryRecordedEvent carries one stored reading. Reading is the JSON view
// of the row and is forwarded to live subscribers as is.
type TelemetryRecordedEvent struct {
	BaseEvent
	MeterID    int64       `json:"meter_id"`
	DeviceID   string      `json:"device_id"`
	RecordedAt time.Time   `json:"recorded_at"`
	Reading    interface{} `json:"reading"`
}

func NewTelemetryRecordedEvent(meterID int64, deviceID string, recordedAt time.Time, reading interface{}) *TelemetryRecordedEvent {
	return &TelemetryRecordedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeTelemetryRecorded,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"meter_id":    meterID,
				"device_id":   deviceID,
				"recorded_at": recordedAt,
			},
		},
		MeterID:    meterID,
		DeviceID:   deviceID,
		RecordedAt: recordedAt,
		Reading:    reading,
	}
}

type TelemetryAlarmEvent struct {
	BaseEvent
	MeterID    int64     `json:"meter_id"`
	DeviceID   string    `json:"device_id"`
	Location   string    `json:"location"`
	RecordedAt time.Time `json:"recorded_at"`
	Alarms     []string  `json:"alarms"`
}

func NewTelemetryAlarmEvent(meterID int64, deviceID, location string, recordedAt time.Time, alarms []string) *TelemetryAlarmEvent {
	return &TelemetryAlarmEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeTelemetryAlarm,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"meter_id":    meterID,
				"device_id":   deviceID,
				"location":    location,
				"recorded_at": recordedAt,
				"alarms":      alarms,
			},
		},
		MeterID:    meterID,
		DeviceID:   deviceID,
		Location:   location,
		RecordedAt: recordedAt,
		Alarms:     alarms,
	}
}
