package alarm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/meter-fleet/internal/core/events"
)

type Enqueuer interface {
	Enqueue(n Notification) bool
}

type EventHandler struct {
	queue  Enqueuer
	logger *slog.Logger
}

func NewEventHandler(queue Enqueuer, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		queue:  queue,
		logger: logger,
	}
}

func (h *EventHandler) HandleTelemetryAlarm(_ context.Context, event events.Event) error {
	alarmEvent, ok := event.(*events.TelemetryAlarmEvent)
	if !ok {
		h.logger.Error("invalid event type for telemetry alarm handler", "event_type", event.EventType())
		return fmt.Errorf("expected TelemetryAlarmEvent, got %T", event)
	}

	n := Format(alarmEvent)
	if !h.queue.Enqueue(n) {
		h.logger.Warn("alarm queue full, notification dropped",
			"device_id", alarmEvent.DeviceID,
			"event_id", alarmEvent.EventID())
	}
	return nil
}

// Format renders the notification sent for one alarm event.
func Format(e *events.TelemetryAlarmEvent) Notification {
	location := e.Location
	if location == "" {
		location = "unknown location"
	}
	names := make([]string, len(e.Alarms))
	for i, a := range e.Alarms {
		names[i] = strings.ReplaceAll(strings.TrimSuffix(a, "_alarm"), "_", " ")
	}

	return Notification{
		DeviceID: e.DeviceID,
		Subject:  fmt.Sprintf("Meter alarm: %s", e.DeviceID),
		Message: fmt.Sprintf("Meter %s at %s raised %d alarm(s): %s\nRecorded at %s",
			e.DeviceID, location, len(e.Alarms), strings.Join(names, ", "), e.RecordedAt.UTC().Format(time.RFC3339)),
	}
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeTelemetryAlarm, h.HandleTelemetryAlarm)

	h.logger.Info("alarm event handlers registered",
		"handlers", []string{events.EventTypeTelemetryAlarm})
}
