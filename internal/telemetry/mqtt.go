package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/frahmantamala/meter-fleet/internal"
)

const DefaultTopic = "meters/+/data"

type Ingester interface {
	Ingest(ctx context.Context, dto IngestDTO) (*Reading, error)
}

// Subscriber feeds MQTT messages into the same ingestion path as the HTTP endpoint.
type Subscriber struct {
	cfg    internal.MQTTConfig
	svc    Ingester
	logger *slog.Logger
}

func NewSubscriber(cfg internal.MQTTConfig, svc Ingester, logger *slog.Logger) *Subscriber {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	return &Subscriber{cfg: cfg, svc: svc, logger: logger}
}

// Run connects, subscribes and blocks until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	if s.cfg.Broker == "" {
		return fmt.Errorf("mqtt broker is not configured")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(c mqtt.Client) {
			// resubscribe after every reconnect
			if token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.onMessage(ctx)); token.Wait() && token.Error() != nil {
				s.logger.Error("mqtt subscribe failed", "topic", s.cfg.Topic, "error", token.Error())
				return
			}
			s.logger.Info("mqtt subscribed", "broker", s.cfg.Broker, "topic", s.cfg.Topic)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			s.logger.Warn("mqtt connection lost", "error", err)
		})
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	defer client.Disconnect(250)

	<-ctx.Done()
	s.logger.Info("mqtt subscriber stopping")
	return nil
}

func (s *Subscriber) onMessage(ctx context.Context) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		if err := s.HandleMessage(ctx, msg.Topic(), msg.Payload()); err != nil {
			s.logger.Warn("mqtt reading rejected", "topic", msg.Topic(), "error", err)
		}
	}
}

// HandleMessage decodes one payload. When the payload has no meter_id the
// device id is taken from the second topic segment, as in meters/<device>/data.
func (s *Subscriber) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	var dto IngestDTO
	if err := json.Unmarshal(payload, &dto); err != nil {
		return internal.NewValidationError("Invalid request body", internal.ErrCodeInvalidBody).WithCause(err)
	}
	if strings.TrimSpace(dto.MeterID) == "" {
		dto.MeterID = DeviceFromTopic(topic)
	}
	_, err := s.svc.Ingest(ctx, dto)
	return err
}

func DeviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
