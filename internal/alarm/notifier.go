package alarm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/frahmantamala/meter-fleet/internal"
)

// Notification is one alarm message ready for delivery.
type Notification struct {
	DeviceID string
	Subject  string
	Message  string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NewNotifier delivers through SNS when a topic is configured and through the
// log otherwise.
func NewNotifier(ctx context.Context, cfg internal.AlarmsConfig, lg *slog.Logger) (Notifier, error) {
	if cfg.SNSTopicARN == "" {
		return NewLogNotifier(lg), nil
	}
	return NewSNSNotifier(ctx, cfg.Region, cfg.SNSTopicARN)
}

type SNSNotifier struct {
	svc      *sns.Client
	topicArn string
}

func NewSNSNotifier(ctx context.Context, region, topicArn string) (*SNSNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &SNSNotifier{
		svc:      sns.NewFromConfig(cfg),
		topicArn: topicArn,
	}, nil
}

func (n *SNSNotifier) Notify(ctx context.Context, msg Notification) error {
	_, err := n.svc.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicArn),
		Subject:  aws.String(msg.Subject),
		Message:  aws.String(msg.Message),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to SNS: %w", err)
	}
	return nil
}

type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(lg *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: lg}
}

func (n *LogNotifier) Notify(_ context.Context, msg Notification) error {
	n.logger.Warn("meter alarm", "device_id", msg.DeviceID, "subject", msg.Subject, "message", msg.Message)
	return nil
}
