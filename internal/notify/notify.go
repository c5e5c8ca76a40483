// Package notify delivers cost-control alerts.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"spendlens/internal/costcontrol"
	logger "spendlens/internal/log"
)

// maxSubjectLen is the SNS limit on email subjects.
const maxSubjectLen = 100

// Notifier sends a batch of alerts.
type Notifier interface {
	Notify(ctx context.Context, subject string, alerts []costcontrol.Alert) error
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, subject string, alerts []costcontrol.Alert) error {
	for _, a := range alerts {
		slog.WarnContext(ctx, "Cost alert",
			logger.FieldComponent, logger.ComponentNotify,
			"subject", subject,
			"kind", a.Kind,
			"message", a.Message)
	}
	return nil
}

// SNSPublisher is the part of the SNS client used here.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes alerts as one JSON message to a topic.
type SNSNotifier struct {
	client   SNSPublisher
	topicARN string
}

// NewSNSNotifier loads the default AWS configuration (environment, shared
// config, instance role) and targets topicARN.
func NewSNSNotifier(ctx context.Context, topicARN string) (*SNSNotifier, error) {
	if topicARN == "" {
		return nil, errors.New("missing SNS topic ARN")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSNSNotifierWithClient(sns.NewFromConfig(cfg), topicARN), nil
}

func NewSNSNotifierWithClient(client SNSPublisher, topicARN string) *SNSNotifier {
	return &SNSNotifier{client: client, topicARN: topicARN}
}

type alertMessage struct {
	Subject   string              `json:"subject"`
	Alerts    []costcontrol.Alert `json:"alerts"`
	Timestamp time.Time           `json:"timestamp"`
}

// Notify publishes nothing when there are no alerts.
func (n *SNSNotifier) Notify(ctx context.Context, subject string, alerts []costcontrol.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	body, err := json.Marshal(alertMessage{Subject: subject, Alerts: alerts, Timestamp: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal alerts: %w", err)
	}
	if len(subject) > maxSubjectLen {
		subject = subject[:maxSubjectLen]
	}

	out, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("publish alerts: %w", err)
	}

	slog.InfoContext(ctx, "Published cost alerts",
		logger.FieldComponent, logger.ComponentNotify,
		"topic", n.topicARN,
		"alerts", len(alerts),
		"message_id", aws.ToString(out.MessageId))
	return nil
}

// Multi fans alerts out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, subject string, alerts []costcontrol.Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, subject, alerts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig returns a LogNotifier, plus an SNSNotifier when topicARN is set.
func FromConfig(ctx context.Context, topicARN string) (Notifier, error) {
	if topicARN == "" {
		return LogNotifier{}, nil
	}
	sn, err := NewSNSNotifier(ctx, topicARN)
	if err != nil {
		return nil, err
	}
	return Multi{LogNotifier{}, sn}, nil
}
