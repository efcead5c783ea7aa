// Package deadletter mirrors reminders that keep failing permanently to
// an SQS queue for operator inspection. The queue is advisory only: the
// reminder row remains the retry source of truth and keeps being
// rescanned regardless of what lands here.
package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"github.com/hansika-eng/clockdin/internal/db"
)

// Config holds SQS configuration.
type Config struct {
	Region   string
	QueueURL string
}

// Message is the payload sent to the dead letter queue.
type Message struct {
	ReminderID string    `json:"reminder_id"`
	EventID    string    `json:"event_id"`
	Recipient  string    `json:"recipient"`
	Channel    string    `json:"channel"`
	TriggerAt  time.Time `json:"trigger_at"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error"`
	MirroredAt int64     `json:"mirrored_at"`
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Producer publishes dead letter messages to SQS.
type Producer struct {
	client   sqsAPI
	queueURL string
	logger   *zap.Logger
}

// NewProducer creates a new dead letter producer.
func NewProducer(ctx context.Context, cfg Config, logger *zap.Logger) (*Producer, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("dead letter producer initialized",
		zap.String("queue_url", cfg.QueueURL),
	)

	return &Producer{
		client:   sqs.NewFromConfig(awsCfg),
		queueURL: cfg.QueueURL,
		logger:   logger,
	}, nil
}

// Publish mirrors a repeatedly failing reminder to the queue.
func (p *Producer) Publish(ctx context.Context, rem *db.Reminder, lastError string) error {
	msg := Message{
		ReminderID: rem.ID.String(),
		EventID:    rem.EventID.String(),
		Recipient:  rem.Recipient,
		Channel:    rem.Channel,
		TriggerAt:  rem.TriggerAt,
		Attempts:   rem.Attempts,
		LastError:  lastError,
		MirroredAt: time.Now().Unix(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	}

	result, err := p.client.SendMessage(ctx, input)
	if err != nil {
		p.logger.Error("failed to publish dead letter",
			zap.Error(err),
			zap.String("reminder_id", rem.ID.String()),
		)
		return fmt.Errorf("sqs send failed: %w", err)
	}

	p.logger.Info("reminder mirrored to dead letter queue",
		zap.String("reminder_id", rem.ID.String()),
		zap.String("sqs_message_id", aws.ToString(result.MessageId)),
		zap.Int("attempts", rem.Attempts),
	)

	return nil
}
