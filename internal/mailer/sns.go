package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender delivers SMS messages via AWS SNS direct publish
type SNSSender struct {
	client snsAPI
	logger *zap.Logger
}

type SNSConfig struct {
	Region string
}

// NewSNSSender creates a new SNS sender for SMS reminders
func NewSNSSender(ctx context.Context, cfg SNSConfig, logger *zap.Logger) (*SNSSender, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config for SNS: %w", err)
	}

	return &SNSSender{
		client: sns.NewFromConfig(awsCfg),
		logger: logger,
	}, nil
}

// Send sends an SMS message via AWS SNS
func (s *SNSSender) Send(ctx context.Context, msg *Message) error {
	if msg.Channel != ChannelSMS {
		return Permanent(fmt.Errorf("SNS sender only supports SMS, got: %s", msg.Channel))
	}

	if !strings.HasPrefix(msg.Recipient, "+") {
		return Permanent(fmt.Errorf("recipient %q is not an E.164 phone number", msg.Recipient))
	}

	body := msg.Body
	if msg.Subject != "" {
		body = msg.Subject + "\n" + msg.Body
	}

	input := &sns.PublishInput{
		PhoneNumber: aws.String(msg.Recipient),
		Message:     aws.String(body),
	}

	result, err := s.client.Publish(ctx, input)
	if err != nil {
		return classifySNSError(err)
	}

	s.logger.Info("SMS sent via SNS",
		zap.String("reminder_id", msg.ReminderID.String()),
		zap.String("phone_number", msg.Recipient),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)

	return nil
}

func classifySNSError(err error) error {
	var invalid *snstypes.InvalidParameterException
	if errors.As(err, &invalid) {
		return Permanent(fmt.Errorf("sns rejected parameters: %w", err))
	}

	var optedOut *snstypes.OptedOutException
	if errors.As(err, &optedOut) {
		return Permanent(fmt.Errorf("recipient opted out of SMS: %w", err))
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultServer {
		return Transient(fmt.Errorf("sns server fault: %w", err))
	}

	return Transient(fmt.Errorf("sns publish failed: %w", err))
}

// SupportsChannel checks if this sender supports the SMS channel
func (s *SNSSender) SupportsChannel(channel string) bool {
	return channel == ChannelSMS
}
