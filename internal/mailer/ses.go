package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// sesAPI is the slice of the SES client the sender uses.
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender delivers email messages via AWS SES
type SESSender struct {
	client sesAPI
	from   string
	logger *zap.Logger
}

type SESConfig struct {
	Region    string
	FromEmail string
}

func NewSESSender(ctx context.Context, cfg SESConfig, logger *zap.Logger) (*SESSender, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config: %w", err)
	}
	return &SESSender{
		client: ses.NewFromConfig(awsCfg),
		from:   cfg.FromEmail,
		logger: logger,
	}, nil
}

// Send sends an email message via AWS SES
func (s *SESSender) Send(ctx context.Context, msg *Message) error {
	if msg.Channel != ChannelEmail {
		return Permanent(fmt.Errorf("SES sender only supports email, got: %s", msg.Channel))
	}

	if _, err := mail.ParseAddress(msg.Recipient); err != nil {
		return Permanent(fmt.Errorf("malformed recipient %q: %w", msg.Recipient, err))
	}
	if msg.Subject == "" {
		return Permanent(fmt.Errorf("message missing subject"))
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.Recipient},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(msg.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(msg.Body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return classifySESError(err)
	}

	s.logger.Info("email sent via SES",
		zap.String("reminder_id", msg.ReminderID.String()),
		zap.String("to", msg.Recipient),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)

	return nil
}

// classifySESError sorts SES failures into the retry taxonomy. Rejected
// messages and unverified sending domains stay broken on retry; anything
// else (throttling, network, 5xx) is assumed to clear up.
func classifySESError(err error) error {
	var rejected *types.MessageRejected
	if errors.As(err, &rejected) {
		return Permanent(fmt.Errorf("ses rejected message: %w", err))
	}

	var unverified *types.MailFromDomainNotVerifiedException
	if errors.As(err, &unverified) {
		return Permanent(fmt.Errorf("ses sender domain not verified: %w", err))
	}

	var missingConfigSet *types.ConfigurationSetDoesNotExistException
	if errors.As(err, &missingConfigSet) {
		return Permanent(fmt.Errorf("ses configuration set missing: %w", err))
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultServer {
		return Transient(fmt.Errorf("ses server fault: %w", err))
	}

	return Transient(fmt.Errorf("ses send failed: %w", err))
}

// SupportsChannel checks if this sender supports the email channel
func (s *SESSender) SupportsChannel(channel string) bool {
	return channel == ChannelEmail
}
