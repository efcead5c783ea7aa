package mailer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/google/uuid"
)

// Channel constants
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Message is one outbound notification built from a due reminder and its
// resolved event.
type Message struct {
	ReminderID uuid.UUID
	Channel    string // "email" or "sms"
	Recipient  string
	Subject    string
	Body       string
}

// Sender is the unified interface for outbound notification channels.
// Implementations: Email (SES), SMS (SNS), LogSender for development.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
	SupportsChannel(channel string) bool
}

// MultiSender routes messages to the appropriate channel sender
type MultiSender struct {
	senders []Sender
	logger  *zap.Logger
}

// NewMultiSender creates a router that uses multiple underlying senders
func NewMultiSender(logger *zap.Logger, senders ...Sender) *MultiSender {
	return &MultiSender{
		senders: senders,
		logger:  logger,
	}
}

// Send routes the message to the first sender supporting its channel.
// An unroutable channel is a permanent failure: no amount of retrying
// will grow a sender for it.
func (m *MultiSender) Send(ctx context.Context, msg *Message) error {
	for _, sender := range m.senders {
		if sender.SupportsChannel(msg.Channel) {
			m.logger.Debug("routing message to sender",
				zap.String("channel", msg.Channel),
				zap.String("reminder_id", msg.ReminderID.String()),
			)
			return sender.Send(ctx, msg)
		}
	}

	return Permanent(fmt.Errorf("no sender found for channel: %s", msg.Channel))
}

// SupportsChannel checks if any underlying sender supports the channel
func (m *MultiSender) SupportsChannel(channel string) bool {
	for _, sender := range m.senders {
		if sender.SupportsChannel(channel) {
			return true
		}
	}
	return false
}

// LogSender is a simple sender that logs messages (for testing/development)
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg *Message) error {
	s.logger.Info("logging message (development mode)",
		zap.String("reminder_id", msg.ReminderID.String()),
		zap.String("channel", msg.Channel),
		zap.String("recipient", msg.Recipient),
		zap.String("subject", msg.Subject),
	)
	return nil
}

func (s *LogSender) SupportsChannel(channel string) bool {
	// LogSender accepts all channels in development/test mode
	return channel == ChannelEmail || channel == ChannelSMS
}
