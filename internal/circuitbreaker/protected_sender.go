package circuitbreaker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hansika-eng/clockdin/internal/mailer"
)

// ProtectedSender wraps a mailer.Sender with a CircuitBreaker. An open
// circuit surfaces as a transient channel error, so affected reminders
// simply stay due and are retried once the provider recovers.
type ProtectedSender struct {
	sender  mailer.Sender
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewProtectedSender wraps a sender with circuit breaker protection.
func NewProtectedSender(sender mailer.Sender, breaker *CircuitBreaker, logger *zap.Logger) *ProtectedSender {
	return &ProtectedSender{
		sender:  sender,
		breaker: breaker,
		logger:  logger,
	}
}

// Send attempts to send a message through the circuit breaker.
// If the circuit is open, fails fast without touching the provider.
func (p *ProtectedSender) Send(ctx context.Context, msg *mailer.Message) error {
	if !p.breaker.Allow() {
		p.logger.Warn("circuit breaker rejected dispatch",
			zap.String("breaker", p.breaker.config.Name),
			zap.String("reminder_id", msg.ReminderID.String()),
			zap.String("channel", msg.Channel),
			zap.String("state", p.breaker.GetState().String()),
		)
		return mailer.Transient(fmt.Errorf("%w: %s sender unavailable", ErrCircuitOpen, p.breaker.config.Name))
	}

	err := p.sender.Send(ctx, msg)
	if err != nil {
		// A permanent rejection means the provider answered; only
		// transient failures count toward opening the circuit.
		if !mailer.IsPermanent(err) {
			p.breaker.RecordFailure()
		}
		return err
	}

	p.breaker.RecordSuccess()
	return nil
}

// SupportsChannel delegates to the underlying sender.
func (p *ProtectedSender) SupportsChannel(channel string) bool {
	return p.sender.SupportsChannel(channel)
}

// Breaker returns the underlying circuit breaker for monitoring.
func (p *ProtectedSender) Breaker() *CircuitBreaker {
	return p.breaker
}
