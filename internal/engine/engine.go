// Package engine implements the reminder scheduling and delivery loop:
// a periodic scan for due reminders, fan-out dispatch over the outbound
// channel, and the delivered-flag ledger update. Delivery is
// at-least-once: a reminder leaves the due set only after the channel
// confirms the send and the flag is persisted.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/google/uuid"
	"github.com/hansika-eng/clockdin/internal/db"
	"github.com/hansika-eng/clockdin/internal/mailer"
	"github.com/hansika-eng/clockdin/internal/metrics"
)

// ReminderStore is the slice of the reminder repository the engine uses.
type ReminderStore interface {
	FindDue(ctx context.Context, now time.Time, limit int) ([]*db.Reminder, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) error
	RecordFailure(ctx context.Context, id uuid.UUID, errMsg string) error
	MarkOrphaned(ctx context.Context, id uuid.UUID) error
}

// SubjectResolver resolves the event a reminder points at.
type SubjectResolver interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*db.Event, error)
}

// DeadLetter mirrors repeatedly failing reminders for operator review.
type DeadLetter interface {
	Publish(ctx context.Context, rem *db.Reminder, lastError string) error
}

type Engine struct {
	store    ReminderStore
	resolver SubjectResolver
	sender   mailer.Sender
	dlq      DeadLetter // nil disables mirroring
	config   Config
	logger   *zap.Logger
	now      func() time.Time
}

type Config struct {
	ScanInterval    time.Duration
	BatchSize       int
	Workers         int
	DeadLetterAfter int
}

func New(store ReminderStore, resolver SubjectResolver, sender mailer.Sender, cfg Config, logger *zap.Logger) *Engine {
	if cfg.ScanInterval == 0 {
		cfg.ScanInterval = 5 * time.Minute
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.Workers == 0 {
		cfg.Workers = 8
	}
	if cfg.DeadLetterAfter == 0 {
		cfg.DeadLetterAfter = 5
	}

	return &Engine{
		store:    store,
		resolver: resolver,
		sender:   sender,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// WithDeadLetter attaches an optional dead letter mirror.
func (e *Engine) WithDeadLetter(dlq DeadLetter) *Engine {
	e.dlq = dlq
	return e
}

// Run drives the scan loop until ctx is canceled. The scan and its
// dispatch batch run inline in the loop, so ticks are serialized: a slow
// batch delays the next scan rather than overlapping it.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.config.ScanInterval)
	defer ticker.Stop()

	e.logger.Info("reminder engine started",
		zap.Duration("scan_interval", e.config.ScanInterval),
		zap.Int("workers", e.config.Workers),
		zap.Int("batch_size", e.config.BatchSize),
	)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("reminder engine stopping")
			return
		case <-ticker.C:
			e.runCycle(ctx)
		}
	}
}

// runCycle performs one scan tick: pull the due batch, fan out across
// the worker pool, and wait for every in-flight dispatch to finish.
func (e *Engine) runCycle(ctx context.Context) {
	now := e.now()

	due, err := e.store.FindDue(ctx, now, e.config.BatchSize)
	if err != nil {
		// Store unreachable: abort this cycle, try again next tick.
		e.logger.Error("due-reminder scan failed", zap.Error(err))
		metrics.RecordScanCycle("failed")
		return
	}

	metrics.RecordScanCycle("ok")
	metrics.RecordDueBatch(len(due))

	if len(due) == 0 {
		return
	}

	e.logger.Info("scan picked up due reminders",
		zap.Int("count", len(due)),
		zap.Time("now", now),
	)

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.config.Workers)

	for _, rem := range due {
		if ctx.Err() != nil {
			// Shutting down: abandon the rest of the batch. Undispatched
			// reminders stay due and are picked up after restart.
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(rem *db.Reminder) {
			defer wg.Done()
			defer func() { <-sem }()
			e.dispatch(ctx, rem)
		}(rem)
	}

	wg.Wait()
}

// dispatch handles one due reminder end to end. Failures are contained
// here: nothing a single reminder does can abort the batch.
func (e *Engine) dispatch(ctx context.Context, rem *db.Reminder) {
	ev, err := e.resolver.GetEvent(ctx, rem.EventID)
	if errors.Is(err, db.ErrNotFound) {
		metrics.RecordOrphaned()
		e.logger.Warn("event no longer exists, orphaning reminder",
			zap.String("reminder_id", rem.ID.String()),
			zap.String("event_id", rem.EventID.String()),
		)
		if err := e.store.MarkOrphaned(ctx, rem.ID); err != nil {
			e.logger.Error("failed to mark reminder orphaned",
				zap.Error(err),
				zap.String("reminder_id", rem.ID.String()),
			)
		}
		return
	}
	if err != nil {
		// Store hiccup resolving the subject; leave the reminder due.
		e.logger.Error("failed to resolve event for reminder",
			zap.Error(err),
			zap.String("reminder_id", rem.ID.String()),
		)
		return
	}

	msg := buildMessage(rem, ev)

	if err := e.sender.Send(ctx, msg); err != nil {
		e.handleSendFailure(ctx, rem, err)
		return
	}

	if err := e.store.MarkDelivered(ctx, rem.ID); err != nil {
		if errors.Is(err, db.ErrAlreadyDelivered) {
			// Another worker or process won the race; duplicate send is
			// within the at-least-once contract.
			e.logger.Warn("reminder was already marked delivered",
				zap.String("reminder_id", rem.ID.String()),
			)
			return
		}
		e.logger.Error("sent but failed to mark delivered, duplicate send possible",
			zap.Error(err),
			zap.String("reminder_id", rem.ID.String()),
		)
		return
	}

	metrics.RecordDispatch(rem.Channel, "delivered")
	e.logger.Info("reminder delivered",
		zap.String("reminder_id", rem.ID.String()),
		zap.String("channel", rem.Channel),
		zap.String("recipient", rem.Recipient),
	)
}

// handleSendFailure records the failure, leaves the reminder due for the
// next scan, and mirrors stubborn permanent failures to the DLQ.
func (e *Engine) handleSendFailure(ctx context.Context, rem *db.Reminder, sendErr error) {
	attempts := rem.Attempts + 1
	permanent := mailer.IsPermanent(sendErr)

	if permanent {
		metrics.RecordDispatch(rem.Channel, "permanent_error")
		e.logger.Error("permanent channel failure",
			zap.Error(sendErr),
			zap.String("reminder_id", rem.ID.String()),
			zap.String("recipient", rem.Recipient),
			zap.Int("attempts", attempts),
		)
	} else {
		metrics.RecordDispatch(rem.Channel, "transient_error")
		e.logger.Warn("transient channel failure, retrying next scan",
			zap.Error(sendErr),
			zap.String("reminder_id", rem.ID.String()),
			zap.String("recipient", rem.Recipient),
			zap.Int("attempts", attempts),
		)
	}

	if err := e.store.RecordFailure(ctx, rem.ID, sendErr.Error()); err != nil {
		e.logger.Error("failed to record dispatch failure",
			zap.Error(err),
			zap.String("reminder_id", rem.ID.String()),
		)
	}

	if permanent && e.dlq != nil && attempts >= e.config.DeadLetterAfter {
		rem.Attempts = attempts
		if err := e.dlq.Publish(ctx, rem, sendErr.Error()); err != nil {
			e.logger.Error("failed to publish dead letter",
				zap.Error(err),
				zap.String("reminder_id", rem.ID.String()),
			)
		} else {
			metrics.RecordDeadLetter()
		}
	}
}

// buildMessage constructs the outbound payload from the reminder and its
// resolved event's display fields.
func buildMessage(rem *db.Reminder, ev *db.Event) *mailer.Message {
	when := "soon"
	if ev.Date != nil {
		when = "on " + ev.Date.Format("Monday, January 2, 2006")
	}

	body := fmt.Sprintf("Hi! This is a reminder for the event %q happening %s.", ev.Title, when)
	if ev.Location != "" {
		body += fmt.Sprintf(" Location: %s.", ev.Location)
	}

	return &mailer.Message{
		ReminderID: rem.ID,
		Channel:    rem.Channel,
		Recipient:  rem.Recipient,
		Subject:    "Event Reminder: " + ev.Title,
		Body:       body,
	}
}
