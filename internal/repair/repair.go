// Package repair normalizes notification timestamps. Historical records
// predate the canonical occurred_at column and carry a free-text date in
// legacy_date, in whichever format the old client wrote. The pass
// resolves every record to a single canonical timestamp so the rest of
// the system never has to re-interpret the legacy field.
package repair

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/google/uuid"
	"github.com/hansika-eng/clockdin/internal/db"
	"github.com/hansika-eng/clockdin/internal/metrics"
)

// Shape classifies a notification record's timestamp fields.
type Shape int

const (
	// CanonicalShape: occurred_at is present and valid; nothing to do.
	CanonicalShape Shape = iota
	// LegacyShape: occurred_at is missing or invalid and must be derived.
	LegacyShape
)

// legacyLayouts are the date formats observed in historical records,
// tried in order.
var legacyLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	time.RFC1123,
}

// Store is the slice of the notification repository the pass uses.
type Store interface {
	ListAll(ctx context.Context) ([]*db.Notification, error)
	SetOccurredAt(ctx context.Context, id uuid.UUID, occurredAt time.Time) error
}

// Pass is the idempotent timestamp repair operation.
type Pass struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewPass(store Store, logger *zap.Logger) *Pass {
	return &Pass{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Run scans every notification and writes back a canonical occurred_at
// for each record that lacks one. Precedence: keep a valid existing
// value, else adopt a parseable legacy date, else default to the run's
// own execution time. Only changed records are written; a second
// consecutive run fixes zero.
func (p *Pass) Run(ctx context.Context) (int, error) {
	start := p.now()

	records, err := p.store.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list notifications: %w", err)
	}

	fixed := 0
	for _, n := range records {
		if ResolveShape(n) == CanonicalShape {
			continue
		}

		occurredAt := start
		if t, ok := parseLegacyDate(n.LegacyDate); ok {
			occurredAt = t
		}

		if err := p.store.SetOccurredAt(ctx, n.ID, occurredAt); err != nil {
			return fixed, fmt.Errorf("repair notification %s: %w", n.ID, err)
		}

		p.logger.Debug("repaired notification timestamp",
			zap.String("notification_id", n.ID.String()),
			zap.Time("occurred_at", occurredAt),
		)
		fixed++
	}

	metrics.RecordRepairFixed(fixed)
	p.logger.Info("notification repair pass complete",
		zap.Int("scanned", len(records)),
		zap.Int("fixed", fixed),
		zap.Duration("took", p.now().Sub(start)),
	)

	return fixed, nil
}

// ResolveShape reports whether a record already carries a valid
// canonical timestamp.
func ResolveShape(n *db.Notification) Shape {
	if n.OccurredAt != nil && !n.OccurredAt.IsZero() {
		return CanonicalShape
	}
	return LegacyShape
}

// parseLegacyDate tries the known historical layouts against the legacy
// free-text field.
func parseLegacyDate(raw *string) (time.Time, bool) {
	if raw == nil {
		return time.Time{}, false
	}

	s := strings.TrimSpace(*raw)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range legacyLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
