package pipeline

import (
	"context"
	"fmt"

	"notifyd/internal/notification"
	"notifyd/internal/registry"
	"notifyd/internal/store"
	"notifyd/pkg/logx"
)

// Reader produces the ordered work-set for one run: every notification
// in the pending status scheduled on or before today, with its recipient
// resolved.
type Reader struct {
	types    *registry.Types
	statuses *registry.Statuses
	store    store.Store
	finder   RecipientFinder
	log      logx.Logger
}

func NewReader(types *registry.Types, statuses *registry.Statuses, st store.Store, finder RecipientFinder, log logx.Logger) *Reader {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Reader{types: types, statuses: statuses, store: st, finder: finder, log: log}
}

// Read selects the due notifications for the given mode. In immediate
// mode, types registered as scheduled are excluded — but notifications
// whose type has no registered handler pass through on purpose, so the
// failure surfaces during validation instead of being silently dropped.
func (r *Reader) Read(ctx context.Context, mode notification.Mode, today notification.Date) ([]*notification.Notification, error) {
	due, err := r.store.FindPending(ctx, r.statuses.Pending(), today)
	if err != nil {
		return nil, fmt.Errorf("select pending notifications: %w", err)
	}

	if mode == notification.ModeImmediate {
		filtered := due[:0]
		for _, n := range due {
			h, ok := r.types.Handler(n.Type)
			if !ok || h.Mode == notification.ModeImmediate {
				filtered = append(filtered, n)
			}
		}
		due = filtered
	}

	r.log.Debug("selected past-due notifications",
		logx.Int("count", len(due)), logx.String("mode", mode.String()))

	for _, n := range due {
		rec, err := r.finder.FindByRef(ctx, n.RecipientRef)
		if err != nil {
			return nil, fmt.Errorf("resolve recipient %q: %w", n.RecipientRef, err)
		}
		n.Recipient = rec
	}
	return due, nil
}
