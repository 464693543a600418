package pipeline

import (
	"context"
	"fmt"
	"time"

	"notifyd/internal/notification"
	"notifyd/internal/registry"
	"notifyd/internal/store"
	"notifyd/pkg/logx"
)

// Writer is the only stage with side effects: it dispatches valid
// notifications, suppresses duplicate sends within the run, spawns
// follow-up notifications for reminder series, and persists every
// outcome — failures included, because the record is the error report.
//
// A Writer is created fresh per run; the dispatch-key set it owns is the
// run-scoped dedup state and must never outlive the run.
type Writer struct {
	types    *registry.Types
	statuses *registry.Statuses
	store    store.Store
	log      logx.Logger
	now      func() time.Time

	dispatched map[string]struct{}
}

func NewWriter(types *registry.Types, statuses *registry.Statuses, st store.Store, log logx.Logger, now func() time.Time) *Writer {
	if log.IsZero() {
		log = logx.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &Writer{
		types:      types,
		statuses:   statuses,
		store:      st,
		log:        log,
		now:        now,
		dispatched: make(map[string]struct{}),
	}
}

// Write processes one chunk. Errors local to a single notification are
// converted into terminal statuses on that notification; only store
// failures propagate and abort the run.
func (w *Writer) Write(ctx context.Context, chunk []*notification.Notification) error {
	for _, n := range chunk {
		n.DateTimeProcessed = w.now()

		switch {
		case !isNotificationValid(n.StatusMeta):
			w.markInvalid(n)

		case w.isDuplicate(n.DispatchKey()):
			vr := notification.Invalid(duplicateReason)
			n.StatusMeta = &notification.StatusMeta{Validation: &vr}
			w.markInvalid(n)

		default:
			if err := w.dispatch(ctx, n); err != nil {
				return err
			}
		}

		if err := w.store.Save(ctx, n); err != nil {
			return fmt.Errorf("persist notification %s: %w", n.ID, err)
		}
	}
	return nil
}

func (w *Writer) isDuplicate(key string) bool {
	_, dup := w.dispatched[key]
	return dup
}

func (w *Writer) dispatch(ctx context.Context, n *notification.Notification) error {
	h, ok := w.types.Handler(n.Type)
	if !ok {
		// Validation already vouched for this type; absence here is a
		// registry consistency fault. Report loudly, fail the item,
		// continue the run.
		w.log.Error("no handler registered for validated notification type",
			logx.String("id", n.ID), logx.String("type", n.Type))
		w.updateDispatched(n, &notification.DispatchResult{
			Successful:   false,
			ErrorMessage: fmt.Sprintf("no handler found for notification type: %s", n.Type),
		})
		return nil
	}

	results, err := h.Dispatcher.Dispatch(ctx, n)
	if err != nil {
		results = []notification.DispatchResult{{Successful: false, ErrorMessage: err.Error()}}
	}
	if len(results) == 0 {
		results = []notification.DispatchResult{{Successful: false, ErrorMessage: "dispatcher returned no result"}}
	}

	if err := w.saveSiblings(ctx, n, results[1:]); err != nil {
		return err
	}
	if err := w.scheduleNext(ctx, n, h); err != nil {
		return err
	}

	w.updateDispatched(n, &results[0])
	if results[0].Successful {
		w.dispatched[n.DispatchKey()] = struct{}{}
	}
	return nil
}

// saveSiblings persists one cloned notification per dispatch result
// beyond the first; these represent the extra channels of a fan-out
// send.
func (w *Writer) saveSiblings(ctx context.Context, n *notification.Notification, extra []notification.DispatchResult) error {
	if len(extra) == 0 {
		return nil
	}
	siblings := make([]*notification.Notification, 0, len(extra))
	for i := range extra {
		cp := &notification.Notification{
			Type:              n.Type,
			RecipientRef:      n.RecipientRef,
			DateScheduled:     n.DateScheduled,
			DateTimeProcessed: n.DateTimeProcessed,
			Status:            n.Status,
			Metadata:          n.Metadata,
			StatusMeta:        &notification.StatusMeta{Validation: n.Validation()},
		}
		w.updateDispatched(cp, &extra[i])
		siblings = append(siblings, cp)
	}
	if err := w.store.SaveAll(ctx, siblings); err != nil {
		return fmt.Errorf("persist fan-out notifications for %s: %w", n.ID, err)
	}
	return nil
}

// scheduleNext persists the next occurrence of a reminder series, if the
// notification's metadata tracks one and a future date remains.
func (w *Writer) scheduleNext(ctx context.Context, n *notification.Notification, h registry.Handler) error {
	if h.DecodeMetadata == nil {
		return nil
	}
	meta, err := h.DecodeMetadata(n.Metadata)
	if err != nil {
		// Validation checked decodability; a failure here only skips
		// series generation for this item.
		w.log.Warn("metadata no longer decodes, skipping series generation",
			logx.String("id", n.ID), logx.Err(err))
		return nil
	}
	tracker, ok := meta.(notification.Tracker)
	if !ok {
		return nil
	}
	next, err := NextOccurrence(n, tracker, notification.DateOf(w.now()), w.statuses.Pending())
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	w.log.Debug("adding the next notification in the series",
		logx.String("type", n.Type), logx.String("date", next.DateScheduled.String()))
	if err := w.store.Save(ctx, next); err != nil {
		return fmt.Errorf("persist next notification in series for %s: %w", n.ID, err)
	}
	return nil
}

func (w *Writer) markInvalid(n *notification.Notification) {
	w.log.Debug("notification marked invalid", logx.String("id", n.ID))
	n.Status = w.statuses.Invalid()
}

// updateDispatched records the dispatch result and derives the terminal
// status: sent on success, failure otherwise.
func (w *Writer) updateDispatched(n *notification.Notification, dr *notification.DispatchResult) {
	n.StatusMeta = &notification.StatusMeta{Validation: n.Validation(), Dispatch: dr}
	if dr.Successful {
		n.Status = w.statuses.Sent()
		w.log.Debug("notification sent", logx.String("id", n.ID))
	} else {
		n.Status = w.statuses.Failure()
		w.log.Error("notification failed to send",
			logx.String("id", n.ID), logx.String("err_message", dr.ErrorMessage))
	}
}

func isNotificationValid(sm *notification.StatusMeta) bool {
	return sm != nil && sm.Validation != nil && sm.Validation.Successful
}
