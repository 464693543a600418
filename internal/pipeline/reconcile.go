package pipeline

import (
	"context"
	"fmt"

	"notifyd/internal/notification"
	"notifyd/internal/registry"
	"notifyd/internal/store"
	"notifyd/pkg/logx"
)

// ReconcileJobName is the mutual-exclusion name of the provider status
// reconciliation job.
const ReconcileJobName = "provider-status"

// StatusChecker polls a provider for the final disposition of a
// previously accepted message.
type StatusChecker interface {
	// Refresh takes the recorded dispatch result and returns the updated
	// one, plus whether the provider-side state actually changed.
	Refresh(ctx context.Context, dr *notification.DispatchResult) (*notification.DispatchResult, bool, error)
}

// Reconciler is the secondary pipeline that chases sent notifications
// whose provider still reported a queued state at dispatch time. It runs
// on its own schedule and shares nothing with the main job but the
// store.
type Reconciler struct {
	name     string
	store    store.Store
	statuses *registry.Statuses
	checker  StatusChecker
	tracker  RunTracker
	log      logx.Logger
}

func NewReconciler(st store.Store, statuses *registry.Statuses, checker StatusChecker, tracker RunTracker, log logx.Logger) *Reconciler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Reconciler{
		name:     ReconcileJobName,
		store:    st,
		statuses: statuses,
		checker:  checker,
		tracker:  tracker,
		log:      log.With(logx.String("job", ReconcileJobName)),
	}
}

// Run refreshes provider state for every sent-but-still-queued
// notification. Per-item checker failures are logged and skipped; store
// failures abort the run.
func (r *Reconciler) Run(ctx context.Context) error {
	if err := r.tracker.Begin(r.name); err != nil {
		return fmt.Errorf("%w: %s", err, r.name)
	}
	defer r.tracker.End(r.name)

	items, err := r.store.FindAwaitingProvider(ctx, r.statuses.Sent())
	if err != nil {
		return fmt.Errorf("select queued notifications: %w", err)
	}
	r.log.Debug("updating status for queued notifications", logx.Int("count", len(items)))

	for _, n := range items {
		if n.StatusMeta == nil || n.StatusMeta.Dispatch == nil {
			continue
		}
		updated, changed, err := r.checker.Refresh(ctx, n.StatusMeta.Dispatch)
		if err != nil {
			r.log.Warn("provider status check failed",
				logx.String("id", n.ID), logx.Err(err))
			continue
		}
		if !changed {
			continue
		}
		if !updated.Successful {
			n.Status = r.statuses.Failure()
		}
		n.StatusMeta = &notification.StatusMeta{Validation: n.Validation(), Dispatch: updated}
		if err := r.store.Save(ctx, n); err != nil {
			return fmt.Errorf("persist notification %s: %w", n.ID, err)
		}
	}
	return nil
}
