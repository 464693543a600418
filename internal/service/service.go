// Package service is the producer-facing surface: it persists new
// notifications and kicks off an immediate run when a created type asks
// for one.
package service

import (
	"context"
	"errors"
	"fmt"

	"notifyd/internal/notification"
	"notifyd/internal/pipeline"
	"notifyd/internal/registry"
	"notifyd/internal/store"
	"notifyd/pkg/logx"
)

// Notifications creates notifications and triggers immediate processing.
type Notifications struct {
	store store.Store
	types *registry.Types
	job   *pipeline.Job
	log   logx.Logger

	// defaultStatus is applied to notifications created without one.
	defaultStatus notification.Status
}

func New(st store.Store, types *registry.Types, statuses *registry.Statuses, job *pipeline.Job, log logx.Logger) *Notifications {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifications{
		store:         st,
		types:         types,
		job:           job,
		log:           log,
		defaultStatus: statuses.Pending(),
	}
}

// Create persists a new notification. If its registered type processes
// immediately, the immediate-mode run is triggered synchronously; a
// concurrent run surfaces as pipeline.ErrAlreadyRunning.
func (s *Notifications) Create(ctx context.Context, n *notification.Notification) (*notification.Notification, error) {
	if err := s.validateNew(n); err != nil {
		return nil, err
	}
	if n.Status.IsZero() {
		n.Status = s.defaultStatus
	}
	if err := s.store.Save(ctx, n); err != nil {
		return nil, err
	}

	if h, ok := s.types.Handler(n.Type); ok && h.Mode == notification.ModeImmediate {
		if err := s.job.Run(ctx, notification.ModeImmediate); err != nil {
			return n, err
		}
	}
	return n, nil
}

// CreateAll persists a batch. The immediate-mode run is triggered once
// if any created type processes immediately.
func (s *Notifications) CreateAll(ctx context.Context, ns []*notification.Notification) ([]*notification.Notification, error) {
	needsImmediate := false
	for _, n := range ns {
		if err := s.validateNew(n); err != nil {
			return nil, err
		}
		if n.Status.IsZero() {
			n.Status = s.defaultStatus
		}
		if h, ok := s.types.Handler(n.Type); ok && h.Mode == notification.ModeImmediate {
			needsImmediate = true
		}
	}
	if err := s.store.SaveAll(ctx, ns); err != nil {
		return nil, err
	}
	if needsImmediate {
		if err := s.job.Run(ctx, notification.ModeImmediate); err != nil {
			return ns, err
		}
	}
	return ns, nil
}

func (s *Notifications) validateNew(n *notification.Notification) error {
	if n.ID != "" {
		return errors.New("service: notification already has an id")
	}
	if n.RecipientRef == "" {
		return errors.New("service: recipient reference is required")
	}
	if n.DateScheduled.IsZero() {
		return errors.New("service: scheduled date is required")
	}
	if n.Type == "" {
		return errors.New("service: notification type is required")
	}
	return nil
}

// RunScheduled triggers the scheduled-mode run; the cron entry calls
// this.
func (s *Notifications) RunScheduled(ctx context.Context) error {
	if err := s.job.Run(ctx, notification.ModeScheduled); err != nil {
		return fmt.Errorf("scheduled notification run: %w", err)
	}
	return nil
}
