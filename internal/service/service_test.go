package service

import (
	"context"
	"testing"
	"time"

	"notifyd/internal/notification"
	"notifyd/internal/pipeline"
	"notifyd/internal/registry"
	"notifyd/internal/store"
	"notifyd/pkg/logx"
)

type fixture struct {
	types    *registry.Types
	statuses *registry.Statuses
	store    *store.Memory
	svc      *Notifications
	calls    *int
}

type stubFinder struct{}

func (stubFinder) FindByRef(ctx context.Context, ref string) (any, error) { return ref, nil }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	types := registry.NewTypes(logx.Nop())
	statuses := registry.DefaultStatusSet()
	st := store.NewMemory(statuses)
	job := pipeline.NewJob(pipeline.JobConfig{
		Types:    types,
		Statuses: statuses,
		Store:    st,
		Finder:   stubFinder{},
		Tracker:  pipeline.NewMemoryTracker(),
		Log:      logx.Nop(),
		Now:      func() time.Time { return time.Date(2026, time.June, 10, 12, 0, 0, 0, time.UTC) },
	})

	calls := 0
	register := func(name string, mode notification.Mode) {
		h := registry.Handler{
			Mode: mode,
			Validator: registry.ValidatorFunc(func(ctx context.Context, n *notification.Notification) notification.ValidationResult {
				return notification.Valid()
			}),
			Dispatcher: registry.DispatcherFunc(func(ctx context.Context, n *notification.Notification) ([]notification.DispatchResult, error) {
				calls++
				return []notification.DispatchResult{{Successful: true}}, nil
			}),
		}
		if err := types.Register(name, h); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	register("alert", notification.ModeImmediate)
	register("reminder", notification.ModeScheduled)

	return &fixture{
		types:    types,
		statuses: statuses,
		store:    st,
		svc:      New(st, types, statuses, job, logx.Nop()),
		calls:    &calls,
	}
}

func newNotification(typ string) *notification.Notification {
	return &notification.Notification{
		Type:          typ,
		RecipientRef:  "pt-1",
		DateScheduled: notification.NewDate(2026, time.June, 10),
	}
}

func TestCreateImmediateTypeTriggersRun(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	n, err := f.svc.Create(context.Background(), newNotification("alert"))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if n.ID == "" {
		t.Fatal("ID not assigned on create")
	}
	if *f.calls != 1 {
		t.Fatalf("dispatcher calls = %d, want 1 (synchronous immediate run)", *f.calls)
	}
	saved, err := f.store.Get(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("row missing: %v", err)
	}
	if saved.Status != f.statuses.Sent() {
		t.Fatalf("Status = %v, want sent after immediate run", saved.Status)
	}
}

func TestCreateScheduledTypeStaysPending(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	n, err := f.svc.Create(context.Background(), newNotification("reminder"))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if *f.calls != 0 {
		t.Fatal("scheduled type must wait for the cron run")
	}
	saved, err := f.store.Get(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("row missing: %v", err)
	}
	if saved.Status != f.statuses.Pending() {
		t.Fatalf("Status = %v, want pending", saved.Status)
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	tests := []struct {
		name   string
		mutate func(n *notification.Notification)
	}{
		{name: "existing id", mutate: func(n *notification.Notification) { n.ID = "abc" }},
		{name: "no recipient", mutate: func(n *notification.Notification) { n.RecipientRef = "" }},
		{name: "no date", mutate: func(n *notification.Notification) { n.DateScheduled = notification.Date{} }},
		{name: "no type", mutate: func(n *notification.Notification) { n.Type = "" }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			n := newNotification("alert")
			tt.mutate(n)
			if _, err := f.svc.Create(context.Background(), n); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCreateAllTriggersSingleImmediateRun(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	batch := []*notification.Notification{
		newNotification("alert"),
		newNotification("reminder"),
	}
	batch[1].RecipientRef = "pt-2"
	if _, err := f.svc.CreateAll(context.Background(), batch); err != nil {
		t.Fatalf("CreateAll error: %v", err)
	}
	// The immediate run dispatches the alert only; the reminder is a
	// scheduled type and survives as pending.
	if *f.calls != 1 {
		t.Fatalf("dispatcher calls = %d, want 1", *f.calls)
	}
	var pending int
	for _, row := range f.store.All() {
		if row.Status == f.statuses.Pending() {
			pending++
		}
	}
	if pending != 1 {
		t.Fatalf("pending rows = %d, want 1", pending)
	}
}

func TestCreateDefaultsStatus(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	n := newNotification("reminder")
	if !n.Status.IsZero() {
		t.Fatal("fixture notification should start without a status")
	}
	created, err := f.svc.Create(context.Background(), n)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if created.Status != f.statuses.Pending() {
		t.Fatalf("Status = %v, want default pending", created.Status)
	}
}
