package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"notifyd/internal/notification"
	"notifyd/internal/registry"
	"notifyd/internal/store"
	"notifyd/pkg/logx"
)

type fakeChecker struct {
	calls   int
	updated *notification.DispatchResult
	changed bool
	err     error
}

func (c *fakeChecker) Refresh(ctx context.Context, dr *notification.DispatchResult) (*notification.DispatchResult, bool, error) {
	c.calls++
	if c.err != nil {
		return nil, false, c.err
	}
	return c.updated, c.changed, nil
}

func seedQueued(t *testing.T, st *store.Memory, statuses *registry.Statuses) *notification.Notification {
	t.Helper()
	_, today := fixedClock()
	vr := notification.Valid()
	n := pendingNotification("alert", "pt-1", today, `{}`)
	n.Status = statuses.Sent()
	n.StatusMeta = &notification.StatusMeta{
		Validation: &vr,
		Dispatch: &notification.DispatchResult{
			Successful:      true,
			DeliveryDetails: json.RawMessage(`{"provider":"twilio","sid":"SM1","status":"queued"}`),
		},
	}
	if err := st.Save(context.Background(), n); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return n
}

func TestReconcilerRecordsProviderFailure(t *testing.T) {
	t.Parallel()
	statuses := registry.DefaultStatusSet()
	st := store.NewMemory(statuses)
	n := seedQueued(t, st, statuses)

	checker := &fakeChecker{
		updated: &notification.DispatchResult{
			Successful:      false,
			ErrorMessage:    "undelivered",
			DeliveryDetails: json.RawMessage(`{"provider":"twilio","sid":"SM1","status":"undelivered"}`),
		},
		changed: true,
	}
	r := NewReconciler(st, statuses, checker, NewMemoryTracker(), logx.Nop())
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	saved, err := st.Get(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("row missing: %v", err)
	}
	if saved.Status != statuses.Failure() {
		t.Fatalf("Status = %v, want failure", saved.Status)
	}
	if saved.StatusMeta.Dispatch.ErrorMessage != "undelivered" {
		t.Fatalf("dispatch result not replaced: %+v", saved.StatusMeta.Dispatch)
	}
	if saved.StatusMeta.Validation == nil {
		t.Fatal("validation result must survive reconciliation")
	}
}

func TestReconcilerKeepsSentOnConfirmedDelivery(t *testing.T) {
	t.Parallel()
	statuses := registry.DefaultStatusSet()
	st := store.NewMemory(statuses)
	n := seedQueued(t, st, statuses)

	checker := &fakeChecker{
		updated: &notification.DispatchResult{
			Successful:      true,
			DeliveryDetails: json.RawMessage(`{"provider":"twilio","sid":"SM1","status":"delivered"}`),
		},
		changed: true,
	}
	r := NewReconciler(st, statuses, checker, NewMemoryTracker(), logx.Nop())
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	saved, err := st.Get(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("row missing: %v", err)
	}
	if saved.Status != statuses.Sent() {
		t.Fatalf("Status = %v, want sent", saved.Status)
	}
	var details map[string]string
	if err := json.Unmarshal(saved.StatusMeta.Dispatch.DeliveryDetails, &details); err != nil {
		t.Fatalf("decode details: %v", err)
	}
	if details["status"] != "delivered" {
		t.Fatalf("provider state = %q, want delivered", details["status"])
	}
}

func TestReconcilerSkipsUnchangedAndErrors(t *testing.T) {
	t.Parallel()
	statuses := registry.DefaultStatusSet()
	st := store.NewMemory(statuses)
	seedQueued(t, st, statuses)

	tests := []struct {
		name    string
		checker *fakeChecker
	}{
		{name: "unchanged", checker: &fakeChecker{changed: false, updated: &notification.DispatchResult{}}},
		{name: "checker error", checker: &fakeChecker{err: errors.New("provider unreachable")}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			r := NewReconciler(st, statuses, tt.checker, NewMemoryTracker(), logx.Nop())
			if err := r.Run(context.Background()); err != nil {
				t.Fatalf("Run error: %v", err)
			}
			if tt.checker.calls != 1 {
				t.Fatalf("checker calls = %d, want 1", tt.checker.calls)
			}
			// The row is untouched either way: still sent, still queued.
			rows := st.All()
			if len(rows) != 1 || rows[0].Status != statuses.Sent() {
				t.Fatalf("row unexpectedly modified: %+v", rows)
			}
		})
	}
}

func TestReconcilerIgnoresDeliveredRows(t *testing.T) {
	t.Parallel()
	statuses := registry.DefaultStatusSet()
	st := store.NewMemory(statuses)
	_, today := fixedClock()

	vr := notification.Valid()
	n := pendingNotification("alert", "pt-1", today, `{}`)
	n.Status = statuses.Sent()
	n.StatusMeta = &notification.StatusMeta{
		Validation: &vr,
		Dispatch: &notification.DispatchResult{
			Successful:      true,
			DeliveryDetails: json.RawMessage(`{"provider":"console","status":"delivered"}`),
		},
	}
	if err := st.Save(context.Background(), n); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	checker := &fakeChecker{changed: true, updated: &notification.DispatchResult{}}
	r := NewReconciler(st, statuses, checker, NewMemoryTracker(), logx.Nop())
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if checker.calls != 0 {
		t.Fatal("delivered rows must not be rechecked")
	}
}
