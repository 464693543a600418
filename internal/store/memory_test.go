package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"notifyd/internal/notification"
	"notifyd/internal/registry"
	"notifyd/pkg/logx"
)

func testDate(day int) notification.Date {
	return notification.NewDate(2026, time.June, day)
}

func pendingRow(typ, ref string, due notification.Date) *notification.Notification {
	return &notification.Notification{
		Type:          typ,
		RecipientRef:  ref,
		DateScheduled: due,
		Status:        notification.StatusScheduled,
		Metadata:      json.RawMessage(`{}`),
	}
}

func TestMemorySaveAssignsID(t *testing.T) {
	t.Parallel()
	m := NewMemory(registry.DefaultStatusSet())
	n := pendingRow("alert", "pt-1", testDate(10))
	if err := m.Save(context.Background(), n); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if n.ID == "" {
		t.Fatal("ID not assigned on first save")
	}

	// Re-saving keeps the identity and updates in place.
	id := n.ID
	n.Status = notification.StatusSent
	if err := m.Save(context.Background(), n); err != nil {
		t.Fatalf("second Save error: %v", err)
	}
	if n.ID != id {
		t.Fatalf("ID changed on update: %s -> %s", id, n.ID)
	}
	if len(m.All()) != 1 {
		t.Fatalf("rows = %d, want 1", len(m.All()))
	}
}

func TestMemoryGetNotFound(t *testing.T) {
	t.Parallel()
	m := NewMemory(registry.DefaultStatusSet())
	if _, err := m.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryFindPending(t *testing.T) {
	t.Parallel()
	m := NewMemory(registry.DefaultStatusSet())
	ctx := context.Background()

	early := pendingRow("alert", "pt-1", testDate(8))
	onTime := pendingRow("alert", "pt-2", testDate(10))
	future := pendingRow("alert", "pt-3", testDate(11))
	sent := pendingRow("alert", "pt-4", testDate(9))
	sent.Status = notification.StatusSent
	for _, n := range []*notification.Notification{future, sent, onTime, early} {
		if err := m.Save(ctx, n); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	got, err := m.FindPending(ctx, notification.StatusScheduled, testDate(10))
	if err != nil {
		t.Fatalf("FindPending error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("selected %d, want 2", len(got))
	}
	// Ordered by due date.
	if got[0].ID != early.ID || got[1].ID != onTime.ID {
		t.Fatalf("selection order wrong: %s, %s", got[0].RecipientRef, got[1].RecipientRef)
	}
}

func TestMemoryFindAwaitingProvider(t *testing.T) {
	t.Parallel()
	m := NewMemory(registry.DefaultStatusSet())
	ctx := context.Background()

	queued := pendingRow("alert", "pt-1", testDate(9))
	queued.Status = notification.StatusSent
	queued.StatusMeta = &notification.StatusMeta{
		Dispatch: &notification.DispatchResult{
			Successful:      true,
			DeliveryDetails: json.RawMessage(`{"provider":"twilio","status":"queued"}`),
		},
	}
	delivered := pendingRow("alert", "pt-2", testDate(9))
	delivered.Status = notification.StatusSent
	delivered.StatusMeta = &notification.StatusMeta{
		Dispatch: &notification.DispatchResult{
			Successful:      true,
			DeliveryDetails: json.RawMessage(`{"provider":"twilio","status":"delivered"}`),
		},
	}
	noDetails := pendingRow("alert", "pt-3", testDate(9))
	noDetails.Status = notification.StatusSent
	for _, n := range []*notification.Notification{queued, delivered, noDetails} {
		if err := m.Save(ctx, n); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	got, err := m.FindAwaitingProvider(ctx, notification.StatusSent)
	if err != nil {
		t.Fatalf("FindAwaitingProvider error: %v", err)
	}
	if len(got) != 1 || got[0].ID != queued.ID {
		t.Fatalf("selected %d rows, want only the queued one", len(got))
	}
}

func TestMemorySaveDropsTransientRecipient(t *testing.T) {
	t.Parallel()
	m := NewMemory(registry.DefaultStatusSet())
	n := pendingRow("alert", "pt-1", testDate(10))
	n.Recipient = "resolved entity"
	if err := m.Save(context.Background(), n); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	saved, err := m.Get(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if saved.Recipient != nil {
		t.Fatal("resolved recipient must not be persisted")
	}
}

func TestOpenDriverSelection(t *testing.T) {
	t.Parallel()
	statuses := registry.DefaultStatusSet()

	if _, err := Open(Config{Driver: "oracle"}, statuses, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := Open(Config{Driver: "none"}, statuses, logx.Nop()); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
	st, err := Open(Config{Driver: "memory"}, statuses, logx.Nop())
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if _, ok := st.(*Memory); !ok {
		t.Fatalf("driver = %T, want *Memory", st)
	}
}

func TestProviderState(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		details string
		want    string
	}{
		{name: "queued", details: `{"provider":"twilio","status":"queued"}`, want: "queued"},
		{name: "case folded", details: `{"status":"QUEUED"}`, want: "queued"},
		{name: "missing", details: `{"provider":"console"}`, want: ""},
		{name: "garbage", details: `not json`, want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := providerState(json.RawMessage(tt.details)); got != tt.want {
				t.Fatalf("providerState = %q, want %q", got, tt.want)
			}
		})
	}
}
