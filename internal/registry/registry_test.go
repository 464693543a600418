package registry

import (
	"context"
	"testing"

	"notifyd/internal/notification"
	"notifyd/pkg/logx"
)

func okHandler(mode notification.Mode) Handler {
	return Handler{
		Mode: mode,
		Validator: ValidatorFunc(func(ctx context.Context, n *notification.Notification) notification.ValidationResult {
			return notification.Valid()
		}),
		Dispatcher: DispatcherFunc(func(ctx context.Context, n *notification.Notification) ([]notification.DispatchResult, error) {
			return nil, nil
		}),
	}
}

func TestTypesRegisterRejectsNilCapabilities(t *testing.T) {
	t.Parallel()
	types := NewTypes(logx.Nop())

	h := okHandler(notification.ModeScheduled)
	h.Validator = nil
	if err := types.Register("broken", h); err == nil {
		t.Fatal("expected error for nil validator")
	}

	h = okHandler(notification.ModeScheduled)
	h.Dispatcher = nil
	if err := types.Register("broken", h); err == nil {
		t.Fatal("expected error for nil dispatcher")
	}

	if _, ok := types.Handler("broken"); ok {
		t.Fatal("failed registration must not be visible")
	}
}

func TestTypesRegisterOverwrites(t *testing.T) {
	t.Parallel()
	types := NewTypes(logx.Nop())
	if err := types.Register("reminder", okHandler(notification.ModeScheduled)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := types.Register("reminder", okHandler(notification.ModeImmediate)); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	h, ok := types.Handler("reminder")
	if !ok {
		t.Fatal("handler missing after re-register")
	}
	if h.Mode != notification.ModeImmediate {
		t.Fatalf("Mode = %v, want immediate after overwrite", h.Mode)
	}
}

func TestTypesNamesSorted(t *testing.T) {
	t.Parallel()
	types := NewTypes(logx.Nop())
	for _, name := range []string{"zeta", "alert", "reminder"} {
		if err := types.Register(name, okHandler(notification.ModeScheduled)); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	got := types.Names()
	want := []string{"alert", "reminder", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}
}

func TestNewStatusesRejectsUnboundRole(t *testing.T) {
	t.Parallel()
	roles := DefaultRoles()
	roles.Sent = "DELIVERED"
	if _, err := NewStatuses(notification.DefaultStatuses(), roles); err == nil {
		t.Fatal("expected error for role bound to unregistered status")
	}
}

func TestDefaultStatusSetRoles(t *testing.T) {
	t.Parallel()
	s := DefaultStatusSet()
	if got := s.Pending(); got != notification.StatusScheduled {
		t.Fatalf("Pending() = %v", got)
	}
	if got := s.Sent(); got != notification.StatusSent {
		t.Fatalf("Sent() = %v", got)
	}
	if got := s.Failure(); got != notification.StatusFailed {
		t.Fatalf("Failure() = %v", got)
	}
	if got := s.Invalid(); got != notification.StatusInvalid {
		t.Fatalf("Invalid() = %v", got)
	}
}

func TestStatusesDeregister(t *testing.T) {
	t.Parallel()
	s := DefaultStatusSet()
	s.Register(notification.Status{Name: "SNOOZED", Label: "Snoozed", Ordinal: 10})
	if err := s.Deregister("SNOOZED"); err != nil {
		t.Fatalf("deregister custom status: %v", err)
	}
	if _, ok := s.ByName("SNOOZED"); ok {
		t.Fatal("SNOOZED still present after deregister")
	}
	if err := s.Deregister(notification.StatusSent.Name); err == nil {
		t.Fatal("role-bound status must not be removable")
	}
}

func TestStatusesListOrdinalOrder(t *testing.T) {
	t.Parallel()
	s := DefaultStatusSet()
	list := s.List()
	for i := 1; i < len(list); i++ {
		if list[i-1].Ordinal > list[i].Ordinal {
			t.Fatalf("List() not ordinal-sorted: %v", list)
		}
	}
}
