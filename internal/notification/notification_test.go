package notification

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDispatchKey(t *testing.T) {
	t.Parallel()
	base := func() *Notification {
		return &Notification{
			Type:          "reminder",
			RecipientRef:  "abc-123",
			DateScheduled: NewDate(2026, time.June, 1),
			Metadata:      json.RawMessage(`{"subject":"hi"}`),
		}
	}

	a, b := base(), base()
	b.ID = "different-id"
	b.Status = StatusScheduled
	if a.DispatchKey() != b.DispatchKey() {
		t.Fatal("identity and status must not contribute to the dispatch key")
	}

	tests := []struct {
		name   string
		mutate func(n *Notification)
	}{
		{name: "type", mutate: func(n *Notification) { n.Type = "alert" }},
		{name: "recipient", mutate: func(n *Notification) { n.RecipientRef = "other" }},
		{name: "date", mutate: func(n *Notification) { n.DateScheduled = n.DateScheduled.AddDays(1) }},
		{name: "metadata", mutate: func(n *Notification) { n.Metadata = json.RawMessage(`{"subject":"yo"}`) }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			n := base()
			tt.mutate(n)
			if n.DispatchKey() == base().DispatchKey() {
				t.Fatalf("changing %s must change the dispatch key", tt.name)
			}
		})
	}
}

func TestSetMetadata(t *testing.T) {
	t.Parallel()
	n := &Notification{}
	if err := n.SetMetadata(map[string]int{"x": 1}); err != nil {
		t.Fatalf("SetMetadata error: %v", err)
	}
	if string(n.Metadata) != `{"x":1}` {
		t.Fatalf("unexpected metadata: %s", n.Metadata)
	}
}

func TestValidationAccessor(t *testing.T) {
	t.Parallel()
	n := &Notification{}
	if n.Validation() != nil {
		t.Fatal("unprocessed notification must report nil validation")
	}
	vr := Valid()
	n.StatusMeta = &StatusMeta{Validation: &vr}
	if got := n.Validation(); got == nil || !got.Successful {
		t.Fatalf("Validation() = %+v, want successful", got)
	}
}
