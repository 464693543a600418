package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"notifyd/internal/notification"
	"notifyd/internal/registry"
)

// mapFinder resolves recipient refs from a fixed map.
type mapFinder map[string]any

func (f mapFinder) FindByRef(ctx context.Context, ref string) (any, error) {
	v, ok := f[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecipientNotFound, ref)
	}
	return v, nil
}

// countingDispatcher records how often it was invoked and replays canned
// results.
type countingDispatcher struct {
	calls   int
	results []notification.DispatchResult
	err     error
}

func (d *countingDispatcher) Dispatch(ctx context.Context, n *notification.Notification) ([]notification.DispatchResult, error) {
	d.calls++
	return d.results, d.err
}

func alwaysValid() registry.Validator {
	return registry.ValidatorFunc(func(ctx context.Context, n *notification.Notification) notification.ValidationResult {
		return notification.Valid()
	})
}

func okResult() notification.DispatchResult {
	return notification.DispatchResult{
		Successful:      true,
		MessageContent:  "hello",
		Recipient:       "someone@example.com",
		DeliveryDetails: json.RawMessage(`{"provider":"test","status":"delivered"}`),
	}
}

// seriesMeta is a tracker-carrying metadata type for series tests.
type seriesMeta struct {
	notification.Progression
	Subject string `json:"subject"`
}

func decodeSeriesMeta(raw json.RawMessage) (any, error) {
	var m seriesMeta
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func fixedClock() (func() time.Time, notification.Date) {
	at := time.Date(2026, time.June, 10, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }, notification.DateOf(at)
}

func pendingNotification(typ, ref string, due notification.Date, meta string) *notification.Notification {
	return &notification.Notification{
		Type:          typ,
		RecipientRef:  ref,
		DateScheduled: due,
		Status:        notification.StatusScheduled,
		Metadata:      json.RawMessage(meta),
	}
}

// validated stamps a successful validation result the way the processor
// would.
func validated(n *notification.Notification) *notification.Notification {
	vr := notification.Valid()
	n.StatusMeta = &notification.StatusMeta{Validation: &vr}
	return n
}
