package pipeline

import (
	"encoding/json"

	"notifyd/internal/notification"
)

// NextOccurrence generates the next notification in a reminder series.
//
// The tracker is advanced past any index whose date is not strictly
// after today — a missed run may have let several series steps elapse —
// until a future date is found or the series is exhausted. On success it
// returns a new pending notification cloned from the original (type,
// recipient) carrying the advanced tracker as metadata; otherwise nil.
//
// The tracker argument must be a freshly decoded copy: it is mutated
// here, and the original notification's metadata document is left
// untouched (the series is append-only).
func NextOccurrence(n *notification.Notification, tracker notification.Tracker, today notification.Date, pending notification.Status) (*notification.Notification, error) {
	p := tracker.Tracker()
	for !p.Final() {
		p.Advance()
		if !p.CurrentDate().After(today) {
			continue
		}
		meta, err := json.Marshal(tracker)
		if err != nil {
			return nil, err
		}
		return &notification.Notification{
			Type:          n.Type,
			RecipientRef:  n.RecipientRef,
			Status:        pending,
			DateScheduled: p.CurrentDate(),
			Metadata:      meta,
		}, nil
	}
	return nil, nil
}
