// Package notification holds the domain model of the delivery engine:
// the Notification unit of work, its open status set, the validation and
// dispatch result values, and the reminder-series progression tracker.
package notification

import (
	"encoding/json"
	"strings"
	"time"
)

// Notification is the unit of work moving through the pipeline. It is
// created in the pending status by a producer, selected once per run when
// due, and written back exactly once with a terminal or sent status.
type Notification struct {
	// ID is assigned by the store on first save.
	ID string

	// Type keys into the type registry. Historical rows may reference
	// types that are no longer registered; the pipeline treats that as a
	// data condition, not a programming error.
	Type string

	// RecipientRef is an opaque identifier resolved to a recipient by an
	// external finder. The engine never loads recipient data itself.
	RecipientRef string

	// DateScheduled is the calendar date the notification is due.
	DateScheduled Date

	Status Status

	// Metadata is an opaque per-type document. The engine only touches it
	// through the registered type's decode function.
	Metadata json.RawMessage

	// DateTimeProcessed is stamped once, when processing concluded.
	DateTimeProcessed time.Time

	// StatusMeta carries the validation and dispatch results of the last
	// processing pass.
	StatusMeta *StatusMeta

	// Recipient is the resolved recipient entity. Transient: populated
	// after selection, never persisted.
	Recipient any `json:"-"`
}

// DispatchKey identifies "the same logical send" within one run. Two
// notifications that agree on type, recipient, scheduled date and
// metadata collapse to the same key and only the first one dispatches.
func (n *Notification) DispatchKey() string {
	return strings.Join([]string{
		n.Type,
		n.RecipientRef,
		n.DateScheduled.String(),
		string(n.Metadata),
	}, "|")
}

// SetMetadata serializes v as the notification's metadata document.
func (n *Notification) SetMetadata(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	n.Metadata = b
	return nil
}

// Validation returns the carried validation result, or nil when the
// notification has not passed through the processor yet.
func (n *Notification) Validation() *ValidationResult {
	if n.StatusMeta == nil {
		return nil
	}
	return n.StatusMeta.Validation
}
