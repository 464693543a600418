package notification

// Status is one entry in the open notification-status set. Statuses are
// compared by Name; everything else is display metadata. Applications may
// register additional statuses, but the engine structurally depends on
// three roles: a pending status (drives selection), a terminal success
// status (drives dedup and reconciliation), and terminal failure/invalid
// statuses.
type Status struct {
	// Name is the unique, stable identifier used in storage and
	// business rules.
	Name string `json:"name"`
	// Label is the human-friendly form.
	Label string `json:"label"`
	// Ordinal orders statuses on list displays.
	Ordinal int `json:"ordinal"`
	// Descending indicates the preferred sort direction when filtering
	// by this status.
	Descending bool `json:"descending"`
}

func (s Status) IsZero() bool { return s.Name == "" }

// Default statuses. INVALID covers validation failures and duplicate
// suppression; FAILED is the canonical terminal delivery-failure status.
var (
	StatusScheduled = Status{Name: "SCHEDULED", Label: "Scheduled", Ordinal: 0, Descending: false}
	StatusInvalid   = Status{Name: "INVALID", Label: "Invalid", Ordinal: 1, Descending: true}
	StatusFailed    = Status{Name: "FAILED", Label: "Failed", Ordinal: 2, Descending: true}
	StatusSent      = Status{Name: "SENT", Label: "Sent", Ordinal: 3, Descending: true}
)

// DefaultStatuses returns the built-in status set.
func DefaultStatuses() []Status {
	return []Status{StatusScheduled, StatusInvalid, StatusFailed, StatusSent}
}

// Mode determines whether a notification type is eligible for on-demand
// runs or only for the cron-driven run.
type Mode int

const (
	// ModeScheduled types are processed only by the scheduled run.
	ModeScheduled Mode = iota
	// ModeImmediate types are processed right after creation.
	ModeImmediate
)

func (m Mode) String() string {
	switch m {
	case ModeImmediate:
		return "IMMEDIATE"
	default:
		return "SCHEDULED"
	}
}
