package registry

import (
	"fmt"
	"sort"
	"sync"

	"notifyd/internal/notification"
)

// Roles binds the status names the engine depends on structurally. The
// pending status drives selection, the sent status drives dedup and
// reconciliation, and the failure/invalid statuses terminate items.
type Roles struct {
	Pending string
	Sent    string
	Failure string
	Invalid string
}

// DefaultRoles uses the built-in status names.
func DefaultRoles() Roles {
	return Roles{
		Pending: notification.StatusScheduled.Name,
		Sent:    notification.StatusSent.Name,
		Failure: notification.StatusFailed.Name,
		Invalid: notification.StatusInvalid.Name,
	}
}

// Statuses is the registrable status set plus its role bindings. Role
// names are validated eagerly so a misconfigured application fails at
// startup, not mid-run.
type Statuses struct {
	mu     sync.RWMutex
	byName map[string]notification.Status
	roles  Roles
}

func NewStatuses(statuses []notification.Status, roles Roles) (*Statuses, error) {
	s := &Statuses{byName: make(map[string]notification.Status, len(statuses)), roles: roles}
	for _, st := range statuses {
		s.byName[st.Name] = st
	}
	for role, name := range map[string]string{
		"pending": roles.Pending,
		"sent":    roles.Sent,
		"failure": roles.Failure,
		"invalid": roles.Invalid,
	} {
		if _, ok := s.byName[name]; !ok {
			return nil, fmt.Errorf("registry: %s role bound to unregistered status %q", role, name)
		}
	}
	return s, nil
}

// DefaultStatusSet returns the built-in statuses with default role
// bindings.
func DefaultStatusSet() *Statuses {
	s, err := NewStatuses(notification.DefaultStatuses(), DefaultRoles())
	if err != nil {
		// Defaults are internally consistent.
		panic(err)
	}
	return s
}

// Register adds or replaces a status with the same name.
func (s *Statuses) Register(st notification.Status) {
	s.mu.Lock()
	s.byName[st.Name] = st
	s.mu.Unlock()
}

// Deregister removes the named status. Role-bound statuses cannot be
// removed.
func (s *Statuses) Deregister(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.roles
	if name == r.Pending || name == r.Sent || name == r.Failure || name == r.Invalid {
		return fmt.Errorf("registry: status %q is role-bound and cannot be removed", name)
	}
	delete(s.byName, name)
	return nil
}

// ByName looks up a status by its stable name.
func (s *Statuses) ByName(name string) (notification.Status, bool) {
	s.mu.RLock()
	st, ok := s.byName[name]
	s.mu.RUnlock()
	return st, ok
}

// List returns all statuses sorted by ordinal.
func (s *Statuses) List() []notification.Status {
	s.mu.RLock()
	out := make([]notification.Status, 0, len(s.byName))
	for _, st := range s.byName {
		out = append(out, st)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out
}

func (s *Statuses) mustRole(name string) notification.Status {
	s.mu.RLock()
	st := s.byName[name]
	s.mu.RUnlock()
	return st
}

// Pending returns the status that makes a notification selectable.
func (s *Statuses) Pending() notification.Status { return s.mustRole(s.roles.Pending) }

// Sent returns the terminal success status.
func (s *Statuses) Sent() notification.Status { return s.mustRole(s.roles.Sent) }

// Failure returns the terminal delivery-failure status.
func (s *Statuses) Failure() notification.Status { return s.mustRole(s.roles.Failure) }

// Invalid returns the status for validation failures and duplicate
// suppression.
func (s *Statuses) Invalid() notification.Status { return s.mustRole(s.roles.Invalid) }
