package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"notifyd/internal/notification"
	"notifyd/internal/registry"
)

// Memory is a volatile in-process store. It backs development setups and
// tests; the pipeline is exercised against it exactly as against the SQL
// drivers.
type Memory struct {
	mu       sync.RWMutex
	rows     map[string]notification.Notification
	statuses *registry.Statuses
}

func NewMemory(statuses *registry.Statuses) *Memory {
	return &Memory{rows: make(map[string]notification.Notification), statuses: statuses}
}

func (m *Memory) Save(ctx context.Context, n *notification.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	m.mu.Lock()
	cp := *n
	cp.Recipient = nil
	m.rows[n.ID] = cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) SaveAll(ctx context.Context, ns []*notification.Notification) error {
	for _, n := range ns {
		if err := m.Save(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (*notification.Notification, error) {
	m.mu.RLock()
	row, ok := m.rows[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	cp := row
	return &cp, nil
}

func (m *Memory) FindPending(ctx context.Context, status notification.Status, onOrBefore notification.Date) ([]*notification.Notification, error) {
	m.mu.RLock()
	var out []*notification.Notification
	for _, row := range m.rows {
		if row.Status.Name != status.Name {
			continue
		}
		if row.DateScheduled.After(onOrBefore) {
			continue
		}
		cp := row
		out = append(out, &cp)
	}
	m.mu.RUnlock()
	sortByDueDate(out)
	return out, nil
}

func (m *Memory) FindAwaitingProvider(ctx context.Context, status notification.Status) ([]*notification.Notification, error) {
	m.mu.RLock()
	var out []*notification.Notification
	for _, row := range m.rows {
		if row.Status.Name != status.Name {
			continue
		}
		if !deliveryStateQueued(row.StatusMeta) {
			continue
		}
		cp := row
		out = append(out, &cp)
	}
	m.mu.RUnlock()
	sortByDueDate(out)
	return out, nil
}

func (m *Memory) Close() error { return nil }

// All returns every stored notification, for inspection in tests and
// dev tooling.
func (m *Memory) All() []*notification.Notification {
	m.mu.RLock()
	out := make([]*notification.Notification, 0, len(m.rows))
	for _, row := range m.rows {
		cp := row
		out = append(out, &cp)
	}
	m.mu.RUnlock()
	sortByDueDate(out)
	return out
}

func sortByDueDate(ns []*notification.Notification) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].DateScheduled != ns[j].DateScheduled {
			return ns[i].DateScheduled.Before(ns[j].DateScheduled)
		}
		return ns[i].ID < ns[j].ID
	})
}

func deliveryStateQueued(sm *notification.StatusMeta) bool {
	if sm == nil || sm.Dispatch == nil || len(sm.Dispatch.DeliveryDetails) == 0 {
		return false
	}
	state := providerState(sm.Dispatch.DeliveryDetails)
	return state == providerQueuedState
}
