// Package store provides notification persistence behind a small
// interface with selectable drivers: sqlite for single-node deployments,
// postgres for shared databases, and an in-process memory driver for
// development and tests.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"notifyd/internal/notification"
	"notifyd/internal/registry"
	"notifyd/pkg/logx"
)

var (
	ErrDisabled = errors.New("storage disabled")
	// ErrNotFound is returned by lookups that miss.
	ErrNotFound = errors.New("notification not found")
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (modernc, no cgo)
//   - "postgres": PostgreSQL via DSN
//   - "memory": in-process, volatile
type Config struct {
	Driver      string
	Path        string        // sqlite only
	DSN         string        // postgres only
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API consumed by the pipeline and the service
// layer. Implementations must be safe for concurrent use.
type Store interface {
	// Save upserts a notification, assigning an ID on first save.
	Save(ctx context.Context, n *notification.Notification) error
	// SaveAll upserts a batch.
	SaveAll(ctx context.Context, ns []*notification.Notification) error
	// Get loads one notification by ID.
	Get(ctx context.Context, id string) (*notification.Notification, error)
	// FindPending returns notifications in the given status scheduled on
	// or before the given date, ordered by scheduled date then ID. The
	// order is stable across repeated reads within a run.
	FindPending(ctx context.Context, status notification.Status, onOrBefore notification.Date) ([]*notification.Notification, error)
	// FindAwaitingProvider returns notifications in the given status
	// whose recorded delivery details are still in the provider's queued
	// state. Consumed by the reconciliation job.
	FindAwaitingProvider(ctx context.Context, status notification.Status) ([]*notification.Notification, error)
	Close() error
}

// Open initializes the configured store. The status set reconstitutes
// full status values from their persisted names.
func Open(cfg Config, statuses *registry.Statuses, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return nil, ErrDisabled
	case "memory":
		return NewMemory(statuses), nil
	case "sqlite", "sqlite3":
		return openSQLite(cfg, statuses, log)
	case "postgres", "postgresql":
		return openPostgres(cfg, statuses, log)
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}

// providerQueuedState is the delivery-details status value meaning the
// provider has accepted but not finally disposed of the message.
const providerQueuedState = "queued"

func reconstituteStatus(statuses *registry.Statuses, name string) notification.Status {
	if statuses != nil {
		if st, ok := statuses.ByName(name); ok {
			return st
		}
	}
	// Unknown names survive round-trips so historical data stays intact.
	return notification.Status{Name: name}
}

// providerState extracts the "status" field from an opaque provider
// delivery payload. Missing or unreadable payloads report an empty state.
func providerState(details json.RawMessage) string {
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(details, &payload); err != nil {
		return ""
	}
	return strings.ToLower(payload.Status)
}
