// Package pipeline implements the batch engine that moves due
// notifications through Select -> Validate -> Dispatch-and-Persist.
//
// A Job run selects pending notifications, validates each against its
// registered type, dispatches the valid ones through the type's
// dispatcher, suppresses duplicate sends within the run, generates the
// next occurrence of reminder series, and persists every outcome.
package pipeline

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrAlreadyRunning rejects a trigger while a run of the same job
	// name is active.
	ErrAlreadyRunning = errors.New("job is already running")
	// ErrRecipientNotFound is returned by recipient finders for unknown
	// references.
	ErrRecipientNotFound = errors.New("recipient not found")
)

// duplicateReason marks notifications suppressed by run-scoped dedup.
// Distinct from "never valid" reasons for observability.
const duplicateReason = "Duplicate notification - will not be sent."

// RecipientFinder resolves an opaque recipient reference to a recipient
// entity. Resolution runs after selection for every selected
// notification; failures propagate and abort the run.
type RecipientFinder interface {
	FindByRef(ctx context.Context, ref string) (any, error)
}

// RunTracker provides mutual exclusion per job name. Begin either claims
// the name or returns ErrAlreadyRunning.
type RunTracker interface {
	Begin(job string) error
	End(job string)
	IsRunning(job string) bool
}

// MemoryTracker is the in-process RunTracker used by the daemon.
// Deployments with external durable job bookkeeping supply their own.
type MemoryTracker struct {
	mu      sync.Mutex
	running map[string]bool
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{running: make(map[string]bool)}
}

func (t *MemoryTracker) Begin(job string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running[job] {
		return ErrAlreadyRunning
	}
	t.running[job] = true
	return nil
}

func (t *MemoryTracker) End(job string) {
	t.mu.Lock()
	delete(t.running, job)
	t.mu.Unlock()
}

func (t *MemoryTracker) IsRunning(job string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running[job]
}
