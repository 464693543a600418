// Package registry binds notification type names to the capability
// bundles that process them, and notification status names to their
// structural roles. Registration happens at startup; lookups are
// concurrent-read safe during runs.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"notifyd/internal/notification"
	"notifyd/pkg/logx"
)

// Validator decides whether a notification is still eligible to send,
// independent of dispatch mechanics.
type Validator interface {
	Validate(ctx context.Context, n *notification.Notification) notification.ValidationResult
}

// Dispatcher performs the actual send. It returns one DispatchResult per
// channel attempted; results beyond the first become cloned sibling
// notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, n *notification.Notification) ([]notification.DispatchResult, error)
}

// Viewer renders display strings for admin surfaces. Optional.
type Viewer interface {
	RecipientView(n *notification.Notification) string
	MetadataView(n *notification.Notification) string
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(ctx context.Context, n *notification.Notification) notification.ValidationResult

func (f ValidatorFunc) Validate(ctx context.Context, n *notification.Notification) notification.ValidationResult {
	return f(ctx, n)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, n *notification.Notification) ([]notification.DispatchResult, error)

func (f DispatcherFunc) Dispatch(ctx context.Context, n *notification.Notification) ([]notification.DispatchResult, error) {
	return f(ctx, n)
}

// Handler is everything the pipeline needs to process one notification
// type.
type Handler struct {
	Mode notification.Mode

	// DecodeMetadata parses the opaque metadata document into the type's
	// own metadata value. Nil means the type carries no metadata.
	DecodeMetadata func(raw json.RawMessage) (any, error)

	Validator  Validator
	Dispatcher Dispatcher

	// Viewer is optional; it plays no part in processing.
	Viewer Viewer
}

var (
	errNilValidator  = errors.New("registry: validator must not be nil")
	errNilDispatcher = errors.New("registry: dispatcher must not be nil")
)

// Types maps type names to handlers.
type Types struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	log      logx.Logger
}

func NewTypes(log logx.Logger) *Types {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Types{handlers: make(map[string]Handler), log: log}
}

// Register stores the handler for name. Registering an existing name
// overwrites the previous handler and logs a warning.
func (t *Types) Register(name string, h Handler) error {
	if h.Validator == nil {
		return errNilValidator
	}
	if h.Dispatcher == nil {
		return errNilDispatcher
	}

	t.mu.Lock()
	_, exists := t.handlers[name]
	t.handlers[name] = h
	t.mu.Unlock()

	if exists {
		t.log.Warn("notification type already registered, overwriting", logx.String("type", name))
	} else {
		t.log.Debug("registered notification type",
			logx.String("type", name), logx.String("mode", h.Mode.String()))
	}
	return nil
}

// Handler returns the handler for name. Absence is a normal data
// condition: historical rows may reference retired types.
func (t *Types) Handler(name string) (Handler, bool) {
	t.mu.RLock()
	h, ok := t.handlers[name]
	t.mu.RUnlock()
	return h, ok
}

// Names returns the registered type names, sorted.
func (t *Types) Names() []string {
	t.mu.RLock()
	names := make([]string, 0, len(t.handlers))
	for name := range t.handlers {
		names = append(names, name)
	}
	t.mu.RUnlock()
	sort.Strings(names)
	return names
}
