package pipeline

import (
	"context"

	"notifyd/internal/notification"
	"notifyd/internal/registry"
	"notifyd/pkg/logx"
)

// Processor runs the validation stage. It is a pure transform: the
// validation result is written into the notification's status metadata
// and nothing is persisted or dispatched here.
type Processor struct {
	types *registry.Types
	log   logx.Logger
}

func NewProcessor(types *registry.Types, log logx.Logger) *Processor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Processor{types: types, log: log}
}

// Process validates one notification and records the result. The
// dispatch component of the status metadata stays nil until the write
// stage.
func (p *Processor) Process(ctx context.Context, n *notification.Notification) *notification.Notification {
	vr := p.validate(ctx, n)
	if !vr.Successful {
		p.log.Debug("notification is no longer valid",
			logx.String("id", n.ID), logx.String("reason", vr.InvalidReason))
	}
	n.StatusMeta = &notification.StatusMeta{Validation: &vr}
	return n
}

func (p *Processor) validate(ctx context.Context, n *notification.Notification) notification.ValidationResult {
	h, ok := p.types.Handler(n.Type)
	if !ok {
		return notification.Invalid("The application does not support this notification type.")
	}
	// A metadata document that does not deserialize under the registered
	// type fails closed for this one item; the rest of the chunk
	// continues.
	if h.DecodeMetadata != nil {
		if _, err := h.DecodeMetadata(n.Metadata); err != nil {
			return notification.Invalid("Notification metadata could not be read: " + err.Error())
		}
	}
	return h.Validator.Validate(ctx, n)
}
