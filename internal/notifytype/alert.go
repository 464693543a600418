package notifytype

import (
	"context"
	"encoding/json"
	"fmt"

	"notifyd/internal/contacts"
	"notifyd/internal/notification"
	"notifyd/internal/registry"
)

// TypeAlert is an immediate-mode, one-shot email. Creating an alert
// notification triggers the immediate run right away.
const TypeAlert = "alert"

// AlertMetadata is the metadata document of the alert type.
type AlertMetadata struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// RegisterAlert binds the alert type into the registry.
func RegisterAlert(types *registry.Types, deps Deps) error {
	d := &alertDispatcher{deps: deps}
	return types.Register(TypeAlert, registry.Handler{
		Mode:           notification.ModeImmediate,
		DecodeMetadata: decodeAlertMetadata,
		Validator:      registry.ValidatorFunc(validateContactEmail),
		Dispatcher:     d,
		Viewer:         contactViewer{},
	})
}

func decodeAlertMetadata(raw json.RawMessage) (any, error) {
	var md AlertMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, err
	}
	if md.Subject == "" {
		return nil, fmt.Errorf("alert metadata has no subject")
	}
	return &md, nil
}

type alertDispatcher struct {
	deps Deps
}

func (d *alertDispatcher) Dispatch(ctx context.Context, n *notification.Notification) ([]notification.DispatchResult, error) {
	meta, err := decodeAlertMetadata(n.Metadata)
	if err != nil {
		return nil, err
	}
	md := meta.(*AlertMetadata)
	c := n.Recipient.(*contacts.Contact)

	body, err := d.deps.Sender.RenderTemplate(md.Body, c)
	if err != nil {
		return nil, fmt.Errorf("render alert body: %w", err)
	}
	return []notification.DispatchResult{
		d.deps.Sender.SendEmail(ctx, c.Email, md.Subject, body),
	}, nil
}
