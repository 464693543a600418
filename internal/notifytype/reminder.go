// Package notifytype holds the notification types the daemon registers
// at startup. Applications embedding the engine register their own
// types the same way.
package notifytype

import (
	"context"
	"encoding/json"
	"fmt"

	"notifyd/internal/contacts"
	"notifyd/internal/delivery"
	"notifyd/internal/notification"
	"notifyd/internal/registry"
	"notifyd/pkg/logx"
)

// TypeReminder is a scheduled email reminder that optionally fans out
// to Telegram. Its metadata embeds a progression tracker, so one
// created notification yields the whole reminder series over time.
const TypeReminder = "reminder"

// ReminderMetadata is the metadata document of the reminder type.
type ReminderMetadata struct {
	notification.Progression

	Subject string `json:"subject"`
	// Body is a text/template rendered with the resolved contact.
	Body string `json:"body"`
}

// Deps carries the channel backends the built-in types dispatch
// through. Telegram may be nil when the channel is disabled.
type Deps struct {
	Sender   *delivery.Sender
	Telegram *delivery.Telegram
	Log      logx.Logger
}

// RegisterReminder binds the reminder type into the registry.
func RegisterReminder(types *registry.Types, deps Deps) error {
	d := &reminderDispatcher{deps: deps}
	return types.Register(TypeReminder, registry.Handler{
		Mode:           notification.ModeScheduled,
		DecodeMetadata: decodeReminderMetadata,
		Validator:      registry.ValidatorFunc(validateContactEmail),
		Dispatcher:     d,
		Viewer:         contactViewer{},
	})
}

func decodeReminderMetadata(raw json.RawMessage) (any, error) {
	var md ReminderMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, err
	}
	if len(md.ReminderDays) == 0 {
		return nil, fmt.Errorf("reminder metadata has no reminder days")
	}
	return &md, nil
}

// validateContactEmail is shared by the built-in email-first types: the
// recipient must still resolve to a contact with an email address.
func validateContactEmail(ctx context.Context, n *notification.Notification) notification.ValidationResult {
	c, ok := n.Recipient.(*contacts.Contact)
	if !ok || c == nil {
		return notification.Invalid("Recipient could not be resolved to a contact.")
	}
	if c.Email == "" {
		return notification.Invalid("Contact has no email address.")
	}
	return notification.Valid()
}

type reminderDispatcher struct {
	deps Deps
}

func (d *reminderDispatcher) Dispatch(ctx context.Context, n *notification.Notification) ([]notification.DispatchResult, error) {
	meta, err := decodeReminderMetadata(n.Metadata)
	if err != nil {
		return nil, err
	}
	md := meta.(*ReminderMetadata)
	c := n.Recipient.(*contacts.Contact)

	body, err := d.deps.Sender.RenderTemplate(md.Body, c)
	if err != nil {
		return nil, fmt.Errorf("render reminder body: %w", err)
	}

	results := []notification.DispatchResult{
		d.deps.Sender.SendEmail(ctx, c.Email, md.Subject, body),
	}
	// Fan out to Telegram when both sides are configured for it; the
	// extra result becomes a sibling notification.
	if d.deps.Telegram != nil && c.TelegramChatID != 0 {
		results = append(results, d.deps.Telegram.Send(ctx, c.TelegramChatID, md.Subject+"\n\n"+body))
	}
	return results, nil
}

type contactViewer struct{}

func (contactViewer) RecipientView(n *notification.Notification) string {
	if c, ok := n.Recipient.(*contacts.Contact); ok && c != nil {
		return fmt.Sprintf("%s <%s>", c.Name, c.Email)
	}
	return n.RecipientRef
}

func (contactViewer) MetadataView(n *notification.Notification) string {
	var md struct {
		Subject string `json:"subject"`
	}
	if err := json.Unmarshal(n.Metadata, &md); err != nil {
		return ""
	}
	return md.Subject
}
