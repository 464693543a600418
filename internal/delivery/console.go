package delivery

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"notifyd/pkg/logx"
)

// Console is a development transport that logs messages instead of
// sending them. Delivery details mimic a real provider payload so the
// reconciliation path can be exercised end to end.
type Console struct {
	log logx.Logger
}

func NewConsole(log logx.Logger) *Console {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Console{log: log.With(logx.String("transport", "console"))}
}

func (c *Console) SendEmail(ctx context.Context, from, to, subject, body string) (json.RawMessage, error) {
	c.log.Info("email", logx.String("from", from), logx.String("to", to), logx.String("subject", subject))
	return consoleDetails("email"), nil
}

func (c *Console) SendSMS(ctx context.Context, from, to, body string) (json.RawMessage, error) {
	c.log.Info("sms", logx.String("from", from), logx.String("to", to))
	return consoleDetails("sms"), nil
}

func consoleDetails(channel string) json.RawMessage {
	b, _ := json.Marshal(map[string]string{
		"provider": "console",
		"channel":  channel,
		"sid":      uuid.NewString(),
		"status":   "delivered",
		"sentAt":   time.Now().Format(time.RFC3339),
	})
	return b
}
