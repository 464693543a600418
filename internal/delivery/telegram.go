package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"notifyd/internal/notification"
	"notifyd/pkg/logx"
)

// Telegram is an additional channel backend. Dispatchers that fan out to
// Telegram produce a second DispatchResult per send, which the pipeline
// persists as a sibling notification.
type Telegram struct {
	bot *tele.Bot
	log logx.Logger
}

func NewTelegram(token string, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	// Send-only: no poller, updates are never consumed.
	b, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, log: log.With(logx.String("transport", "telegram"))}, nil
}

// Send delivers text to a chat and reports the outcome as a
// DispatchResult.
func (t *Telegram) Send(ctx context.Context, chatID int64, text string) notification.DispatchResult {
	recipient := strconv.FormatInt(chatID, 10)
	msg, err := t.bot.Send(&tele.Chat{ID: chatID}, text)
	if err != nil {
		t.log.Warn("telegram send failed", logx.Int64("chat_id", chatID), logx.Err(err))
		return notification.DispatchResult{
			Successful:     false,
			MessageContent: text,
			Recipient:      recipient,
			ErrorMessage:   err.Error(),
		}
	}
	details, _ := json.Marshal(map[string]any{
		"provider":  "telegram",
		"messageId": msg.ID,
		"chatId":    chatID,
		"status":    "delivered",
		"sentAt":    time.Unix(msg.Unixtime, 0).Format(time.RFC3339),
	})
	return notification.DispatchResult{
		Successful:      true,
		MessageContent:  text,
		Recipient:       recipient,
		DeliveryDetails: details,
	}
}
