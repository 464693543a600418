// Package contacts is the daemon's built-in recipient directory. It
// satisfies the pipeline's recipient finder; applications embedding the
// engine supply their own finder instead.
package contacts

import (
	"context"
	"fmt"
	"sync"

	"notifyd/internal/pipeline"
)

// Contact is a resolvable recipient with the addresses the built-in
// channels understand.
type Contact struct {
	Ref            string `json:"ref"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	TelegramChatID int64  `json:"telegram_chat_id"`
}

// Directory resolves recipient references from a fixed contact list.
type Directory struct {
	mu   sync.RWMutex
	byID map[string]Contact
}

func NewDirectory(list []Contact) *Directory {
	d := &Directory{byID: make(map[string]Contact, len(list))}
	for _, c := range list {
		d.byID[c.Ref] = c
	}
	return d
}

// Replace swaps the whole contact list, e.g. after a config reload.
func (d *Directory) Replace(list []Contact) {
	byID := make(map[string]Contact, len(list))
	for _, c := range list {
		byID[c.Ref] = c
	}
	d.mu.Lock()
	d.byID = byID
	d.mu.Unlock()
}

func (d *Directory) FindByRef(ctx context.Context, ref string) (any, error) {
	d.mu.RLock()
	c, ok := d.byID[ref]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrRecipientNotFound, ref)
	}
	return &c, nil
}
