// Package tracker keeps the chat registry in sync with bot membership events.
package tracker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"tg_broadcast_bot/internal/domain"
	"tg_broadcast_bot/internal/logging"
)

type chatRegistry interface {
	Upsert(chatID int64, title string, chatType domain.ChatType) error
	Remove(chatID int64) error
}

// Tracker translates "bot was added/promoted/removed" observations into
// registry mutations and logs them.
type Tracker struct {
	registry chatRegistry
	logger   *logrus.Entry
}

// NewTracker constructs a Tracker over the provided registry.
func NewTracker(registry chatRegistry, logger *logrus.Entry) *Tracker {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Tracker{
		registry: registry,
		logger:   logger,
	}
}

// HandleAdded registers the chat the bot was added to or promoted in. Chats
// of untracked kinds (private conversations) are ignored and reported as not
// tracked, without error.
func (t *Tracker) HandleAdded(chatID int64, title, rawType string) (bool, error) {
	if t == nil || t.registry == nil {
		return false, errors.New("tracker is not initialized")
	}
	if chatID == 0 {
		return false, errors.New("chat id is required")
	}

	chatType, err := domain.ParseChatType(rawType)
	if err != nil {
		t.logger.WithFields(logging.Fields{
			"event":     "chat_ignored",
			"chat_id":   chatID,
			"chat_type": rawType,
		}).Debug("ignoring chat of untracked kind")
		return false, nil
	}

	cleanTitle := strings.TrimSpace(title)

	if err := t.registry.Upsert(chatID, cleanTitle, chatType); err != nil {
		return false, fmt.Errorf("register chat %d: %w", chatID, err)
	}

	t.logger.WithFields(logging.Fields{
		"event":     "chat_registered",
		"chat_id":   chatID,
		"title":     cleanTitle,
		"chat_type": string(chatType),
	}).Info("registered chat")

	return true, nil
}

// HandleRemoved drops the chat the bot was removed from. Unknown chats are a
// no-op at the registry level.
func (t *Tracker) HandleRemoved(chatID int64) error {
	if t == nil || t.registry == nil {
		return errors.New("tracker is not initialized")
	}
	if chatID == 0 {
		return errors.New("chat id is required")
	}

	if err := t.registry.Remove(chatID); err != nil {
		return fmt.Errorf("unregister chat %d: %w", chatID, err)
	}

	t.logger.WithFields(logging.Fields{
		"event":   "chat_removed",
		"chat_id": chatID,
	}).Info("removed chat")

	return nil
}
