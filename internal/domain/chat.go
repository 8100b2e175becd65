// Package domain defines shared domain types for the broadcast bot.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChatType enumerates the Telegram chat kinds the bot broadcasts to.
type ChatType string

const (
	ChatTypeGroup      ChatType = "group"
	ChatTypeSupergroup ChatType = "supergroup"
	ChatTypeChannel    ChatType = "channel"
)

// ParseChatType validates a raw chat type string coming from the transport or
// the backing store.
func ParseChatType(raw string) (ChatType, error) {
	switch ChatType(raw) {
	case ChatTypeGroup, ChatTypeSupergroup, ChatTypeChannel:
		return ChatType(raw), nil
	default:
		return "", fmt.Errorf("unknown chat type %q", raw)
	}
}

// Broadcastable reports whether a raw Telegram chat type is one the bot
// tracks. Private chats are never broadcast targets.
func Broadcastable(raw string) bool {
	_, err := ParseChatType(raw)
	return err == nil
}

// ChatRecord represents one tracked group or channel the bot was last
// observed as a member of.
type ChatRecord struct {
	ChatID  int64     `json:"chat_id"`
	Title   string    `json:"title"`
	Type    ChatType  `json:"type"`
	AddedAt time.Time `json:"added_at,omitempty"`

	// Extra carries fields present in the backing document that this
	// version of the bot does not understand. They are preserved verbatim
	// on every rewrite.
	Extra map[string]json.RawMessage `json:"-"`
}
