package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"tg_broadcast_bot/internal/logging"
)

// handleMembership reacts to my_chat_member updates, the authoritative signal
// for the bot joining or leaving a chat.
func (c *Client) handleMembership(ctx context.Context, b *bot.Bot, upd *models.ChatMemberUpdated) {
	if upd == nil || c.tracker == nil {
		return
	}

	switch upd.NewChatMember.Type {
	case models.ChatMemberTypeLeft, models.ChatMemberTypeBanned:
		if err := c.tracker.HandleRemoved(upd.Chat.ID); err != nil {
			c.logger.WithFields(logging.Fields{
				"event":   "chat_unregister_failed",
				"chat_id": upd.Chat.ID,
			}).WithError(err).Error("could not unregister chat")
		}
	default:
		c.registerChat(ctx, b, &upd.Chat)
	}
}

// handleServiceMessage covers groups that announce membership through service
// messages instead of my_chat_member. Returns true when the message was a
// join or leave event about this bot.
func (c *Client) handleServiceMessage(ctx context.Context, b *bot.Bot, msg *models.Message) bool {
	if c.tracker == nil {
		return false
	}

	for _, user := range msg.NewChatMembers {
		if user.ID == c.botID {
			c.registerChat(ctx, b, &msg.Chat)
			return true
		}
	}

	if msg.LeftChatMember != nil && msg.LeftChatMember.ID == c.botID {
		if err := c.tracker.HandleRemoved(msg.Chat.ID); err != nil {
			c.logger.WithFields(logging.Fields{
				"event":   "chat_unregister_failed",
				"chat_id": msg.Chat.ID,
			}).WithError(err).Error("could not unregister chat")
		}
		return true
	}

	return false
}

func (c *Client) registerChat(ctx context.Context, b *bot.Bot, chat *models.Chat) {
	if chat == nil {
		return
	}

	registered, err := c.tracker.HandleAdded(chat.ID, chat.Title, string(chat.Type))
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "chat_register_failed",
			"chat_id": chat.ID,
		}).WithError(err).Error("could not register chat")
		return
	}

	// Channels reject regular bot messages until the bot can post, so the
	// greeting only goes to groups. Best effort either way.
	if registered && chat.Type != "channel" {
		c.reply(ctx, b, chat.ID, "Hello! This chat will now receive broadcasts.", nil)
	}
}
