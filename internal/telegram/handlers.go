package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"tg_broadcast_bot/internal/logging"
)

const (
	callbackMenuPrefix  = "cmd_"
	callbackSkipPrefix  = "skip_"
	callbackConfirmSend = "confirm_send"
	callbackCancel      = "cancel"
)

const helpText = "<b>Commands</b>\n" +
	"/newpost - compose and broadcast a post\n" +
	"/listchats - show tracked chats\n" +
	"/cancel - discard the post in progress\n" +
	"/help - this message\n\n" +
	"Add me to a group or channel and I will include it in broadcasts."

const deniedText = "Sorry, this bot only takes commands from its operator."

// Outbound API calls go through these hooks so handler tests can intercept
// them without a live bot.
var (
	sendMessage = func(ctx context.Context, b *bot.Bot, params *bot.SendMessageParams) (*models.Message, error) {
		return b.SendMessage(ctx, params)
	}

	sendPhoto = func(ctx context.Context, b *bot.Bot, params *bot.SendPhotoParams) (*models.Message, error) {
		return b.SendPhoto(ctx, params)
	}

	answerCallback = func(ctx context.Context, b *bot.Bot, params *bot.AnswerCallbackQueryParams) (bool, error) {
		return b.AnswerCallbackQuery(ctx, params)
	}
)

func (c *Client) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := commandMessage(update)
	if msg == nil {
		return
	}
	if !c.allowed(userID(msg.From)) {
		c.reply(ctx, b, msg.Chat.ID, deniedText, nil)
		return
	}

	c.reply(ctx, b, msg.Chat.ID, "Hello! I broadcast posts to every chat I have been added to.\nWhat would you like to do?", menuKeyboard())
}

func (c *Client) handleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := commandMessage(update)
	if msg == nil {
		return
	}
	if !c.allowed(userID(msg.From)) {
		c.reply(ctx, b, msg.Chat.ID, deniedText, nil)
		return
	}

	c.reply(ctx, b, msg.Chat.ID, helpText, nil)
}

func (c *Client) handleListChats(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := commandMessage(update)
	if msg == nil || !c.allowed(userID(msg.From)) {
		return
	}

	c.sendChatList(ctx, b, msg.Chat.ID)
}

func (c *Client) handleNewPost(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := commandMessage(update)
	if msg == nil || !c.allowed(userID(msg.From)) {
		return
	}

	c.startComposition(ctx, b, userID(msg.From), msg.Chat.ID)
}

func (c *Client) handleCancelCommand(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := commandMessage(update)
	if msg == nil || !c.allowed(userID(msg.From)) {
		return
	}

	c.cancelComposition(ctx, b, userID(msg.From), msg.Chat.ID)
}

// handleMenuCallback routes the inline menu buttons to the same flows as the
// slash commands.
func (c *Client) handleMenuCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	cb := update.CallbackQuery
	if cb == nil {
		return
	}
	c.ack(ctx, b, cb.ID)

	uid := cb.From.ID
	target := messageChatID(cb.Message)
	if target == 0 || !c.allowed(uid) {
		return
	}

	switch strings.TrimPrefix(cb.Data, callbackMenuPrefix) {
	case "newpost":
		c.startComposition(ctx, b, uid, target)
	case "listchats":
		c.sendChatList(ctx, b, target)
	case "help":
		c.reply(ctx, b, target, helpText, nil)
	default:
		c.logger.WithFields(logging.Fields{
			"event": "callback_unknown",
			"data":  cb.Data,
		}).Warn("unknown menu callback")
	}
}

// defaultHandler catches everything without a dedicated route: membership
// updates, wizard input in the operator's private chat, and service messages
// announcing the bot joining or leaving a group.
func (c *Client) defaultHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil {
		return
	}

	if update.MyChatMember != nil {
		c.handleMembership(ctx, b, update.MyChatMember)
		return
	}

	msg := update.Message
	if msg != nil {
		if c.handleServiceMessage(ctx, b, msg) {
			return
		}

		if msg.Chat.Type == "private" && c.sessions != nil {
			if session, ok := c.sessions.Active(userID(msg.From)); ok {
				c.handleWizardInput(ctx, b, msg, session)
				return
			}
		}
	}

	meta := extractUpdateMeta(update)

	fields := logging.Fields{
		"event":       "telegram_update",
		"update_type": meta.updateType,
	}
	if meta.text != "" {
		fields["text"] = meta.text
	}
	if meta.userID != 0 {
		fields["user_id"] = meta.userID
	}
	if meta.chatID != 0 {
		fields["chat_id"] = meta.chatID
	}

	c.logger.WithFields(fields).Debug("telegram update received")
}

func (c *Client) sendChatList(ctx context.Context, b *bot.Bot, target int64) {
	if c.registry == nil {
		c.reply(ctx, b, target, "The chat registry is unavailable.", nil)
		return
	}

	text := renderChatList(c.registry.List())
	if stats := c.registry.Stats(); stats.Total > 0 {
		text += fmt.Sprintf("\n\n%d groups, %d channels", stats.Groups, stats.Channels)
	}

	c.reply(ctx, b, target, text, nil)
}

// commandMessage unpacks an update carrying an operator command. Commands are
// only honored in private chats.
func commandMessage(update *models.Update) *models.Message {
	if update == nil || update.Message == nil {
		return nil
	}
	if update.Message.Chat.Type != "private" {
		return nil
	}

	return update.Message
}

func (c *Client) allowed(uid int64) bool {
	return c.gate != nil && c.gate.Allow(uid)
}

func (c *Client) reply(ctx context.Context, b *bot.Bot, target int64, text string, keyboard models.ReplyMarkup) {
	params := &bot.SendMessageParams{
		ChatID:    target,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	if _, err := sendMessage(ctx, b, params); err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "reply_failed",
			"chat_id": target,
		}).WithError(err).Warn("could not deliver reply")
	}
}

func (c *Client) ack(ctx context.Context, b *bot.Bot, callbackID string) {
	if _, err := answerCallback(ctx, b, &bot.AnswerCallbackQueryParams{CallbackQueryID: callbackID}); err != nil {
		c.logger.WithField("event", "callback_ack_failed").WithError(err).Warn("could not answer callback query")
	}
}

type updateMeta struct {
	userID     int64
	chatID     int64
	text       string
	updateType string
}

func extractUpdateMeta(update *models.Update) updateMeta {
	switch {
	case update.Message != nil:
		return updateMeta{
			userID:     userID(update.Message.From),
			chatID:     chatID(&update.Message.Chat),
			text:       strings.TrimSpace(update.Message.Text),
			updateType: "message",
		}
	case update.CallbackQuery != nil:
		return updateMeta{
			userID:     userID(&update.CallbackQuery.From),
			chatID:     messageChatID(update.CallbackQuery.Message),
			text:       strings.TrimSpace(update.CallbackQuery.Data),
			updateType: "callback_query",
		}
	case update.MyChatMember != nil:
		return updateMeta{
			userID:     userID(&update.MyChatMember.From),
			chatID:     chatID(&update.MyChatMember.Chat),
			updateType: "my_chat_member",
		}
	default:
		return updateMeta{updateType: "unknown"}
	}
}
