// Package telegram hosts the Telegram client, routing, and handlers.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_broadcast_bot/internal/broadcast"
	"tg_broadcast_bot/internal/config"
	"tg_broadcast_bot/internal/domain"
	"tg_broadcast_bot/internal/logging"
	"tg_broadcast_bot/internal/store"
	"tg_broadcast_bot/internal/wizard"
)

type botRunner interface {
	Start(ctx context.Context)
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
		"callback_query",
		"my_chat_member",
	}

	createBot = func(token string, options ...bot.Option) (botRunner, error) {
		return bot.New(token, options...)
	}
)

// chatRegistry is the read surface handlers need from the chat store.
type chatRegistry interface {
	List() []domain.ChatRecord
	Stats() store.Stats
}

// membershipTracker reacts to the bot being added to or removed from chats.
type membershipTracker interface {
	HandleAdded(chatID int64, title, rawType string) (bool, error)
	HandleRemoved(chatID int64) error
}

// Broadcaster runs one dispatch over a snapshot of targets.
type Broadcaster interface {
	Dispatch(ctx context.Context, post domain.Post, targets []domain.ChatRecord) broadcast.Report
}

// operatorGate answers whether a user may compose and send broadcasts.
type operatorGate interface {
	Allow(userID int64) bool
}

// Client wraps the Telegram bot instance and the collaborators its handlers
// drive.
type Client struct {
	bot    botRunner
	logger *logrus.Entry
	botID  int64

	registry    chatRegistry
	tracker     membershipTracker
	sessions    *wizard.Manager
	broadcaster Broadcaster
	gate        operatorGate

	broadcasterFactory BroadcasterFactory
}

// BroadcasterFactory builds the dispatch pipeline once the bot API handle
// exists. NewClient invokes it with a sender bound to that handle.
type BroadcasterFactory func(sender *PostSender) (Broadcaster, error)

// Option wires a collaborator into the client.
type Option func(*Client)

// WithRegistry provides the chat registry read surface.
func WithRegistry(registry chatRegistry) Option {
	return func(c *Client) { c.registry = registry }
}

// WithTracker provides the membership tracker.
func WithTracker(tracker membershipTracker) Option {
	return func(c *Client) { c.tracker = tracker }
}

// WithSessions provides the wizard session manager.
func WithSessions(sessions *wizard.Manager) Option {
	return func(c *Client) { c.sessions = sessions }
}

// WithBroadcaster provides the dispatch runner.
func WithBroadcaster(broadcaster Broadcaster) Option {
	return func(c *Client) { c.broadcaster = broadcaster }
}

// WithOperatorGate provides the composition authorization check.
func WithOperatorGate(gate operatorGate) Option {
	return func(c *Client) { c.gate = gate }
}

// WithBroadcasterFactory defers broadcaster construction until the bot API
// handle is available.
func WithBroadcasterFactory(factory BroadcasterFactory) Option {
	return func(c *Client) { c.broadcasterFactory = factory }
}

// NewClient initializes the Telegram bot with long polling and the command,
// callback, and membership handlers.
func NewClient(cfg config.Config, logger *logrus.Entry, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	botID, err := BotIDFromToken(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}

	client := &Client{
		logger: logger,
		botID:  botID,
	}

	for _, opt := range opts {
		opt(client)
	}

	tgBot, err := createBot(cfg.TelegramToken,
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(client.defaultHandler),
		bot.WithErrorsHandler(errorHandler(logger)),
		bot.WithMessageTextHandler("/start", bot.MatchTypeExact, client.handleStart),
		bot.WithMessageTextHandler("/help", bot.MatchTypeExact, client.handleHelp),
		bot.WithMessageTextHandler("/listchats", bot.MatchTypeExact, client.handleListChats),
		bot.WithMessageTextHandler("/newpost", bot.MatchTypeExact, client.handleNewPost),
		bot.WithMessageTextHandler("/cancel", bot.MatchTypeExact, client.handleCancelCommand),
		bot.WithCallbackQueryDataHandler(callbackMenuPrefix, bot.MatchTypePrefix, client.handleMenuCallback),
		bot.WithCallbackQueryDataHandler(callbackSkipPrefix, bot.MatchTypePrefix, client.handleSkipCallback),
		bot.WithCallbackQueryDataHandler(callbackConfirmSend, bot.MatchTypeExact, client.handleConfirmSend),
		bot.WithCallbackQueryDataHandler(callbackCancel, bot.MatchTypeExact, client.handleCancelCallback),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	client.bot = tgBot

	if client.broadcasterFactory != nil && client.broadcaster == nil {
		api, ok := tgBot.(sendAPI)
		if !ok {
			return nil, errors.New("bot handle does not expose the send api")
		}

		sender, err := NewPostSender(api, botID)
		if err != nil {
			return nil, err
		}

		broadcaster, err := client.broadcasterFactory(sender)
		if err != nil {
			return nil, fmt.Errorf("init broadcaster: %w", err)
		}
		client.broadcaster = broadcaster
	}

	return client, nil
}

// Start begins receiving updates via long polling until the context is canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.bot.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

// BotIDFromToken extracts the bot's own user id from the numeric prefix of a
// BotFather token ("<id>:<secret>").
func BotIDFromToken(token string) (int64, error) {
	prefix, _, found := strings.Cut(strings.TrimSpace(token), ":")
	if !found {
		return 0, errors.New("telegram token has no id prefix")
	}

	id, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram token has a non-numeric id prefix: %w", err)
	}
	if id <= 0 {
		return 0, errors.New("telegram token id prefix must be positive")
	}

	return id, nil
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}

func userID(user *models.User) int64 {
	if user == nil {
		return 0
	}

	return user.ID
}

func chatID(chat *models.Chat) int64 {
	if chat == nil {
		return 0
	}

	return chat.ID
}

func messageChatID(msg models.MaybeInaccessibleMessage) int64 {
	switch msg.Type {
	case models.MaybeInaccessibleMessageTypeMessage:
		if msg.Message == nil {
			return 0
		}
		return chatID(&msg.Message.Chat)
	case models.MaybeInaccessibleMessageTypeInaccessibleMessage:
		if msg.InaccessibleMessage == nil {
			return 0
		}
		return chatID(&msg.InaccessibleMessage.Chat)
	default:
		return 0
	}
}
