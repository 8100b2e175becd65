package telegram

import (
	"context"
	"errors"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"tg_broadcast_bot/internal/broadcast"
	"tg_broadcast_bot/internal/domain"
)

// sendAPI is the slice of the bot API the post sender needs.
type sendAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	GetChatMember(ctx context.Context, params *bot.GetChatMemberParams) (*models.ChatMember, error)
}

// PostSender delivers composed posts to individual chats over the Telegram
// API. It satisfies the dispatcher's Sender and RightsChecker contracts.
type PostSender struct {
	api   sendAPI
	botID int64
}

// NewPostSender builds a sender around a bot API handle and the bot's own
// user id, which the posting rights check compares against.
func NewPostSender(api sendAPI, botID int64) (*PostSender, error) {
	if api == nil {
		return nil, errors.New("telegram api handle is required")
	}
	if botID <= 0 {
		return nil, errors.New("bot id must be positive")
	}

	return &PostSender{api: api, botID: botID}, nil
}

// SendPost delivers one post to one chat. Posts with an image go out as a
// photo with an HTML caption, the rest as a plain HTML message.
func (s *PostSender) SendPost(ctx context.Context, chatID int64, post domain.Post) error {
	body := renderPostHTML(post)
	keyboard := postKeyboard(post)

	if post.HasImage() {
		params := &bot.SendPhotoParams{
			ChatID:    chatID,
			Photo:     &models.InputFileString{Data: post.ImageFileID},
			Caption:   body,
			ParseMode: models.ParseModeHTML,
		}
		if keyboard != nil {
			params.ReplyMarkup = keyboard
		}
		_, err := s.api.SendPhoto(ctx, params)
		return err
	}

	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      body,
		ParseMode: models.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}
	_, err := s.api.SendMessage(ctx, params)
	return err
}

// CheckPostingRights reports whether the bot can post in the chat, by asking
// Telegram for its own membership record. Channels require admin rights with
// posting permission; groups accept plain membership.
func (s *PostSender) CheckPostingRights(ctx context.Context, chatID int64) (bool, error) {
	member, err := s.api.GetChatMember(ctx, &bot.GetChatMemberParams{
		ChatID: chatID,
		UserID: s.botID,
	})
	if err != nil {
		return false, err
	}
	if member == nil {
		return false, errors.New("empty chat member response")
	}

	switch member.Type {
	case models.ChatMemberTypeOwner:
		return true, nil
	case models.ChatMemberTypeAdministrator:
		return true, nil
	case models.ChatMemberTypeMember, models.ChatMemberTypeRestricted:
		return true, nil
	default:
		return false, nil
	}
}

// ClassifySendError maps a Telegram send failure onto a broadcast outcome.
func ClassifySendError(err error) broadcast.Outcome {
	switch {
	case err == nil:
		return broadcast.OutcomeDelivered
	case errors.Is(err, bot.ErrorForbidden):
		return broadcast.OutcomeForbidden
	case errors.Is(err, bot.ErrorNotFound):
		return broadcast.OutcomeNotFound
	case errors.Is(err, bot.ErrorTooManyRequests) || bot.IsTooManyRequestsError(err):
		return broadcast.OutcomeRateLimited
	case errors.Is(err, bot.ErrorBadRequest) && strings.Contains(err.Error(), "chat not found"):
		return broadcast.OutcomeNotFound
	default:
		return broadcast.OutcomeUnknown
	}
}
