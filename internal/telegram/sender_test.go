package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"tg_broadcast_bot/internal/broadcast"
	"tg_broadcast_bot/internal/domain"
)

type fakeSendAPI struct {
	messages []*bot.SendMessageParams
	photos   []*bot.SendPhotoParams

	member    *models.ChatMember
	memberErr error

	sendErr error
}

func (f *fakeSendAPI) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.messages = append(f.messages, params)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &models.Message{}, nil
}

func (f *fakeSendAPI) SendPhoto(_ context.Context, params *bot.SendPhotoParams) (*models.Message, error) {
	f.photos = append(f.photos, params)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &models.Message{}, nil
}

func (f *fakeSendAPI) GetChatMember(_ context.Context, _ *bot.GetChatMemberParams) (*models.ChatMember, error) {
	return f.member, f.memberErr
}

func TestNewPostSenderGuards(t *testing.T) {
	if _, err := NewPostSender(nil, 42); err == nil {
		t.Fatalf("expected error for nil api")
	}
	if _, err := NewPostSender(&fakeSendAPI{}, 0); err == nil {
		t.Fatalf("expected error for zero bot id")
	}
}

func TestSendPostTextOnly(t *testing.T) {
	api := &fakeSendAPI{}
	sender, err := NewPostSender(api, 42)
	if err != nil {
		t.Fatalf("NewPostSender returned error: %v", err)
	}

	post := domain.Post{
		Title:       "Release <v2>",
		Description: "Now with & more",
		ButtonURL:   "https://example.com",
		ButtonLabel: "Open",
	}

	if err := sender.SendPost(context.Background(), 100, post); err != nil {
		t.Fatalf("SendPost returned error: %v", err)
	}

	if len(api.messages) != 1 || len(api.photos) != 0 {
		t.Fatalf("expected one text send, got messages=%d photos=%d", len(api.messages), len(api.photos))
	}

	params := api.messages[0]
	if params.ChatID != int64(100) {
		t.Fatalf("expected chat id 100, got %v", params.ChatID)
	}
	if params.ParseMode != models.ParseModeHTML {
		t.Fatalf("expected HTML parse mode, got %q", params.ParseMode)
	}
	if !strings.Contains(params.Text, "<b>Release &lt;v2&gt;</b>") {
		t.Fatalf("expected escaped bold title, got %q", params.Text)
	}
	if !strings.Contains(params.Text, "Now with &amp; more") {
		t.Fatalf("expected escaped description, got %q", params.Text)
	}

	markup, ok := params.ReplyMarkup.(*models.InlineKeyboardMarkup)
	if !ok || len(markup.InlineKeyboard) != 1 {
		t.Fatalf("expected inline keyboard with button row, got %#v", params.ReplyMarkup)
	}
	button := markup.InlineKeyboard[0][0]
	if button.Text != "Open" || button.URL != "https://example.com" {
		t.Fatalf("unexpected button: %+v", button)
	}
}

func TestSendPostWithImageUsesPhoto(t *testing.T) {
	api := &fakeSendAPI{}
	sender, _ := NewPostSender(api, 42)

	post := domain.Post{ImageFileID: "file-1", Title: "Pic"}

	if err := sender.SendPost(context.Background(), 100, post); err != nil {
		t.Fatalf("SendPost returned error: %v", err)
	}

	if len(api.photos) != 1 || len(api.messages) != 0 {
		t.Fatalf("expected one photo send, got photos=%d messages=%d", len(api.photos), len(api.messages))
	}

	params := api.photos[0]
	file, ok := params.Photo.(*models.InputFileString)
	if !ok || file.Data != "file-1" {
		t.Fatalf("expected photo by file id, got %#v", params.Photo)
	}
	if !strings.Contains(params.Caption, "<b>Pic</b>") {
		t.Fatalf("expected caption with title, got %q", params.Caption)
	}
	if params.ReplyMarkup != nil {
		t.Fatalf("expected no keyboard without a button")
	}
}

func TestCheckPostingRights(t *testing.T) {
	tests := []struct {
		name       string
		memberType models.ChatMemberType
		want       bool
	}{
		{name: "owner", memberType: models.ChatMemberTypeOwner, want: true},
		{name: "administrator", memberType: models.ChatMemberTypeAdministrator, want: true},
		{name: "member", memberType: models.ChatMemberTypeMember, want: true},
		{name: "restricted", memberType: models.ChatMemberTypeRestricted, want: true},
		{name: "left", memberType: models.ChatMemberTypeLeft, want: false},
		{name: "banned", memberType: models.ChatMemberTypeBanned, want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeSendAPI{member: &models.ChatMember{Type: tt.memberType}}
			sender, _ := NewPostSender(api, 42)

			got, err := sender.CheckPostingRights(context.Background(), 100)
			if err != nil {
				t.Fatalf("CheckPostingRights returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("CheckPostingRights = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckPostingRightsPropagatesError(t *testing.T) {
	expected := errors.New("api down")
	api := &fakeSendAPI{memberErr: expected}
	sender, _ := NewPostSender(api, 42)

	_, err := sender.CheckPostingRights(context.Background(), 100)
	if !errors.Is(err, expected) {
		t.Fatalf("expected error %v, got %v", expected, err)
	}
}

func TestClassifySendError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want broadcast.Outcome
	}{
		{name: "nil", err: nil, want: broadcast.OutcomeDelivered},
		{name: "forbidden", err: bot.ErrorForbidden, want: broadcast.OutcomeForbidden},
		{name: "wrapped forbidden", err: fmt.Errorf("send: %w", bot.ErrorForbidden), want: broadcast.OutcomeForbidden},
		{name: "not found", err: bot.ErrorNotFound, want: broadcast.OutcomeNotFound},
		{name: "too many requests", err: bot.ErrorTooManyRequests, want: broadcast.OutcomeRateLimited},
		{name: "bad request chat not found", err: fmt.Errorf("%w, chat not found", bot.ErrorBadRequest), want: broadcast.OutcomeNotFound},
		{name: "other bad request", err: fmt.Errorf("%w, message too long", bot.ErrorBadRequest), want: broadcast.OutcomeUnknown},
		{name: "plain error", err: errors.New("network down"), want: broadcast.OutcomeUnknown},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifySendError(tt.err); got != tt.want {
				t.Fatalf("ClassifySendError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
