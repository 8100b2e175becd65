package telegram

import (
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot/models"

	"tg_broadcast_bot/internal/broadcast"
	"tg_broadcast_bot/internal/domain"
)

const maxReportFailures = 5

// renderPostHTML produces the HTML-mode body of a broadcast post: bold title
// followed by the optional description.
func renderPostHTML(post domain.Post) string {
	var sb strings.Builder

	sb.WriteString("<b>")
	sb.WriteString(html.EscapeString(post.Title))
	sb.WriteString("</b>")

	if strings.TrimSpace(post.Description) != "" {
		sb.WriteString("\n\n")
		sb.WriteString(html.EscapeString(post.Description))
	}

	return sb.String()
}

// postKeyboard returns the inline keyboard for a post, or nil when the post
// carries no button.
func postKeyboard(post domain.Post) *models.InlineKeyboardMarkup {
	if !post.HasButton() {
		return nil
	}

	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: post.ButtonLabel, URL: post.ButtonURL},
			},
		},
	}
}

func menuKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "New post", CallbackData: callbackMenuPrefix + "newpost"},
			},
			{
				{Text: "Tracked chats", CallbackData: callbackMenuPrefix + "listchats"},
				{Text: "Help", CallbackData: callbackMenuPrefix + "help"},
			},
		},
	}
}

func skipKeyboard(action string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "Skip", CallbackData: callbackSkipPrefix + action},
				{Text: "Cancel", CallbackData: callbackCancel},
			},
		},
	}
}

func cancelKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "Cancel", CallbackData: callbackCancel},
			},
		},
	}
}

func confirmKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "Send to all chats", CallbackData: callbackConfirmSend},
				{Text: "Cancel", CallbackData: callbackCancel},
			},
		},
	}
}

// renderChatList formats the tracked chat roster for the operator.
func renderChatList(records []domain.ChatRecord) string {
	if len(records) == 0 {
		return "No chats tracked yet. Add the bot to a group or channel to start."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Tracked chats (%d)</b>\n", len(records))

	for _, rec := range records {
		title := rec.Title
		if strings.TrimSpace(title) == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(&sb, "\n• %s [%s] <code>%d</code>", html.EscapeString(title), rec.Type, rec.ChatID)
	}

	return sb.String()
}

// renderReport formats a dispatch report for the operator, listing up to
// maxReportFailures failed chats by title and reason.
func renderReport(report broadcast.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Broadcast finished: %d/%d delivered.", report.Succeeded, report.Total)

	failures := report.Failures()
	if len(failures) == 0 {
		return sb.String()
	}

	fmt.Fprintf(&sb, "\n\n<b>Failed (%d)</b>", len(failures))

	shown := failures
	if len(shown) > maxReportFailures {
		shown = shown[:maxReportFailures]
	}

	for _, res := range shown {
		title := res.Title
		if strings.TrimSpace(title) == "" {
			title = fmt.Sprintf("chat %d", res.ChatID)
		}
		fmt.Fprintf(&sb, "\n• %s: %s", html.EscapeString(title), res.Outcome)
	}

	if rest := len(failures) - len(shown); rest > 0 {
		fmt.Fprintf(&sb, "\n… and %d more", rest)
	}

	return sb.String()
}
