package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"tg_broadcast_bot/internal/domain"
	"tg_broadcast_bot/internal/logging"
	"tg_broadcast_bot/internal/wizard"
)

const (
	skipActionImage       = "image"
	skipActionDescription = "description"
	skipActionButton      = "url"
)

func (c *Client) startComposition(ctx context.Context, b *bot.Bot, uid, target int64) {
	if c.sessions == nil {
		c.reply(ctx, b, target, "Post composition is not configured.", nil)
		return
	}

	session := c.sessions.Start(uid, target)
	c.sendStepPrompt(ctx, b, target, session.Step)
}

func (c *Client) cancelComposition(ctx context.Context, b *bot.Bot, uid, target int64) {
	if c.sessions == nil || !c.sessions.Cancel(uid) {
		c.reply(ctx, b, target, "Nothing to cancel.", nil)
		return
	}

	c.reply(ctx, b, target, "Post discarded.", nil)
}

// handleWizardInput feeds an operator message into the active composition
// session and sends the next prompt.
func (c *Client) handleWizardInput(ctx context.Context, b *bot.Bot, msg *models.Message, session wizard.Session) {
	uid := userID(msg.From)
	target := msg.Chat.ID

	var (
		step wizard.Step
		err  error
	)

	switch session.Step {
	case wizard.StepImage:
		if len(msg.Photo) == 0 {
			c.reply(ctx, b, target, "Send an image for the post, or press Skip.", skipKeyboard(skipActionImage))
			return
		}
		// The last size Telegram lists is the largest rendition.
		step, err = c.sessions.SetImage(uid, msg.Photo[len(msg.Photo)-1].FileID)
	case wizard.StepTitle:
		step, err = c.sessions.SetTitle(uid, msg.Text)
	case wizard.StepDescription:
		step, err = c.sessions.SetDescription(uid, msg.Text)
	case wizard.StepButton:
		step, err = c.sessions.SetButton(uid, msg.Text)
	case wizard.StepPreview:
		c.reply(ctx, b, target, "Use the buttons under the preview to send or cancel.", nil)
		return
	default:
		return
	}

	c.afterAdvance(ctx, b, uid, target, session.Step, step, err)
}

// handleSkipCallback advances past an optional step from its Skip button.
func (c *Client) handleSkipCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	cb := update.CallbackQuery
	if cb == nil {
		return
	}
	c.ack(ctx, b, cb.ID)

	uid := cb.From.ID
	target := messageChatID(cb.Message)
	if target == 0 || !c.allowed(uid) || c.sessions == nil {
		return
	}

	var (
		step wizard.Step
		err  error
		from wizard.Step
	)

	switch cb.Data {
	case callbackSkipPrefix + skipActionImage:
		from = wizard.StepImage
		step, err = c.sessions.SkipImage(uid)
	case callbackSkipPrefix + skipActionDescription:
		from = wizard.StepDescription
		step, err = c.sessions.SkipDescription(uid)
	case callbackSkipPrefix + skipActionButton:
		from = wizard.StepButton
		step, err = c.sessions.SkipButton(uid)
	default:
		return
	}

	c.afterAdvance(ctx, b, uid, target, from, step, err)
}

// handleConfirmSend finalizes the draft and runs the broadcast, reporting the
// outcome back to the operator.
func (c *Client) handleConfirmSend(ctx context.Context, b *bot.Bot, update *models.Update) {
	cb := update.CallbackQuery
	if cb == nil {
		return
	}
	c.ack(ctx, b, cb.ID)

	uid := cb.From.ID
	target := messageChatID(cb.Message)
	if target == 0 || !c.allowed(uid) || c.sessions == nil {
		return
	}

	post, err := c.sessions.Take(uid)
	if err != nil {
		c.reply(ctx, b, target, wizardErrorText(err), nil)
		return
	}

	if c.broadcaster == nil || c.registry == nil {
		c.reply(ctx, b, target, "Broadcasting is not configured.", nil)
		return
	}

	targets := c.registry.List()
	if len(targets) == 0 {
		c.reply(ctx, b, target, "No chats to broadcast to yet. Add the bot to a group or channel first.", nil)
		return
	}

	c.reply(ctx, b, target, fmt.Sprintf("Broadcasting to %d chats.", len(targets)), nil)

	report := c.broadcaster.Dispatch(ctx, post, targets)

	c.logger.WithFields(logging.Fields{
		"event":     "broadcast_reported",
		"total":     report.Total,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
	}).Info(report.Summary())

	c.reply(ctx, b, target, renderReport(report), nil)
}

func (c *Client) handleCancelCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
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

	c.cancelComposition(ctx, b, uid, target)
}

// afterAdvance sends the follow-up for a wizard transition: a re-prompt when
// the input was rejected, the next step's prompt, or the preview.
func (c *Client) afterAdvance(ctx context.Context, b *bot.Bot, uid, target int64, from, step wizard.Step, err error) {
	if err != nil {
		text := wizardErrorText(err)
		if keyboard := stepKeyboard(from); keyboard != nil && !errors.Is(err, wizard.ErrNoSession) {
			c.reply(ctx, b, target, text, keyboard)
		} else {
			c.reply(ctx, b, target, text, nil)
		}
		return
	}

	if step == wizard.StepPreview {
		c.sendPreview(ctx, b, uid, target)
		return
	}

	c.sendStepPrompt(ctx, b, target, step)
}

func (c *Client) sendStepPrompt(ctx context.Context, b *bot.Bot, target int64, step wizard.Step) {
	text, keyboard := stepPrompt(step)
	c.reply(ctx, b, target, text, keyboard)
}

// sendPreview renders the draft exactly as chats will receive it, then asks
// for confirmation.
func (c *Client) sendPreview(ctx context.Context, b *bot.Bot, uid, target int64) {
	session, ok := c.sessions.Active(uid)
	if !ok {
		c.reply(ctx, b, target, wizardErrorText(wizard.ErrNoSession), nil)
		return
	}

	if err := c.sendPost(ctx, b, target, session.Draft); err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "preview_failed",
			"user_id": uid,
		}).WithError(err).Warn("could not deliver preview")
		c.reply(ctx, b, target, "The preview could not be delivered. Use /cancel and start over.", nil)
		return
	}

	c.reply(ctx, b, target, "This is how the post will look. Send it to all tracked chats?", confirmKeyboard())
}

// sendPost delivers one post through the update-handling bot handle. The
// broadcast path uses PostSender instead.
func (c *Client) sendPost(ctx context.Context, b *bot.Bot, target int64, post domain.Post) error {
	body := renderPostHTML(post)
	keyboard := postKeyboard(post)

	if post.HasImage() {
		params := &bot.SendPhotoParams{
			ChatID:    target,
			Photo:     &models.InputFileString{Data: post.ImageFileID},
			Caption:   body,
			ParseMode: models.ParseModeHTML,
		}
		if keyboard != nil {
			params.ReplyMarkup = keyboard
		}
		_, err := sendPhoto(ctx, b, params)
		return err
	}

	params := &bot.SendMessageParams{
		ChatID:    target,
		Text:      body,
		ParseMode: models.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}
	_, err := sendMessage(ctx, b, params)
	return err
}

func stepPrompt(step wizard.Step) (string, models.ReplyMarkup) {
	switch step {
	case wizard.StepImage:
		return "Let's compose a post. Send an image for it, or skip.", skipKeyboard(skipActionImage)
	case wizard.StepTitle:
		return fmt.Sprintf("Send the post title (up to %d characters).", domain.MaxTitleLen), cancelKeyboard()
	case wizard.StepDescription:
		return fmt.Sprintf("Send the description (up to %d characters), or skip.", domain.MaxDescriptionLen), skipKeyboard(skipActionDescription)
	case wizard.StepButton:
		return "Send a link button as <code>URL | label</code>, or skip.", skipKeyboard(skipActionButton)
	default:
		return "Use the buttons under the preview to send or cancel.", nil
	}
}

// stepKeyboard returns the keyboard to attach to a re-prompt after rejected
// input, nil when the step has no inline controls worth repeating.
func stepKeyboard(step wizard.Step) models.ReplyMarkup {
	switch step {
	case wizard.StepImage:
		return skipKeyboard(skipActionImage)
	case wizard.StepDescription:
		return skipKeyboard(skipActionDescription)
	case wizard.StepButton:
		return skipKeyboard(skipActionButton)
	default:
		return nil
	}
}

func wizardErrorText(err error) string {
	switch {
	case errors.Is(err, wizard.ErrNoSession):
		return "No post in progress. Use /newpost to start one."
	case errors.Is(err, wizard.ErrWrongStep):
		return "That input does not match the current step. Follow the prompts, or /cancel to start over."
	case errors.Is(err, wizard.ErrTitleEmpty):
		return "The title must not be empty. Send it again."
	case errors.Is(err, wizard.ErrTitleTooLong):
		return fmt.Sprintf("The title is limited to %d characters. Send a shorter one.", domain.MaxTitleLen)
	case errors.Is(err, wizard.ErrDescriptionTooLong):
		return fmt.Sprintf("The description is limited to %d characters. Send a shorter one.", domain.MaxDescriptionLen)
	case errors.Is(err, wizard.ErrButtonFormat):
		return "Send the button as <code>URL | label</code>, for example <code>https://example.com | Visit us</code>."
	case errors.Is(err, wizard.ErrButtonURL):
		return "The button URL must start with http:// or https://."
	default:
		return "That did not work. Try again, or /cancel to start over."
	}
}
