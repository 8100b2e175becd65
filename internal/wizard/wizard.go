// Package wizard drives the step-by-step composition of a broadcast post.
//
// The flow is linear: image → title → description → button → preview. Image,
// description, and button may be skipped; the title may not. Invalid input
// keeps the session on its current step so the operator can retry.
package wizard

import (
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"tg_broadcast_bot/internal/domain"
	"tg_broadcast_bot/internal/logging"
)

// Step identifies the wizard state awaiting operator input.
type Step int

const (
	StepImage Step = iota + 1
	StepTitle
	StepDescription
	StepButton
	StepPreview
)

// String names the step for logs.
func (s Step) String() string {
	switch s {
	case StepImage:
		return "image"
	case StepTitle:
		return "title"
	case StepDescription:
		return "description"
	case StepButton:
		return "button"
	case StepPreview:
		return "preview"
	default:
		return "unknown"
	}
}

// Input validation errors, distinguished so the transport layer can pick the
// right re-prompt.
var (
	ErrNoSession          = errors.New("no composition in progress")
	ErrWrongStep          = errors.New("input does not match the current step")
	ErrTitleEmpty         = errors.New("title must not be empty")
	ErrTitleTooLong       = errors.New("title is too long")
	ErrDescriptionTooLong = errors.New("description is too long")
	ErrButtonFormat       = errors.New("button input must be \"URL | label\"")
	ErrButtonURL          = errors.New("button URL must start with http:// or https://")
)

// Session is one operator's in-progress draft. It exists only between
// /newpost and send/cancel and is never persisted.
type Session struct {
	UserID int64
	ChatID int64
	Step   Step
	Draft  domain.Post
}

// Manager owns the active sessions, one per operator.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	logger   *logrus.Entry
}

// NewManager constructs an empty session manager.
func NewManager(logger *logrus.Entry) *Manager {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Manager{
		sessions: make(map[int64]*Session),
		logger:   logger,
	}
}

// Start begins a fresh draft for the operator, discarding any previous one.
func (m *Manager) Start(userID, chatID int64) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := &Session{
		UserID: userID,
		ChatID: chatID,
		Step:   StepImage,
	}
	m.sessions[userID] = session

	m.logger.WithFields(logging.Fields{
		"event":   "wizard_started",
		"user_id": userID,
	}).Info("post composition started")

	return *session
}

// Active returns a copy of the operator's session when one exists.
func (m *Manager) Active(userID int64) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return *session, true
}

// Cancel discards the operator's draft and reports whether one existed.
func (m *Manager) Cancel(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[userID]; !ok {
		return false
	}
	delete(m.sessions, userID)

	m.logger.WithFields(logging.Fields{
		"event":   "wizard_cancelled",
		"user_id": userID,
	}).Info("post composition cancelled")

	return true
}

// Take validates the completed draft, ends the session, and hands the post
// to the caller. The session stays alive when validation fails.
func (m *Manager) Take(userID int64) (domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[userID]
	if !ok {
		return domain.Post{}, ErrNoSession
	}
	if session.Step != StepPreview {
		return domain.Post{}, ErrWrongStep
	}

	if err := session.Draft.Validate(); err != nil {
		return domain.Post{}, err
	}

	delete(m.sessions, userID)
	return session.Draft, nil
}

// SetImage stores the uploaded photo and advances to the title step.
func (m *Manager) SetImage(userID int64, fileID string) (Step, error) {
	return m.advance(userID, StepImage, func(draft *domain.Post) error {
		draft.ImageFileID = fileID
		return nil
	})
}

// SkipImage advances past the optional image step.
func (m *Manager) SkipImage(userID int64) (Step, error) {
	return m.advance(userID, StepImage, nil)
}

// SetTitle stores the post title, re-prompting on empty or over-long input.
func (m *Manager) SetTitle(userID int64, text string) (Step, error) {
	return m.advance(userID, StepTitle, func(draft *domain.Post) error {
		title := strings.TrimSpace(text)
		if title == "" {
			return ErrTitleEmpty
		}
		if utf8.RuneCountInString(title) > domain.MaxTitleLen {
			return ErrTitleTooLong
		}
		draft.Title = title
		return nil
	})
}

// SetDescription stores the description, re-prompting on over-long input.
func (m *Manager) SetDescription(userID int64, text string) (Step, error) {
	return m.advance(userID, StepDescription, func(draft *domain.Post) error {
		description := strings.TrimSpace(text)
		if utf8.RuneCountInString(description) > domain.MaxDescriptionLen {
			return ErrDescriptionTooLong
		}
		draft.Description = description
		return nil
	})
}

// SkipDescription advances past the optional description step.
func (m *Manager) SkipDescription(userID int64) (Step, error) {
	return m.advance(userID, StepDescription, nil)
}

// SetButton parses "URL | label" input and stores the call-to-action button.
func (m *Manager) SetButton(userID int64, text string) (Step, error) {
	return m.advance(userID, StepButton, func(draft *domain.Post) error {
		url, label, err := ParseButton(text)
		if err != nil {
			return err
		}
		draft.ButtonURL = url
		draft.ButtonLabel = label
		return nil
	})
}

// SkipButton advances past the optional button step.
func (m *Manager) SkipButton(userID int64) (Step, error) {
	return m.advance(userID, StepButton, nil)
}

// ParseButton splits "URL | label" operator input. The label defaults when
// omitted after the separator.
func ParseButton(text string) (url, label string, err error) {
	raw := strings.TrimSpace(text)
	if !strings.Contains(raw, "|") {
		return "", "", ErrButtonFormat
	}

	parts := strings.SplitN(raw, "|", 2)
	url = strings.TrimSpace(parts[0])
	label = strings.TrimSpace(parts[1])

	if domain.ValidateButtonURL(url) != nil {
		return "", "", ErrButtonURL
	}
	if label == "" {
		label = domain.DefaultButtonLabel
	}

	return url, label, nil
}

// advance applies one step's mutation and moves the session forward. A nil
// apply skips the step. Validation errors leave the step unchanged.
func (m *Manager) advance(userID int64, expect Step, apply func(*domain.Post) error) (Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[userID]
	if !ok {
		return 0, ErrNoSession
	}
	if session.Step != expect {
		return session.Step, ErrWrongStep
	}

	if apply != nil {
		if err := apply(&session.Draft); err != nil {
			return session.Step, err
		}
	}

	session.Step = nextStep(expect)

	m.logger.WithFields(logging.Fields{
		"event":   "wizard_step",
		"user_id": userID,
		"step":    session.Step.String(),
	}).Debug("composition advanced")

	return session.Step, nil
}

func nextStep(s Step) Step {
	switch s {
	case StepImage:
		return StepTitle
	case StepTitle:
		return StepDescription
	case StepDescription:
		return StepButton
	case StepButton:
		return StepPreview
	default:
		return s
	}
}
