package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Field limits for a composed post. Titles and descriptions beyond these
// limits are rejected during composition and never reach the dispatcher.
const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 1000
)

// DefaultButtonLabel is used when the operator supplies a URL without text.
const DefaultButtonLabel = "Open"

// Post is a composed broadcast message. The title is mandatory; image,
// description, and call-to-action button are optional.
type Post struct {
	ImageFileID string
	Title       string
	Description string
	ButtonURL   string
	ButtonLabel string
}

// HasImage reports whether the post carries a photo.
func (p Post) HasImage() bool {
	return strings.TrimSpace(p.ImageFileID) != ""
}

// HasButton reports whether the post carries a call-to-action button.
func (p Post) HasButton() bool {
	return strings.TrimSpace(p.ButtonURL) != ""
}

// Validate checks the post against the composition contract. The dispatcher
// assumes any post it receives has passed this check.
func (p Post) Validate() error {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return fmt.Errorf("post title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return fmt.Errorf("post title exceeds %d characters", MaxTitleLen)
	}

	if utf8.RuneCountInString(strings.TrimSpace(p.Description)) > MaxDescriptionLen {
		return fmt.Errorf("post description exceeds %d characters", MaxDescriptionLen)
	}

	if p.HasButton() {
		if err := ValidateButtonURL(p.ButtonURL); err != nil {
			return err
		}
		if strings.TrimSpace(p.ButtonLabel) == "" {
			return fmt.Errorf("button label is required when a URL is set")
		}
	}

	return nil
}

// ValidateButtonURL enforces the scheme contract for call-to-action URLs.
func ValidateButtonURL(raw string) error {
	url := strings.TrimSpace(raw)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("button URL must start with http:// or https://")
	}
	return nil
}
