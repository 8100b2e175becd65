package domain

import (
	"strings"
	"testing"
)

func TestValidateRequiresTitle(t *testing.T) {
	post := Post{Description: "text"}
	if err := post.Validate(); err == nil {
		t.Fatalf("expected error for missing title")
	}

	post = Post{Title: "   "}
	if err := post.Validate(); err == nil {
		t.Fatalf("expected error for blank title")
	}
}

func TestValidateEnforcesLimits(t *testing.T) {
	post := Post{Title: strings.Repeat("x", MaxTitleLen+1)}
	if err := post.Validate(); err == nil {
		t.Fatalf("expected error for over-long title")
	}

	post = Post{Title: "ok", Description: strings.Repeat("y", MaxDescriptionLen+1)}
	if err := post.Validate(); err == nil {
		t.Fatalf("expected error for over-long description")
	}

	post = Post{
		Title:       strings.Repeat("x", MaxTitleLen),
		Description: strings.Repeat("y", MaxDescriptionLen),
	}
	if err := post.Validate(); err != nil {
		t.Fatalf("expected post at the limits to validate, got %v", err)
	}
}

func TestValidateLimitsCountRunesNotBytes(t *testing.T) {
	post := Post{Title: strings.Repeat("п", MaxTitleLen)}
	if err := post.Validate(); err != nil {
		t.Fatalf("expected %d-rune title to validate, got %v", MaxTitleLen, err)
	}
}

func TestValidateButton(t *testing.T) {
	post := Post{Title: "t", ButtonURL: "ftp://example.com", ButtonLabel: "Go"}
	if err := post.Validate(); err == nil {
		t.Fatalf("expected error for non-http scheme")
	}

	post = Post{Title: "t", ButtonURL: "https://example.com", ButtonLabel: ""}
	if err := post.Validate(); err == nil {
		t.Fatalf("expected error for missing button label")
	}

	post = Post{Title: "t", ButtonURL: "https://example.com", ButtonLabel: "Go"}
	if err := post.Validate(); err != nil {
		t.Fatalf("expected valid button post, got %v", err)
	}
	if !post.HasButton() {
		t.Fatalf("expected HasButton to be true")
	}
}

func TestParseChatType(t *testing.T) {
	for _, raw := range []string{"group", "supergroup", "channel"} {
		typ, err := ParseChatType(raw)
		if err != nil {
			t.Fatalf("ParseChatType(%q) returned error: %v", raw, err)
		}
		if string(typ) != raw {
			t.Fatalf("ParseChatType(%q) = %q", raw, typ)
		}
	}

	if _, err := ParseChatType("private"); err == nil {
		t.Fatalf("expected error for private chat type")
	}

	if Broadcastable("private") {
		t.Fatalf("private chats must not be broadcastable")
	}
	if !Broadcastable("channel") {
		t.Fatalf("channels must be broadcastable")
	}
}
