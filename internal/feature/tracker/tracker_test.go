package tracker

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"tg_broadcast_bot/internal/domain"
)

type fakeRegistry struct {
	upserts []upsertCall
	removes []int64
	err     error
}

type upsertCall struct {
	chatID   int64
	title    string
	chatType domain.ChatType
}

func (f *fakeRegistry) Upsert(chatID int64, title string, chatType domain.ChatType) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, upsertCall{chatID: chatID, title: title, chatType: chatType})
	return nil
}

func (f *fakeRegistry) Remove(chatID int64) error {
	if f.err != nil {
		return f.err
	}
	f.removes = append(f.removes, chatID)
	return nil
}

func newTestTracker(reg *fakeRegistry) *Tracker {
	hookLogger, _ := logtest.NewNullLogger()
	return NewTracker(reg, logrus.NewEntry(hookLogger))
}

func TestHandleAddedRegistersBroadcastableChats(t *testing.T) {
	reg := &fakeRegistry{}
	tr := newTestTracker(reg)

	tracked, err := tr.HandleAdded(-100200, " Test Group ", "supergroup")
	if err != nil {
		t.Fatalf("HandleAdded returned error: %v", err)
	}
	if !tracked {
		t.Fatalf("expected supergroup to be tracked")
	}

	if len(reg.upserts) != 1 {
		t.Fatalf("expected one upsert, got %d", len(reg.upserts))
	}
	call := reg.upserts[0]
	if call.chatID != -100200 || call.title != "Test Group" || call.chatType != domain.ChatTypeSupergroup {
		t.Fatalf("unexpected upsert %+v", call)
	}
}

func TestHandleAddedIgnoresPrivateChats(t *testing.T) {
	reg := &fakeRegistry{}
	tr := newTestTracker(reg)

	tracked, err := tr.HandleAdded(555, "Some User", "private")
	if err != nil {
		t.Fatalf("HandleAdded returned error: %v", err)
	}
	if tracked {
		t.Fatalf("expected private chat to be ignored")
	}
	if len(reg.upserts) != 0 {
		t.Fatalf("expected no upsert for private chat, got %d", len(reg.upserts))
	}
}

func TestHandleAddedPropagatesRegistryError(t *testing.T) {
	boom := errors.New("disk full")
	reg := &fakeRegistry{err: boom}
	tr := newTestTracker(reg)

	_, err := tr.HandleAdded(-1, "Group", "group")
	if !errors.Is(err, boom) {
		t.Fatalf("expected registry error to propagate, got %v", err)
	}
}

func TestHandleRemovedUnregisters(t *testing.T) {
	reg := &fakeRegistry{}
	tr := newTestTracker(reg)

	if err := tr.HandleRemoved(-100200); err != nil {
		t.Fatalf("HandleRemoved returned error: %v", err)
	}

	if len(reg.removes) != 1 || reg.removes[0] != -100200 {
		t.Fatalf("expected one remove for chat -100200, got %v", reg.removes)
	}
}

func TestGuardClauses(t *testing.T) {
	tr := newTestTracker(&fakeRegistry{})

	if _, err := tr.HandleAdded(0, "x", "group"); err == nil {
		t.Fatalf("expected error for zero chat id")
	}
	if err := tr.HandleRemoved(0); err == nil {
		t.Fatalf("expected error for zero chat id")
	}

	var nilTracker *Tracker
	if _, err := nilTracker.HandleAdded(1, "x", "group"); err == nil {
		t.Fatalf("expected error for uninitialized tracker")
	}
}
