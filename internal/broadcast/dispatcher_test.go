package broadcast

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"tg_broadcast_bot/internal/domain"
)

var (
	errKicked   = errors.New("bot was kicked")
	errGone     = errors.New("chat not found")
	errFlood    = errors.New("too many requests")
	errInternal = errors.New("internal server error")
)

func testClassifier(err error) Outcome {
	switch {
	case errors.Is(err, errKicked):
		return OutcomeForbidden
	case errors.Is(err, errGone):
		return OutcomeNotFound
	case errors.Is(err, errFlood):
		return OutcomeRateLimited
	default:
		return OutcomeUnknown
	}
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []int64
	failWith map[int64]error
	rights   map[int64]bool // consulted via rightsSender only
}

func (f *fakeSender) SendPost(_ context.Context, chatID int64, _ domain.Post) error {
	f.mu.Lock()
	f.sent = append(f.sent, chatID)
	f.mu.Unlock()

	if err, ok := f.failWith[chatID]; ok {
		return err
	}
	return nil
}

// rightsSender layers the optional capability on top of fakeSender.
type rightsSender struct {
	*fakeSender
	checkErr error
}

func (r *rightsSender) CheckPostingRights(_ context.Context, chatID int64) (bool, error) {
	if r.checkErr != nil {
		return false, r.checkErr
	}
	allowed, ok := r.rights[chatID]
	return ok && allowed, nil
}

type fakeRemover struct {
	mu      sync.Mutex
	removed []int64
	err     error
}

func (f *fakeRemover) Remove(chatID int64) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.removed = append(f.removed, chatID)
	f.mu.Unlock()
	return nil
}

func targets(ids ...int64) []domain.ChatRecord {
	out := make([]domain.ChatRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.ChatRecord{ChatID: id, Title: "Chat", Type: domain.ChatTypeGroup})
	}
	return out
}

func newTestDispatcher(t *testing.T, sender Sender, opts ...Option) *Dispatcher {
	t.Helper()
	hookLogger, _ := logtest.NewNullLogger()
	opts = append(opts, WithLogger(logrus.NewEntry(hookLogger)))

	d, err := NewDispatcher(sender, testClassifier, opts...)
	if err != nil {
		t.Fatalf("NewDispatcher returned error: %v", err)
	}
	return d
}

func TestDispatchEmptyTargetsMakesNoCalls(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDispatcher(t, sender)

	report := d.Dispatch(context.Background(), domain.Post{Title: "t"}, nil)

	if report.Total != 0 || report.Succeeded != 0 || report.Failed != 0 {
		t.Fatalf("expected zero report, got %+v", report)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no transport calls, got %v", sender.sent)
	}
}

func TestDispatchCountsAndOrder(t *testing.T) {
	sender := &fakeSender{failWith: map[int64]error{
		200: errKicked,
		400: errInternal,
	}}
	d := newTestDispatcher(t, sender)

	report := d.Dispatch(context.Background(), domain.Post{Title: "t"}, targets(100, 200, 300, 400))

	if report.Total != 4 || report.Succeeded != 2 || report.Failed != 2 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if report.Succeeded+report.Failed != report.Total {
		t.Fatalf("counts do not add up: %+v", report)
	}

	wantOrder := []int64{100, 200, 300, 400}
	if len(report.Results) != len(wantOrder) {
		t.Fatalf("expected %d results, got %d", len(wantOrder), len(report.Results))
	}
	for i, want := range wantOrder {
		if report.Results[i].ChatID != want {
			t.Fatalf("result %d: expected chat %d, got %d", i, want, report.Results[i].ChatID)
		}
	}

	if report.Results[1].Outcome != OutcomeForbidden {
		t.Fatalf("expected forbidden for chat 200, got %s", report.Results[1].Outcome)
	}
	if report.Results[3].Outcome != OutcomeUnknown {
		t.Fatalf("expected unknown for chat 400, got %s", report.Results[3].Outcome)
	}
}

func TestDispatchDoesNotFailFast(t *testing.T) {
	sender := &fakeSender{failWith: map[int64]error{100: errInternal}}
	d := newTestDispatcher(t, sender)

	report := d.Dispatch(context.Background(), domain.Post{Title: "t"}, targets(100, 200, 300))

	if len(sender.sent) != 3 {
		t.Fatalf("expected all 3 targets attempted despite first failing, got %d", len(sender.sent))
	}
	if report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", report)
	}
}

func TestDispatchKickedChatIsRemovedFromRegistry(t *testing.T) {
	sender := &fakeSender{failWith: map[int64]error{200: errKicked}}
	remover := &fakeRemover{}
	d := newTestDispatcher(t, sender, WithRemover(remover))

	report := d.Dispatch(context.Background(), domain.Post{Title: "t"},
		[]domain.ChatRecord{
			{ChatID: 100, Title: "Group A", Type: domain.ChatTypeGroup},
			{ChatID: 200, Title: "Channel B", Type: domain.ChatTypeChannel},
		})

	if report.Total != 2 || report.Succeeded != 1 || report.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", report)
	}

	failures := report.Failures()
	if len(failures) != 1 || failures[0].ChatID != 200 || failures[0].Outcome != OutcomeForbidden {
		t.Fatalf("unexpected failures: %+v", failures)
	}

	if len(remover.removed) != 1 || remover.removed[0] != 200 {
		t.Fatalf("expected exactly one removal of chat 200, got %v", remover.removed)
	}
}

func TestDispatchNotFoundAlsoEvicts(t *testing.T) {
	sender := &fakeSender{failWith: map[int64]error{200: errGone}}
	remover := &fakeRemover{}
	d := newTestDispatcher(t, sender, WithRemover(remover))

	d.Dispatch(context.Background(), domain.Post{Title: "t"}, targets(100, 200))

	if len(remover.removed) != 1 || remover.removed[0] != 200 {
		t.Fatalf("expected chat 200 evicted, got %v", remover.removed)
	}
}

func TestDispatchTransientFailuresDoNotEvict(t *testing.T) {
	sender := &fakeSender{failWith: map[int64]error{
		100: errFlood,
		200: errInternal,
	}}
	remover := &fakeRemover{}
	d := newTestDispatcher(t, sender, WithRemover(remover))

	report := d.Dispatch(context.Background(), domain.Post{Title: "t"}, targets(100, 200))

	if len(remover.removed) != 0 {
		t.Fatalf("expected no evictions for transient failures, got %v", remover.removed)
	}

	breakdown := report.FailureBreakdown()
	if breakdown[OutcomeRateLimited] != 1 || breakdown[OutcomeUnknown] != 1 {
		t.Fatalf("unexpected breakdown: %v", breakdown)
	}
}

func TestDispatchWithoutRemoverLeavesRegistryAlone(t *testing.T) {
	sender := &fakeSender{failWith: map[int64]error{100: errKicked}}
	d := newTestDispatcher(t, sender)

	report := d.Dispatch(context.Background(), domain.Post{Title: "t"}, targets(100))

	if report.Failed != 1 {
		t.Fatalf("expected one failure, got %+v", report)
	}
}

func TestDispatchRightsCheckSkipsSend(t *testing.T) {
	inner := &fakeSender{rights: map[int64]bool{100: true, 200: false}}
	sender := &rightsSender{fakeSender: inner}
	remover := &fakeRemover{}
	d := newTestDispatcher(t, sender, WithRemover(remover))

	report := d.Dispatch(context.Background(), domain.Post{Title: "t"}, targets(100, 200))

	if len(inner.sent) != 1 || inner.sent[0] != 100 {
		t.Fatalf("expected only chat 100 to be sent to, got %v", inner.sent)
	}

	if report.Results[1].Outcome != OutcomeForbidden {
		t.Fatalf("expected forbidden without send for chat 200, got %+v", report.Results[1])
	}

	if len(remover.removed) != 1 || remover.removed[0] != 200 {
		t.Fatalf("expected rights-denied chat evicted, got %v", remover.removed)
	}
}

func TestDispatchRightsCheckErrorFallsThroughToSend(t *testing.T) {
	inner := &fakeSender{}
	sender := &rightsSender{fakeSender: inner, checkErr: errors.New("check unavailable")}
	d := newTestDispatcher(t, sender)

	report := d.Dispatch(context.Background(), domain.Post{Title: "t"}, targets(100))

	if len(inner.sent) != 1 {
		t.Fatalf("expected send attempt despite check error, got %v", inner.sent)
	}
	if report.Succeeded != 1 {
		t.Fatalf("expected delivery, got %+v", report)
	}
}

func TestDispatchConcurrentWorkersKeepReportOrder(t *testing.T) {
	sender := &fakeSender{failWith: map[int64]error{3: errKicked, 7: errInternal}}
	d := newTestDispatcher(t, sender, WithWorkers(4))

	ids := make([]int64, 0, 20)
	for i := int64(1); i <= 20; i++ {
		ids = append(ids, i)
	}

	report := d.Dispatch(context.Background(), domain.Post{Title: "t"}, targets(ids...))

	if report.Total != 20 || report.Succeeded != 18 || report.Failed != 2 {
		t.Fatalf("unexpected counts: %+v", report)
	}

	for i, res := range report.Results {
		if res.ChatID != ids[i] {
			t.Fatalf("result %d out of order: expected %d, got %d", i, ids[i], res.ChatID)
		}
	}

	if len(sender.sent) != 20 {
		t.Fatalf("expected every target attempted exactly once, got %d attempts", len(sender.sent))
	}
}

func TestReportSummary(t *testing.T) {
	report := Report{
		Total:     3,
		Succeeded: 1,
		Failed:    2,
		Results: []Result{
			{ChatID: 1, Outcome: OutcomeDelivered},
			{ChatID: 2, Outcome: OutcomeForbidden, Reason: "kicked"},
			{ChatID: 3, Outcome: OutcomeRateLimited, Reason: "flood"},
		},
	}

	summary := report.Summary()
	if !strings.Contains(summary, "1/3 delivered") {
		t.Fatalf("expected delivered ratio in summary, got %q", summary)
	}
	if !strings.Contains(summary, "forbidden: 1") || !strings.Contains(summary, "rate_limited: 1") {
		t.Fatalf("expected failure breakdown in summary, got %q", summary)
	}

	clean := Report{Total: 2, Succeeded: 2, Results: []Result{
		{ChatID: 1, Outcome: OutcomeDelivered},
		{ChatID: 2, Outcome: OutcomeDelivered},
	}}
	if !strings.Contains(clean.Summary(), "2/2 delivered") {
		t.Fatalf("unexpected clean summary %q", clean.Summary())
	}
}

func TestNewDispatcherGuards(t *testing.T) {
	if _, err := NewDispatcher(nil, testClassifier); err == nil {
		t.Fatalf("expected error for nil sender")
	}
	if _, err := NewDispatcher(&fakeSender{}, nil); err == nil {
		t.Fatalf("expected error for nil classifier")
	}
}
