package broadcast

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"tg_broadcast_bot/internal/domain"
	"tg_broadcast_bot/internal/logging"
)

// Sender delivers one rendered post to one chat.
type Sender interface {
	SendPost(ctx context.Context, chatID int64, post domain.Post) error
}

// RightsChecker is an optional capability of a Sender: verify the bot can
// still post in a chat before spending a send on it. A definite "no" skips
// the send; check errors fall through to an attempted send, because rights
// can change between check and send anyway.
type RightsChecker interface {
	CheckPostingRights(ctx context.Context, chatID int64) (bool, error)
}

// Remover lets the dispatcher drop chats that reported the bot gone.
type Remover interface {
	Remove(chatID int64) error
}

// Classifier maps a transport error to an Outcome. A nil error is never
// passed in.
type Classifier func(err error) Outcome

// Dispatcher fans one post out to a snapshot of targets. Attempts are
// independent: one target's failure never aborts the rest of the run, and a
// failed attempt is final for that run (operators re-run the wizard).
type Dispatcher struct {
	sender   Sender
	classify Classifier
	remover  Remover
	limiter  *rate.Limiter
	workers  int
	logger   *logrus.Entry

	// One dispatch run at a time; concurrent calls queue here.
	runMu sync.Mutex
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithRemover enables self-healing: targets that report the bot removed are
// dropped from the registry after the run.
func WithRemover(remover Remover) Option {
	return func(d *Dispatcher) {
		d.remover = remover
	}
}

// WithWorkers bounds send concurrency within a run.
func WithWorkers(workers int) Option {
	return func(d *Dispatcher) {
		if workers > 0 {
			d.workers = workers
		}
	}
}

// WithRate caps send attempts per second across all workers.
func WithRate(perSecond float64) Option {
	return func(d *Dispatcher) {
		if perSecond > 0 {
			d.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithLogger attaches a logger entry.
func WithLogger(logger *logrus.Entry) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher constructs a Dispatcher over the given sender and outcome
// classifier.
func NewDispatcher(sender Sender, classify Classifier, opts ...Option) (*Dispatcher, error) {
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	if classify == nil {
		return nil, errors.New("classifier is required")
	}

	d := &Dispatcher{
		sender:   sender,
		classify: classify,
		workers:  1,
		logger:   logging.Logger(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// Dispatch attempts exactly one send per target and aggregates the outcomes.
// Report order equals target order regardless of worker scheduling. An empty
// target set returns a zero report without touching the transport.
func (d *Dispatcher) Dispatch(ctx context.Context, post domain.Post, targets []domain.ChatRecord) Report {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	report := Report{Total: len(targets)}
	if len(targets) == 0 {
		report.Results = []Result{}
		return report
	}

	d.logger.WithFields(logging.Fields{
		"event":   "broadcast_start",
		"targets": len(targets),
		"workers": d.workers,
	}).Info("starting broadcast run")

	results := make([]Result, len(targets))

	workers := d.workers
	if workers > len(targets) {
		workers = len(targets)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = d.attempt(ctx, post, targets[i])
			}
		}()
	}

	for i := range targets {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	report.Results = results
	for _, res := range results {
		if res.Outcome.Failed() {
			report.Failed++
		} else {
			report.Succeeded++
		}
	}

	d.evict(report)

	d.logger.WithFields(logging.Fields{
		"event":     "broadcast_done",
		"total":     report.Total,
		"delivered": report.Succeeded,
		"failed":    report.Failed,
	}).Info(report.Summary())

	return report
}

// attempt performs the rights check and the single send for one target.
func (d *Dispatcher) attempt(ctx context.Context, post domain.Post, target domain.ChatRecord) Result {
	res := Result{
		ChatID: target.ChatID,
		Title:  target.Title,
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			res.Outcome = OutcomeUnknown
			res.Reason = err.Error()
			return res
		}
	}

	if checker, ok := d.sender.(RightsChecker); ok {
		allowed, err := checker.CheckPostingRights(ctx, target.ChatID)
		if err == nil && !allowed {
			res.Outcome = OutcomeForbidden
			res.Reason = "bot lacks posting rights"
			return res
		}
	}

	if err := d.sender.SendPost(ctx, target.ChatID, post); err != nil {
		res.Outcome = d.classify(err)
		res.Reason = err.Error()

		d.logger.WithFields(logging.Fields{
			"event":   "broadcast_send_failed",
			"chat_id": target.ChatID,
			"outcome": string(res.Outcome),
			"error":   err.Error(),
		}).Warn("send attempt failed")

		return res
	}

	res.Outcome = OutcomeDelivered
	return res
}

// evict removes chats whose outcome says the bot is gone, once per target.
func (d *Dispatcher) evict(report Report) {
	if d.remover == nil {
		return
	}

	for _, res := range report.Results {
		if !res.Outcome.Evictable() {
			continue
		}

		if err := d.remover.Remove(res.ChatID); err != nil {
			d.logger.WithFields(logging.Fields{
				"event":   "broadcast_evict_failed",
				"chat_id": res.ChatID,
				"error":   err.Error(),
			}).Error("failed to unregister unreachable chat")
			continue
		}

		d.logger.WithFields(logging.Fields{
			"event":   "broadcast_evicted",
			"chat_id": res.ChatID,
			"outcome": string(res.Outcome),
		}).Info("unregistered unreachable chat")
	}
}
