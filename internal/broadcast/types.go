// Package broadcast delivers one composed post to every tracked chat and
// reports per-chat outcomes.
package broadcast

import (
	"fmt"
	"strings"
)

// Outcome classifies one send attempt.
type Outcome string

const (
	OutcomeDelivered   Outcome = "delivered"
	OutcomeForbidden   Outcome = "forbidden"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeUnknown     Outcome = "unknown"
)

// Failed reports whether the outcome counts against the run.
func (o Outcome) Failed() bool {
	return o != OutcomeDelivered
}

// Evictable reports whether the outcome is strong evidence the chat no
// longer hosts the bot. Rate limits and unknown errors are transient and
// never evict.
func (o Outcome) Evictable() bool {
	return o == OutcomeForbidden || o == OutcomeNotFound
}

// Result is one target's outcome within a dispatch run.
type Result struct {
	ChatID  int64
	Title   string
	Outcome Outcome
	Reason  string // failure detail, empty when delivered
}

// Report aggregates a dispatch run. Results follow the target snapshot
// order; every target appears exactly once.
type Report struct {
	Total     int
	Succeeded int
	Failed    int
	Results   []Result
}

// Failures returns the failed results in run order.
func (r Report) Failures() []Result {
	out := make([]Result, 0, r.Failed)
	for _, res := range r.Results {
		if res.Outcome.Failed() {
			out = append(out, res)
		}
	}
	return out
}

// FailureBreakdown counts failed results per outcome kind.
func (r Report) FailureBreakdown() map[Outcome]int {
	breakdown := make(map[Outcome]int)
	for _, res := range r.Results {
		if res.Outcome.Failed() {
			breakdown[res.Outcome]++
		}
	}
	return breakdown
}

// Summary renders a one-line operator summary, suitable for logs.
func (r Report) Summary() string {
	if r.Failed == 0 {
		return fmt.Sprintf("broadcast complete: %d/%d delivered", r.Succeeded, r.Total)
	}

	parts := make([]string, 0, 4)
	for _, outcome := range []Outcome{OutcomeForbidden, OutcomeNotFound, OutcomeRateLimited, OutcomeUnknown} {
		if n := r.FailureBreakdown()[outcome]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", outcome, n))
		}
	}

	return fmt.Sprintf("broadcast complete: %d/%d delivered, %d failed (%s)",
		r.Succeeded, r.Total, r.Failed, strings.Join(parts, ", "))
}
