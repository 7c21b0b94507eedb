package fetch

import (
	"time"

	"github.com/Sriram-PR/review-scraper/pkg/config"
)

// Signal is what one fetch attempt produced, as seen by the retry policy
type Signal int

const (
	SignalOK               Signal = iota // ALLOWED 200
	SignalBlocked                        // block detector said BLOCKED
	SignalTimeout                        // transport timeout
	SignalNetwork                        // any other transport failure
	SignalNotFound                       // 404
	SignalUnexpectedStatus               // ALLOWED, but neither 200 nor 404
)

func (s Signal) String() string {
	switch s {
	case SignalOK:
		return "ok"
	case SignalBlocked:
		return "blocked"
	case SignalTimeout:
		return "timeout"
	case SignalNetwork:
		return "network"
	case SignalNotFound:
		return "not_found"
	case SignalUnexpectedStatus:
		return "unexpected_status"
	}
	return "unknown"
}

// ActionKind tells the fetch loop what to do next
type ActionKind int

const (
	ActionDone          ActionKind = iota // Return the body
	ActionWait                            // Sleep Delay, then retry
	ActionRotateAndWait                   // Switch identity, sleep Delay, then retry
	ActionGiveUp                          // Return Failed
	ActionNotFound                        // Return NotFound
)

// Action is the scheduler's decision for one attempt
type Action struct {
	Kind  ActionKind
	Delay time.Duration
}

// RetryScheduler maps (attempt, signal) to the next action.
// Backoff is linear in the attempt count and has no jitter.
type RetryScheduler struct {
	maxRetries     int
	afterBlock     time.Duration
	timeoutBackoff time.Duration
	networkBackoff time.Duration
}

// NewRetryScheduler builds a scheduler from the retry limit and backoff bases
func NewRetryScheduler(limits config.LimitsConfig, delays config.DelaysConfig) *RetryScheduler {
	return &RetryScheduler{
		maxRetries:     limits.MaxRetries,
		afterBlock:     delays.AfterBlock,
		timeoutBackoff: delays.TimeoutBackoff,
		networkBackoff: delays.NetworkBackoff,
	}
}

// Next returns the action for the given zero-based attempt and its signal
func (s *RetryScheduler) Next(attempt int, sig Signal) Action {
	switch sig {
	case SignalOK:
		return Action{Kind: ActionDone}
	case SignalNotFound:
		return Action{Kind: ActionNotFound}
	case SignalUnexpectedStatus:
		return Action{Kind: ActionGiveUp}
	}

	if attempt >= s.maxRetries {
		return Action{Kind: ActionGiveUp}
	}
	factor := time.Duration(attempt + 1)

	switch sig {
	case SignalBlocked:
		return Action{Kind: ActionRotateAndWait, Delay: s.afterBlock * factor}
	case SignalTimeout:
		return Action{Kind: ActionWait, Delay: s.timeoutBackoff * factor}
	case SignalNetwork:
		return Action{Kind: ActionWait, Delay: s.networkBackoff * factor}
	}
	return Action{Kind: ActionGiveUp}
}

// MaxRetries returns the configured retry budget
func (s *RetryScheduler) MaxRetries() int {
	return s.maxRetries
}
