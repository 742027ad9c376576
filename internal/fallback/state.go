package fallback

import (
	"time"
)

// Status is the availability of a single model.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusRateLimited Status = "rate_limited"
	StatusFailed      Status = "failed"
)

// Outcome is a call result as seen by the state machine.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeNotAuthorized
	OutcomeUnavailable
	OutcomeRateLimited
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotAuthorized:
		return "not_authorized"
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeRateLimited:
		return "rate_limited"
	default:
		return "failure"
	}
}

// ModelState is the per-model record kept by the Manager.
// A zero time means "never". RateLimitedAt is non-zero exactly when Status is rate_limited.
type ModelState struct {
	Status        Status    `json:"status"`
	LastAttempt   time.Time `json:"lastAttempt"`
	Failures      int       `json:"failures"`
	RateLimitedAt time.Time `json:"rateLimitedAt"`
}

func newModelState() ModelState {
	return ModelState{Status: StatusAvailable}
}

// Apply returns the state after outcome o was observed at now.
// Every failure counts toward Failures. A failed model stays failed until Reset;
// there is no failed -> rate_limited edge.
func (s ModelState) Apply(o Outcome, now time.Time, maxRetries int) ModelState {
	s.LastAttempt = now

	if o == OutcomeSuccess {
		s.Status = StatusAvailable
		s.Failures = 0
		s.RateLimitedAt = time.Time{}
		return s
	}

	s.Failures++
	if s.Status == StatusFailed {
		return s
	}

	switch o {
	case OutcomeNotAuthorized, OutcomeUnavailable:
		s.Status = StatusFailed
		s.RateLimitedAt = time.Time{}
	case OutcomeRateLimited:
		s.Status = StatusRateLimited
		s.RateLimitedAt = now
	default:
		if s.Failures >= maxRetries {
			s.Status = StatusFailed
			s.RateLimitedAt = time.Time{}
		}
	}
	return s
}

// CoolDown makes a rate limited model available again once cooldown has passed since
// it was throttled. The second result reports whether the state changed.
func (s ModelState) CoolDown(now time.Time, cooldown time.Duration) (ModelState, bool) {
	if s.Status != StatusRateLimited || s.RateLimitedAt.IsZero() {
		return s, false
	}
	if now.Sub(s.RateLimitedAt) < cooldown {
		return s, false
	}
	return s.Reset(), true
}

// Reset returns the state to available with no failures.
func (s ModelState) Reset() ModelState {
	s.Status = StatusAvailable
	s.Failures = 0
	s.RateLimitedAt = time.Time{}
	return s
}

// shouldRotate reports whether the current model has to change after o moved
// the state to next.
func shouldRotate(o Outcome, next ModelState) bool {
	switch o {
	case OutcomeSuccess:
		return false
	case OutcomeFailure:
		return next.Status != StatusAvailable
	}
	return true
}
