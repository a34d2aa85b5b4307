package retry

import (
	"hash/fnv"
	"time"
)

// Policy gates retries of a persisted action. Unlike Do, which retries
// inline, a Policy only answers "may this action be attempted now?" for
// work that is re-examined on a schedule.
type Policy struct {
	// Interval is the minimum wait after a failed attempt.
	Interval time.Duration

	// Jitter, when positive, adds a per-key offset in [0, Jitter] so that
	// many actions failing together do not all become eligible at the
	// same instant. The offset is deterministic for a key.
	Jitter time.Duration
}

// NextAttempt returns the earliest time an action that failed at
// failedAt may be attempted again.
func (p Policy) NextAttempt(failedAt time.Time, key string) time.Time {
	return failedAt.Add(p.Interval + p.offset(key))
}

// Eligible reports whether an attempt may run at now. An action that has
// never failed is always eligible.
func (p Policy) Eligible(failedAt *time.Time, now time.Time, key string) bool {
	if failedAt == nil {
		return true
	}
	return !now.Before(p.NextAttempt(*failedAt, key))
}

func (p Policy) offset(key string) time.Duration {
	if p.Jitter <= 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return time.Duration(h.Sum64() % uint64(p.Jitter+1))
}
