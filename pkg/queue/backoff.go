package queue

import "time"

// BackoffPolicy computes how long a failed task stays invisible before the next attempt.
// attempt is the number of failures recorded before the current one (0 for the first failure).
type BackoffPolicy interface {
	Delay(attempt int8) time.Duration
}

// DefaultBackoffBase is used when ExponentialBackoff.Base is zero.
const DefaultBackoffBase = time.Second

// maxBackoffShift keeps base<<shift from overflowing time.Duration for sane bases.
const maxBackoffShift = 30

// ExponentialBackoff doubles the delay per attempt: Base * 2^attempt.
// No jitter: retry delays are deterministic so they stay strictly increasing.
type ExponentialBackoff struct {
	Base time.Duration
}

func (b ExponentialBackoff) Delay(attempt int8) time.Duration {
	base := b.Base
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxBackoffShift {
		attempt = maxBackoffShift
	}
	return base << uint(attempt)
}

// DefaultBackoff is the policy storages use unless configured otherwise.
func DefaultBackoff() BackoffPolicy {
	return ExponentialBackoff{Base: DefaultBackoffBase}
}
