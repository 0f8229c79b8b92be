package gdsync

import "time"

// RetryPolicy computes backoff delays for per-asset retries. Delays double
// from BaseDelay up to MaxDelay. The zero value disables waiting, which is
// what tests use.
type RetryPolicy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy matches the operational defaults: 1s, 2s, 4s... capped
// at 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// Delay returns how long to wait before the given attempt. Attempt numbering
// starts at 1 for the first retry.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 || attempt <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
