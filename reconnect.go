package aura

import "time"

// BackoffPolicy decides whether and when the session retries after a failure.
// Delays grow as 2^attempt units, capped, and the attempt count is bounded.
type BackoffPolicy struct {
	MaxAttempts int
	Unit        time.Duration
	Cap         time.Duration
}

func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{
		MaxAttempts: 3,
		Unit:        time.Second,
		Cap:         30 * time.Second,
	}
}

// Delay returns the wait before reconnect attempt n (1-based):
// min(2^n, cap) units.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Unit
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.Cap > 0 && d >= p.Cap {
			return p.Cap
		}
	}
	return d
}

// Exhausted reports whether the bound has been reached. Exceeding it is
// terminal: no further automatic retries until an explicit Start.
func (p BackoffPolicy) Exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}

// reconnectState tracks the per-session retry bookkeeping. The timer handle
// is single-shot and cancelled on Stop or on a fresh Start.
type reconnectState struct {
	attempts int
	timer    *time.Timer
}

func (r *reconnectState) cancelTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
