// Package ratelimit guards overlay_refresh with a process-wide cooldown,
// per spec.md §4.6.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultCooldown is REFRESH_COOLDOWN_SEC from spec.md §4.6.
const DefaultCooldown = 30 * time.Second

// Limiter enforces a single cooldown window shared by every refresh call in
// the process. The cooldown timestamp is updated on acceptance, not
// completion, so a slow refresh does not extend the window.
type Limiter struct {
	cooldown time.Duration

	mu           sync.Mutex
	lastAccepted time.Time
	hasAccepted  bool
	now          func() time.Time
}

// New constructs a Limiter with the given cooldown (DefaultCooldown if zero).
func New(cooldown time.Duration) *Limiter {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Limiter{cooldown: cooldown, now: time.Now}
}

// Try reports whether a refresh may proceed now. If allowed, it records the
// acceptance timestamp immediately so a concurrent or subsequent call
// within the cooldown is rejected regardless of how long this refresh
// takes to complete. If rejected, retryAfterSec is the whole seconds
// remaining in the cooldown window.
func (l *Limiter) Try() (allowed bool, retryAfterSec int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.hasAccepted {
		elapsed := now.Sub(l.lastAccepted)
		if elapsed < l.cooldown {
			remaining := l.cooldown - elapsed
			secs := int(remaining / time.Second)
			if remaining%time.Second != 0 {
				secs++
			}
			return false, secs
		}
	}

	l.lastAccepted = now
	l.hasAccepted = true
	return true, 0
}
