package service

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/sshdeck/sshdeck/internal/errors"
)

// failureEntry tracks one key's recent failures and its lock, if any.
type failureEntry struct {
	failures    []time.Time
	lockedUntil time.Time
}

// LoginFailureLimiter implements FailureLimiter with a sliding window per
// key. Keys are opaque; callers namespace them per flow, e.g. the login
// path keys on the client-address/account pair so one address hammering a
// name locks out that address, not the account.
type LoginFailureLimiter struct {
	mu      sync.Mutex
	entries map[string]*failureEntry

	window      time.Duration
	maxFailures int
	lock        time.Duration
}

func NewFailureLimiter(window time.Duration, maxFailures int, lock time.Duration) *LoginFailureLimiter {
	return &LoginFailureLimiter{
		entries:     make(map[string]*failureEntry),
		window:      window,
		maxFailures: maxFailures,
		lock:        lock,
	}
}

func (l *LoginFailureLimiter) Check(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		return nil
	}

	now := time.Now()
	if now.Before(entry.lockedUntil) {
		remaining := int(entry.lockedUntil.Sub(now).Round(time.Second).Seconds())
		if remaining < 1 {
			remaining = 1
		}
		return &apperrors.RateLimitedError{RemainingSeconds: remaining}
	}
	return nil
}

func (l *LoginFailureLimiter) RecordFailure(key string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		entry = &failureEntry{}
		l.entries[key] = entry
	}

	// Drop failures that slid out of the window.
	cutoff := now.Add(-l.window)
	kept := entry.failures[:0]
	for _, ts := range entry.failures {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	entry.failures = append(kept, now)

	if len(entry.failures) >= l.maxFailures {
		entry.lockedUntil = now.Add(l.lock)
		entry.failures = entry.failures[:0]
	}
}

func (l *LoginFailureLimiter) RecordSuccess(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// Run prunes idle entries until the context is canceled. An entry is idle
// when its lock elapsed and its failures all slid out of the window.
func (l *LoginFailureLimiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			l.prune(now)
		}
	}
}

func (l *LoginFailureLimiter) prune(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	for key, entry := range l.entries {
		if now.Before(entry.lockedUntil) {
			continue
		}

		live := false
		for _, ts := range entry.failures {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.entries, key)
		}
	}
}
