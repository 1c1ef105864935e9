// Package navigation decides whether and when a URL may be fetched. It
// combines per-domain rate limiting, robots.txt compliance, and static
// per-site path rules into one gatekeeper.
package navigation

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"webresearch/internal/config"
	"webresearch/internal/logging"
)

const rateWindow = 60 * time.Second

// domainState holds the request history for one domain. The lock covers the
// full prune/wait/record sequence so concurrent callers against the same
// domain are serialized; different domains proceed in parallel.
type domainState struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// RateLimiter enforces a per-domain requests-per-minute ceiling plus a
// minimum delay between consecutive requests to the same domain.
type RateLimiter struct {
	requestsPerMinute int
	minDelay          time.Duration

	mu      sync.Mutex
	domains map[string]*domainState
}

// NewRateLimiter creates a rate limiter from config.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 10
	}
	return &RateLimiter{
		requestsPerMinute: rpm,
		minDelay:          cfg.DelayBetweenRequests(),
		domains:           make(map[string]*domainState),
	}
}

// Acquire blocks until a request to rawURL's domain is permissible, then
// records it. It never fails on its own; the only error is a cancelled
// context. URLs with no parseable host share a single "" domain bucket.
func (r *RateLimiter) Acquire(ctx context.Context, rawURL string) error {
	domain := DomainOf(rawURL)
	state := r.state(domain)

	state.mu.Lock()
	defer state.mu.Unlock()

	now := time.Now()
	state.timestamps = pruneWindow(state.timestamps, now)

	if len(state.timestamps) >= r.requestsPerMinute {
		oldest := state.timestamps[0]
		wait := rateWindow - now.Sub(oldest)
		if wait > 0 {
			logging.Navigation("rate limit reached for %s, waiting %v", domain, wait)
			if err := sleepCtx(ctx, wait); err != nil {
				return err
			}
			now = time.Now()
			state.timestamps = pruneWindow(state.timestamps, now)
		}
	}

	if r.minDelay > 0 && len(state.timestamps) > 0 {
		last := state.timestamps[len(state.timestamps)-1]
		if remaining := r.minDelay - now.Sub(last); remaining > 0 {
			logging.NavigationDebug("pacing %s, waiting %v", domain, remaining)
			if err := sleepCtx(ctx, remaining); err != nil {
				return err
			}
			now = time.Now()
		}
	}

	state.timestamps = append(state.timestamps, now)
	return nil
}

// state returns the domain's record, creating it on first use.
func (r *RateLimiter) state(domain string) *domainState {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.domains[domain]
	if !ok {
		s = &domainState{}
		r.domains[domain] = s
	}
	return s
}

// WindowSize returns how many requests to domain are inside the trailing
// window right now.
func (r *RateLimiter) WindowSize(domain string) int {
	state := r.state(domain)
	state.mu.Lock()
	defer state.mu.Unlock()
	state.timestamps = pruneWindow(state.timestamps, time.Now())
	return len(state.timestamps)
}

func pruneWindow(ts []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-rateWindow)
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// DomainOf extracts the lowercased host (without port or www prefix) from a
// URL. Returns "" when no host can be parsed.
func DomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
