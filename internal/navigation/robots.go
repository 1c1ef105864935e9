package navigation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"webresearch/internal/logging"

	"github.com/temoto/robotstxt"
)

// robotsEntry caches one domain's parsed ruleset. A nil data means the
// fetch failed and the domain is treated as allow-all until the TTL lapses.
type robotsEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

// RobotsChecker fetches and caches robots.txt per domain. Every failure
// mode is fail-open: a site that cannot be checked is treated as
// permissive, which favors availability over strict compliance on
// misconfigured hosts.
type RobotsChecker struct {
	ttl        time.Duration
	httpClient *http.Client

	mu    sync.Mutex
	cache map[string]*robotsEntry
}

// NewRobotsChecker creates a checker with the given cache TTL.
func NewRobotsChecker(ttl time.Duration, fetchTimeout time.Duration) *RobotsChecker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	return &RobotsChecker{
		ttl: ttl,
		httpClient: &http.Client{
			Timeout: fetchTimeout,
		},
		cache: make(map[string]*robotsEntry),
	}
}

// CanFetch reports whether userAgent may fetch rawURL per the target
// domain's robots.txt. Malformed URLs and fetch failures return true.
func (r *RobotsChecker) CanFetch(ctx context.Context, rawURL, userAgent string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return true
	}

	entry := r.lookup(ctx, u)
	if entry.data == nil {
		return true
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	return entry.data.TestAgent(path, userAgent)
}

// lookup returns the cached entry for u's domain, fetching when absent or
// stale.
func (r *RobotsChecker) lookup(ctx context.Context, u *url.URL) *robotsEntry {
	key := u.Host

	r.mu.Lock()
	if e, ok := r.cache[key]; ok && time.Since(e.fetchedAt) < r.ttl {
		r.mu.Unlock()
		return e
	}
	r.mu.Unlock()

	entry := &robotsEntry{fetchedAt: time.Now()}
	if data, err := r.fetch(ctx, u); err != nil {
		logging.NavigationWarn("robots.txt for %s unavailable, failing open: %v", key, err)
	} else {
		entry.data = data
	}

	r.mu.Lock()
	r.cache[key] = entry
	r.mu.Unlock()
	return entry
}

func (r *RobotsChecker) fetch(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)

	req, err := http.NewRequestWithContext(ctx, "GET", robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}

	logging.NavigationDebug("robots.txt cached for %s (%d bytes)", u.Host, len(body))
	return data, nil
}

// CacheSize returns the number of cached domains.
func (r *RobotsChecker) CacheSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}
