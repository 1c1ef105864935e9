package navigation

import (
	"context"
	"net/url"
	"path"
	"strings"

	"webresearch/internal/config"
	"webresearch/internal/logging"
)

// SiteRules restricts which paths may be visited on a matching site. When
// Allowed is non-empty, only paths under one of its prefixes pass.
type SiteRules struct {
	Allowed    []string
	Disallowed []string
}

// DefaultSiteRules returns the built-in per-site path restrictions.
func DefaultSiteRules() map[string]SiteRules {
	return map[string]SiteRules{
		"wikipedia.org": {
			Allowed:    []string{"/wiki/"},
			Disallowed: []string{"/wiki/Special:", "/wiki/Talk:", "/wiki/User:"},
		},
	}
}

// blockedExtensions are filetypes a research visit should never download.
var blockedExtensions = map[string]bool{
	".exe": true, ".msi": true, ".dmg": true, ".pkg": true,
	".deb": true, ".rpm": true, ".apk": true, ".iso": true,
	".zip": true, ".tar": true, ".gz": true, ".7z": true, ".rar": true,
	".bin": true,
}

// Gatekeeper composes the rate limiter, robots checker, and site rules into
// a single navigation decision.
type Gatekeeper struct {
	limiter       *RateLimiter
	robots        *RobotsChecker
	siteRules     map[string]SiteRules
	userAgent     string
	respectRobots bool
}

// NewGatekeeper wires a gatekeeper from config with the default site rules.
func NewGatekeeper(cfg *config.Config) *Gatekeeper {
	return &Gatekeeper{
		limiter:       NewRateLimiter(cfg.RateLimit),
		robots:        NewRobotsChecker(cfg.Knowledge.RobotsCacheTTL(), cfg.Browser.NavigationTimeout()),
		siteRules:     DefaultSiteRules(),
		userAgent:     cfg.Browser.UserAgent,
		respectRobots: cfg.Browser.RespectRobotsTxt,
	}
}

// SetSiteRules replaces the static path rules.
func (g *Gatekeeper) SetSiteRules(rules map[string]SiteRules) {
	g.siteRules = rules
}

// CanNavigate reports whether url may be visited: it must have a scheme and
// host, pass robots.txt when compliance is on, and satisfy any matching
// site rules.
func (g *Gatekeeper) CanNavigate(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		logging.NavigationDebug("rejecting malformed URL %q", rawURL)
		return false
	}

	if g.respectRobots && !g.robots.CanFetch(ctx, rawURL, g.userAgent) {
		logging.Navigation("robots.txt disallows %s", rawURL)
		return false
	}

	domain := DomainOf(rawURL)
	for site, rules := range g.siteRules {
		if !strings.Contains(domain, site) {
			continue
		}
		p := u.Path
		for _, prefix := range rules.Disallowed {
			if strings.HasPrefix(p, prefix) {
				logging.Navigation("site rules disallow %s (prefix %s)", rawURL, prefix)
				return false
			}
		}
		if len(rules.Allowed) > 0 {
			allowed := false
			for _, prefix := range rules.Allowed {
				if strings.HasPrefix(p, prefix) {
					allowed = true
					break
				}
			}
			if !allowed {
				logging.Navigation("site rules restrict %s to %v", rawURL, rules.Allowed)
				return false
			}
		}
	}

	return true
}

// PrepareNavigation checks navigability and, only when allowed, applies
// rate limiting. A rejected URL never waits.
func (g *Gatekeeper) PrepareNavigation(ctx context.Context, rawURL string) (bool, error) {
	if !g.CanNavigate(ctx, rawURL) {
		return false, nil
	}
	if err := g.limiter.Acquire(ctx, rawURL); err != nil {
		return false, err
	}
	return true, nil
}

// IsAllowedFiletype rejects URLs pointing at binary downloads.
func (g *Gatekeeper) IsAllowedFiletype(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	ext := strings.ToLower(path.Ext(u.Path))
	return !blockedExtensions[ext]
}

// NormalizeURL canonicalizes a URL: ensures a scheme, collapses repeated
// path separators, strips the trailing slash (except on the root path), and
// drops any fragment. Total: unparseable input is returned unchanged.
func NormalizeURL(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return rawURL
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return rawURL
	}

	p := u.Path
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	u.Path = p
	u.Fragment = ""

	return u.String()
}

// SameDomain reports whether two URLs share a domain, ignoring a www
// prefix and ports.
func SameDomain(a, b string) bool {
	da, db := DomainOf(a), DomainOf(b)
	return da != "" && da == db
}
