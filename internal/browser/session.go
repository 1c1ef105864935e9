// Package browser drives a headless browser for page visits and search,
// gated by the navigation package before any network fetch.
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"webresearch/internal/config"
	"webresearch/internal/logging"
	"webresearch/internal/navigation"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
)

// PageContent is the extracted content of one visited page.
type PageContent struct {
	URL       string            `json:"url"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Session owns one browser instance and its single research page.
type Session struct {
	id         string
	cfg        config.BrowserConfig
	gatekeeper *navigation.Gatekeeper

	mu      sync.Mutex
	browser *rod.Browser
	page    *rod.Page
}

// NewSession creates a session; the browser launches lazily on first use.
func NewSession(cfg config.BrowserConfig, gatekeeper *navigation.Gatekeeper) *Session {
	return &Session{
		id:         uuid.NewString(),
		cfg:        cfg,
		gatekeeper: gatekeeper,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Start launches the browser if it is not already running.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

func (s *Session) startLocked(ctx context.Context) error {
	if s.browser != nil {
		// Verify the connection is still alive
		if _, err := s.browser.Version(); err == nil {
			return nil
		}
		logging.BrowserWarn("stale browser connection, relaunching")
		_ = s.browser.Close()
		s.browser = nil
		s.page = nil
	}

	controlURL, err := launcher.New().Headless(s.cfg.Headless).Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		return fmt.Errorf("failed to open page: %w", err)
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent: s.cfg.UserAgent,
	}); err != nil {
		logging.BrowserWarn("could not set user agent: %v", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.cfg.GetViewportWidth(),
		Height:            s.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1,
	}); err != nil {
		logging.BrowserWarn("could not set viewport: %v", err)
	}

	s.browser = b
	s.page = page
	logging.Browser("session %s started (headless=%v)", s.id, s.cfg.Headless)
	return nil
}

// Navigate drives the page to url after the gatekeeper approves. A false
// return with nil error means navigation was disallowed, not that it failed.
func (s *Session) Navigate(ctx context.Context, rawURL string) (bool, error) {
	target := navigation.NormalizeURL(rawURL)

	if !s.gatekeeper.IsAllowedFiletype(target) {
		logging.Browser("refusing binary download %s", target)
		return false, nil
	}
	ok, err := s.gatekeeper.PrepareNavigation(ctx, target)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.startLocked(ctx); err != nil {
		return false, err
	}

	page := s.page.Context(ctx).Timeout(s.cfg.NavigationTimeout())
	if err := page.Navigate(target); err != nil {
		return false, fmt.Errorf("navigation to %s failed: %w", target, err)
	}
	if err := page.WaitLoad(); err != nil {
		return false, fmt.Errorf("page load for %s failed: %w", target, err)
	}

	logging.Browser("navigated to %s", target)
	return true, nil
}

// VisitPage navigates to url and extracts its content. Disallowed URLs
// return an error so callers can record the omission.
func (s *Session) VisitPage(ctx context.Context, rawURL string) (*PageContent, error) {
	ok, err := s.Navigate(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("navigation to %s not permitted", rawURL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	page := s.page.Context(ctx).Timeout(s.cfg.NavigationTimeout())
	htmlText, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read page HTML: %w", err)
	}

	info, err := page.Info()
	title := ""
	if err == nil {
		title = info.Title
	}

	content := ExtractMainContent(htmlText)
	meta := ExtractMetadata(htmlText)
	if title == "" {
		title = meta["title"]
	}

	return &PageContent{
		URL:       navigation.NormalizeURL(rawURL),
		Title:     title,
		Content:   content,
		Metadata:  meta,
		Timestamp: time.Now(),
	}, nil
}

// Screenshot captures the current page into dir and returns the file path.
func (s *Session) Screenshot(ctx context.Context, dir string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return "", fmt.Errorf("no active page")
	}

	data, err := s.page.Context(ctx).Screenshot(true, nil)
	if err != nil {
		return "", fmt.Errorf("screenshot failed: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshots dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("page_%s.png", time.Now().Format("20060102_150405")))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}

	logging.Browser("screenshot saved to %s", path)
	return path, nil
}

// Close shuts the browser down.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	s.browser = nil
	s.page = nil
	logging.Browser("session %s closed", s.id)
	return err
}
