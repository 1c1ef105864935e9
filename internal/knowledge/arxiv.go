package knowledge

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const defaultArxivAPI = "http://export.arxiv.org/api/query"

// arXiv's API terms ask for at least a 3 second gap between requests.
const arxivDelay = 3 * time.Second

// ArxivSource queries the arXiv Atom API for paper metadata and abstracts.
type ArxivSource struct {
	apiURL     string
	userAgent  string
	delay      time.Duration
	httpClient *http.Client
	mu         sync.Mutex
	lastQuery  time.Time
}

// NewArxivSource creates the source with the public export endpoint.
func NewArxivSource(userAgent string, timeout time.Duration) *ArxivSource {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ArxivSource{
		apiURL:    defaultArxivAPI,
		userAgent: userAgent,
		delay:     arxivDelay,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the registry name.
func (s *ArxivSource) Name() string { return "arxiv" }

// Close is a no-op; the source holds no persistent connection.
func (s *ArxivSource) Close() error { return nil }

type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID      string `xml:"id"`
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Authors []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
	Links []struct {
		Rel   string `xml:"rel,attr"`
		Href  string `xml:"href,attr"`
		Title string `xml:"title,attr"`
	} `xml:"link"`
	DOI string `xml:"doi"`
}

// Query searches arXiv across all fields.
func (s *ArxivSource) Query(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = 3
	}
	if err := s.pace(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"search_query": {"all:" + query},
		"start":        {"0"},
		"max_results":  {fmt.Sprint(maxResults)},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", s.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse arxiv feed: %w", err)
	}

	results := make([]Result, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		abstract := strings.TrimSpace(entry.Summary)

		meta := map[string]string{
			"abstract": abstract,
		}
		if names := authorNames(entry); names != "" {
			meta["authors"] = names
		}
		if cats := categoryTerms(entry); cats != "" {
			meta["categories"] = cats
		}
		if entry.DOI != "" {
			meta["doi"] = entry.DOI
		}

		pageURL := strings.TrimSpace(entry.ID)
		for _, link := range entry.Links {
			switch {
			case link.Title == "pdf":
				meta["pdf_url"] = link.Href
			case link.Rel == "alternate" && link.Href != "":
				pageURL = link.Href
			}
		}

		results = append(results, Result{
			Title:    strings.Join(strings.Fields(entry.Title), " "),
			URL:      pageURL,
			Snippet:  truncateSnippet(abstract, 300),
			Content:  abstract,
			Source:   "arxiv",
			Metadata: meta,
		})
		if len(results) >= maxResults {
			break
		}
	}
	return results, nil
}

// pace enforces the mandatory inter-request delay.
func (s *ArxivSource) pace(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if remaining := s.delay - time.Since(s.lastQuery); remaining > 0 {
		timer := time.NewTimer(remaining)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	s.lastQuery = time.Now()
	return nil
}

func authorNames(e arxivEntry) string {
	names := make([]string, 0, len(e.Authors))
	for _, a := range e.Authors {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}

func categoryTerms(e arxivEntry) string {
	terms := make([]string, 0, len(e.Categories))
	for _, c := range e.Categories {
		if c.Term != "" {
			terms = append(terms, c.Term)
		}
	}
	return strings.Join(terms, ", ")
}

func truncateSnippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
