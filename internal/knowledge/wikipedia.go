package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"webresearch/internal/logging"
)

const defaultWikipediaAPI = "https://en.wikipedia.org/w/api.php"

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// WikipediaSource queries the MediaWiki API: a search pass for matching
// titles, then an extracts pass for intro text, categories, and links.
type WikipediaSource struct {
	apiURL     string
	userAgent  string
	httpClient *http.Client
	mu         sync.Mutex
	lastQuery  time.Time
}

// NewWikipediaSource creates the source with the public API endpoint.
func NewWikipediaSource(userAgent string, timeout time.Duration) *WikipediaSource {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WikipediaSource{
		apiURL:    defaultWikipediaAPI,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the registry name.
func (s *WikipediaSource) Name() string { return "wikipedia" }

// Close is a no-op; the source holds no persistent connection.
func (s *WikipediaSource) Close() error { return nil }

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
			PageID  int    `json:"pageid"`
		} `json:"search"`
	} `json:"query"`
}

type wikiExtractResponse struct {
	Query struct {
		Pages map[string]struct {
			Title      string `json:"title"`
			Extract    string `json:"extract"`
			Categories []struct {
				Title string `json:"title"`
			} `json:"categories"`
			Links []struct {
				Title string `json:"title"`
			} `json:"links"`
		} `json:"pages"`
	} `json:"query"`
}

// Query searches Wikipedia and enriches the top hits with article intros.
func (s *WikipediaSource) Query(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = 2
	}
	s.pace()

	searchParams := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {fmt.Sprint(maxResults)},
		"format":   {"json"},
	}

	var search wikiSearchResponse
	if err := s.getJSON(ctx, searchParams, &search); err != nil {
		return nil, fmt.Errorf("wikipedia search failed: %w", err)
	}
	if len(search.Query.Search) == 0 {
		return nil, nil
	}

	titles := make([]string, 0, len(search.Query.Search))
	for _, hit := range search.Query.Search {
		titles = append(titles, hit.Title)
	}

	extractParams := url.Values{
		"action":      {"query"},
		"prop":        {"extracts|categories|links"},
		"titles":      {strings.Join(titles, "|")},
		"exintro":     {"1"},
		"explaintext": {"1"},
		"cllimit":     {"10"},
		"pllimit":     {"10"},
		"format":      {"json"},
	}

	var extracts wikiExtractResponse
	if err := s.getJSON(ctx, extractParams, &extracts); err != nil {
		// Search alone is still useful; fall back to snippets
		logging.KnowledgeWarn("wikipedia extracts failed, using snippets: %v", err)
	}

	extractByTitle := make(map[string]Result)
	for _, page := range extracts.Query.Pages {
		meta := make(map[string]string)
		if cats := titleList(page.Categories); cats != "" {
			meta["categories"] = cats
		}
		if links := titleList(page.Links); links != "" {
			meta["links"] = links
		}
		extractByTitle[page.Title] = Result{Content: page.Extract, Metadata: meta}
	}

	results := make([]Result, 0, len(search.Query.Search))
	for _, hit := range search.Query.Search {
		r := Result{
			Title:   hit.Title,
			URL:     "https://en.wikipedia.org/wiki/" + url.PathEscape(strings.ReplaceAll(hit.Title, " ", "_")),
			Snippet: htmlTagPattern.ReplaceAllString(hit.Snippet, ""),
			Source:  "wikipedia",
		}
		if enriched, ok := extractByTitle[hit.Title]; ok {
			r.Content = enriched.Content
			r.Metadata = enriched.Metadata
		}
		results = append(results, r)
		if len(results) >= maxResults {
			break
		}
	}
	return results, nil
}

// pace keeps at least one second between API round trips.
func (s *WikipediaSource) pace() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if elapsed := time.Since(s.lastQuery); elapsed < time.Second {
		time.Sleep(time.Second - elapsed)
	}
	s.lastQuery = time.Now()
}

func (s *WikipediaSource) getJSON(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", s.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	return json.Unmarshal(body, out)
}

func titleList(items []struct {
	Title string `json:"title"`
}) string {
	titles := make([]string, 0, len(items))
	for _, item := range items {
		titles = append(titles, item.Title)
	}
	return strings.Join(titles, ", ")
}
