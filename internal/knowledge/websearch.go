package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"webresearch/internal/config"
	"webresearch/internal/logging"
)

const (
	defaultGoogleAPI = "https://www.googleapis.com/customsearch/v1"
	defaultBingAPI   = "https://api.bing.microsoft.com/v7.0/search"
)

// WebSearchSource queries a search engine API. With Google credentials it
// uses Custom Search, with a Bing key it uses the Bing Web Search API, and
// with neither it returns deterministic simulated results so the pipeline
// stays runnable without credentials.
type WebSearchSource struct {
	googleAPI  string
	bingAPI    string
	search     config.SearchConfig
	httpClient *http.Client
}

// NewWebSearchSource creates the source from search credentials.
func NewWebSearchSource(search config.SearchConfig, timeout time.Duration) *WebSearchSource {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WebSearchSource{
		googleAPI: defaultGoogleAPI,
		bingAPI:   defaultBingAPI,
		search:    search,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the registry name.
func (s *WebSearchSource) Name() string { return "web_search" }

// Close is a no-op; the source holds no persistent connection.
func (s *WebSearchSource) Close() error { return nil }

// Query dispatches to whichever engine has credentials configured.
func (s *WebSearchSource) Query(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	switch {
	case s.search.GoogleAPIKey != "" && s.search.GoogleCSEID != "":
		return s.queryGoogle(ctx, query, maxResults)
	case s.search.BingAPIKey != "":
		return s.queryBing(ctx, query, maxResults)
	default:
		logging.KnowledgeWarn("no search credentials configured, returning simulated results for %q", query)
		return s.simulated(query, maxResults), nil
	}
}

type googleSearchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

func (s *WebSearchSource) queryGoogle(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults > 10 {
		maxResults = 10 // CSE per-request ceiling
	}
	params := url.Values{
		"key": {s.search.GoogleAPIKey},
		"cx":  {s.search.GoogleCSEID},
		"q":   {query},
		"num": {fmt.Sprint(maxResults)},
	}

	var parsed googleSearchResponse
	if err := s.getJSON(ctx, s.googleAPI+"?"+params.Encode(), nil, &parsed); err != nil {
		return nil, fmt.Errorf("google search failed: %w", err)
	}

	results := make([]Result, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		results = append(results, Result{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
			Source:  "web_search",
			Metadata: map[string]string{
				"engine": "google",
			},
		})
	}
	return results, nil
}

type bingSearchResponse struct {
	WebPages struct {
		Value []struct {
			Name    string `json:"name"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"value"`
	} `json:"webPages"`
}

func (s *WebSearchSource) queryBing(ctx context.Context, query string, maxResults int) ([]Result, error) {
	params := url.Values{
		"q":     {query},
		"count": {fmt.Sprint(maxResults)},
	}
	headers := map[string]string{
		"Ocp-Apim-Subscription-Key": s.search.BingAPIKey,
	}

	var parsed bingSearchResponse
	if err := s.getJSON(ctx, s.bingAPI+"?"+params.Encode(), headers, &parsed); err != nil {
		return nil, fmt.Errorf("bing search failed: %w", err)
	}

	results := make([]Result, 0, len(parsed.WebPages.Value))
	for _, item := range parsed.WebPages.Value {
		results = append(results, Result{
			Title:   item.Name,
			URL:     item.URL,
			Snippet: item.Snippet,
			Source:  "web_search",
			Metadata: map[string]string{
				"engine": "bing",
			},
		})
		if len(results) >= maxResults {
			break
		}
	}
	return results, nil
}

// simulated produces placeholder results keyed to the query.
func (s *WebSearchSource) simulated(query string, maxResults int) []Result {
	n := maxResults
	if n > 3 {
		n = 3
	}
	results := make([]Result, 0, n)
	for i := 1; i <= n; i++ {
		results = append(results, Result{
			Title:   fmt.Sprintf("Simulated result %d for: %s", i, query),
			URL:     fmt.Sprintf("https://example.com/search/%s/%d", url.PathEscape(query), i),
			Snippet: fmt.Sprintf("Placeholder search result %d for %q. Configure a search API key for live results.", i, query),
			Source:  "web_search",
			Metadata: map[string]string{
				"engine":    "simulated",
				"simulated": "true",
			},
		})
	}
	return results
}

func (s *WebSearchSource) getJSON(ctx context.Context, fullURL string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

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
