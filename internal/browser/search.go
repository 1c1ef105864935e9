package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"webresearch/internal/knowledge"
	"webresearch/internal/logging"

	"golang.org/x/net/html"
)

const duckduckgoHTML = "https://html.duckduckgo.com/html/"

// Search runs a web search and returns ranked results. DuckDuckGo's HTML
// endpoint needs no API key; the engine argument is kept for future
// engines and currently only selects duckduckgo.
func (s *Session) Search(ctx context.Context, query, engine string, maxResults int) ([]knowledge.Result, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	if maxResults > 30 {
		maxResults = 30
	}
	if engine == "" {
		engine = "duckduckgo"
	}

	searchURL := duckduckgoHTML + "?q=" + url.QueryEscape(query)
	ok, err := s.gatekeeper.PrepareNavigation(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("search endpoint not navigable")
	}

	logging.BrowserDebug("search: engine=%s query=%q max=%d", engine, query, maxResults)

	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "GET", searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	results, err := parseSearchResults(string(body), maxResults)
	if err != nil {
		return nil, err
	}
	logging.Browser("search %q returned %d results", query, len(results))
	return results, nil
}

// parseSearchResults extracts ranked results from DuckDuckGo's HTML.
func parseSearchResults(htmlContent string, maxResults int) ([]knowledge.Result, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search HTML: %w", err)
	}

	var results []knowledge.Result

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" {
			for _, attr := range n.Attr {
				if attr.Key == "class" && strings.Contains(attr.Val, "result") && strings.Contains(attr.Val, "results_links") {
					if r := extractSearchResult(n); r.URL != "" && r.Title != "" {
						results = append(results, r)
					}
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return results, nil
}

// extractSearchResult pulls title, URL, and snippet out of one result div.
func extractSearchResult(n *html.Node) knowledge.Result {
	r := knowledge.Result{Source: "web_search", Metadata: map[string]string{"engine": "duckduckgo"}}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "class" {
					continue
				}
				if strings.Contains(attr.Val, "result__a") {
					r.URL = attrValue(n, "href")
					r.Title = textContent(n)
				} else if strings.Contains(attr.Val, "result__snippet") {
					r.Snippet = textContent(n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	r.URL = decodeRedirect(r.URL)
	return r
}

// decodeRedirect unwraps DuckDuckGo's uddg redirect links.
func decodeRedirect(href string) string {
	const prefix = "//duckduckgo.com/l/?uddg="
	if !strings.HasPrefix(href, prefix) {
		return href
	}
	decoded, err := url.QueryUnescape(strings.TrimPrefix(href, prefix))
	if err != nil {
		return href
	}
	if idx := strings.Index(decoded, "&"); idx > 0 {
		decoded = decoded[:idx]
	}
	return decoded
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(n.Data))
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
