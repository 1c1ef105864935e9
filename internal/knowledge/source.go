// Package knowledge provides the uniform query interface over external
// knowledge sources (web search, Wikipedia, arXiv) and the registry that
// caches their results.
package knowledge

import "context"

// Result is one record returned by any source. The shape is
// JSON-serializable because results cross into LLM prompts and citation
// rendering.
type Result struct {
	Title      string            `json:"title"`
	URL        string            `json:"url"`
	Snippet    string            `json:"snippet,omitempty"`
	Content    string            `json:"content,omitempty"`
	Source     string            `json:"source"`
	Summarized bool              `json:"summarized,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Source is a pluggable knowledge provider. Query errors are absorbed by
// the registry; sources without credentials may return deterministic
// placeholder results instead of failing, so callers must not assume
// results are authoritative.
type Source interface {
	Name() string
	Query(ctx context.Context, query string, maxResults int) ([]Result, error)
	Close() error
}
