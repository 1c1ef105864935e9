package knowledge

import (
	"fmt"

	"webresearch/internal/config"
)

// DefaultBuilder maps validated source names to their live implementations.
func DefaultBuilder(cfg *config.Config) func(name string) (Source, error) {
	return func(name string) (Source, error) {
		timeout := cfg.Browser.NavigationTimeout()
		switch name {
		case "web_search":
			return NewWebSearchSource(cfg.Search, timeout), nil
		case "wikipedia":
			return NewWikipediaSource(cfg.Browser.UserAgent, timeout), nil
		case "arxiv":
			return NewArxivSource(cfg.Browser.UserAgent, timeout), nil
		default:
			return nil, fmt.Errorf("no implementation for source %q", name)
		}
	}
}
