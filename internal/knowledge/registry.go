package knowledge

import (
	"context"
	"fmt"

	"webresearch/internal/config"
	"webresearch/internal/logging"
)

// Registry holds the statically registered sources and the shared query
// cache. Unknown source names are rejected when the registry is built, not
// when a query arrives.
type Registry struct {
	sources      map[string]Source
	cache        *queryCache
	cacheEnabled bool
}

// NewRegistry builds a registry for the enabled sources in cfg. The
// builder function maps a validated name to its implementation.
func NewRegistry(cfg config.KnowledgeConfig, build func(name string) (Source, error)) (*Registry, error) {
	r := &Registry{
		sources:      make(map[string]Source),
		cache:        newQueryCache(cfg.CacheMaxSize),
		cacheEnabled: cfg.CacheEnabled,
	}

	for _, name := range cfg.EnabledSources {
		if !config.IsKnownSource(name) {
			return nil, fmt.Errorf("unknown knowledge source %q", name)
		}
		src, err := build(name)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize source %q: %w", name, err)
		}
		r.sources[name] = src
		logging.Knowledge("source registered: %s", name)
	}
	return r, nil
}

// NewRegistryFromSources builds a registry over pre-constructed sources.
func NewRegistryFromSources(cfg config.KnowledgeConfig, sources ...Source) *Registry {
	r := &Registry{
		sources:      make(map[string]Source),
		cache:        newQueryCache(cfg.CacheMaxSize),
		cacheEnabled: cfg.CacheEnabled,
	}
	for _, src := range sources {
		r.sources[src.Name()] = src
	}
	return r
}

// Has reports whether name is an enabled source.
func (r *Registry) Has(name string) bool {
	_, ok := r.sources[name]
	return ok
}

// Names returns the enabled source names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	return names
}

// Query runs one query against a named source. Failures never propagate:
// a disabled source or a delegate error yields an empty result list and a
// log line. Successful results are cached under (source, query, maxResults).
func (r *Registry) Query(ctx context.Context, source, query string, maxResults int) []Result {
	src, ok := r.sources[source]
	if !ok {
		logging.KnowledgeWarn("query against disabled source %q skipped", source)
		return nil
	}

	key := cacheKey(source, query, maxResults)
	if r.cacheEnabled {
		if cached, hit := r.cache.get(key); hit {
			logging.KnowledgeDebug("cache hit: %s", key)
			return cached
		}
	}

	timer := logging.StartTimer(logging.CategoryKnowledge, fmt.Sprintf("query %s %q", source, query))
	results, err := src.Query(ctx, query, maxResults)
	timer.Stop()
	if err != nil {
		logging.KnowledgeError("source %s failed for %q: %v", source, query, err)
		return nil
	}

	if r.cacheEnabled {
		r.cache.set(key, results)
	}
	logging.Knowledge("source %s returned %d results for %q", source, len(results), query)
	return results
}

// CacheSize returns the number of cached queries.
func (r *Registry) CacheSize() int {
	return r.cache.size()
}

// Close shuts down all sources.
func (r *Registry) Close() error {
	var firstErr error
	for name, src := range r.sources {
		if err := src.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close source %s: %w", name, err)
		}
	}
	return firstErr
}
