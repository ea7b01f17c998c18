// internal/cache/query.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fridgetrack-sync/internal/common/metrics"
)

// Options are per-query settings.
type Options struct {
	// StaleTime overrides the store default when positive.
	StaleTime time.Duration
	// Disabled returns whatever is cached without fetching.
	Disabled bool
}

// Query returns the value at key. Fresh data is returned as is. Stale data
// is returned immediately while a background refresh runs. Without data the
// call fetches synchronously; concurrent callers share one fetch.
func Query[T any](ctx context.Context, s *Store, key Key, fetch func(ctx context.Context) (T, error), opts Options) (T, error) {
	var zero T
	hash := key.Hash()
	resource := metrics.Resource(key)

	s.mu.Lock()
	e := s.ensure(key)
	e.fetcher = func(ctx context.Context) (interface{}, error) { return fetch(ctx) }
	if opts.StaleTime > 0 {
		e.staleTime = opts.StaleTime
	}

	if e.hasData {
		data := e.data
		stale := s.isStale(e)
		refresh := stale && !e.isFetching && !opts.Disabled
		s.mu.Unlock()

		if v, ok := data.(T); ok {
			if stale {
				metrics.CacheLookups.WithLabelValues(resource, "stale").Inc()
			} else {
				metrics.CacheLookups.WithLabelValues(resource, "hit").Inc()
			}
			if refresh {
				s.refreshAsync(hash)
			}
			return v, nil
		}
		if opts.Disabled {
			return zero, nil
		}
	} else {
		s.mu.Unlock()
		if opts.Disabled {
			return zero, nil
		}
		if v, ok := hydrate[T](ctx, s, key); ok {
			metrics.CacheLookups.WithLabelValues(resource, "hydrated").Inc()
			s.refreshAsync(hash)
			return v, nil
		}
	}

	metrics.CacheLookups.WithLabelValues(resource, "miss").Inc()
	data, err := s.fetch(ctx, hash)
	if err != nil {
		return zero, err
	}
	v, ok := data.(T)
	if !ok {
		return zero, fmt.Errorf("cache: value at %s is %T, not %T", hash, data, zero)
	}
	return v, nil
}

// hydrate seeds an empty entry from the persister. The value is marked
// stale so it is refreshed right away.
func hydrate[T any](ctx context.Context, s *Store, key Key) (T, bool) {
	var zero T
	raw, found := s.persistLoad(ctx, key.Hash())
	if !found {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		s.logger.Warn("discarding unreadable persisted query", map[string]interface{}{
			"key":   key.Hash(),
			"error": err.Error(),
		})
		return zero, false
	}

	s.mu.Lock()
	e := s.ensure(key)
	if e.hasData {
		current, ok := e.data.(T)
		s.mu.Unlock()
		return current, ok
	}
	e.data = v
	e.hasData = true
	e.invalidated = true
	ns := s.collect(e)
	s.mu.Unlock()

	s.dispatch(ns)
	return v, true
}
