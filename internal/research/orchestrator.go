package research

import (
	"context"
	"time"

	"prediction-backend/internal/shared/metrics"
	"prediction-backend/internal/shared/telemetry"
)

// SourceResult is the outcome for one research source within a session run.
type SourceResult struct {
	Source   string
	Entry    Entry
	CacheHit bool
}

// Orchestrator gathers research for a market from an ordered list of
// sources, consulting the cache before calling the provider. Sources are
// queried strictly in order: providers are independently rate-limited and
// the merged output feeds one prompt, so deterministic ordering matters
// more than latency here.
type Orchestrator struct {
	Cache    Cache
	Provider Provider
	// MaxAge bounds how old a cache entry may be before it is treated as
	// a miss. Zero disables expiry.
	MaxAge time.Duration
}

// Gather runs the cache-first research loop for every source in order.
// Provider failures are logged and skipped; they never fail the session.
// Each usable entry is linked to the session. An empty source list is a
// no-op and returns nil.
func (o *Orchestrator) Gather(ctx context.Context, sessionID string, query Query, sources []string) []SourceResult {
	if len(sources) == 0 {
		return nil
	}

	results := make([]SourceResult, 0, len(sources))
	for _, source := range sources {
		entry, hit := o.lookup(ctx, query.MarketID, source)
		if hit {
			metrics.IncResearchCacheHit()
			results = append(results, o.link(ctx, sessionID, source, entry, true))
			continue
		}
		metrics.IncResearchCacheMiss()

		response, err := o.Provider.Research(ctx, source, query)
		if err != nil {
			telemetry.Error("research.source_failed", map[string]any{
				"session_id": sessionID,
				"market_id":  query.MarketID,
				"source":     source,
				"error":      err.Error(),
			})
			continue
		}

		entry, err = o.Cache.Create(ctx, query.MarketID, source, response)
		if err != nil {
			telemetry.Error("research.cache_write_failed", map[string]any{
				"session_id": sessionID,
				"market_id":  query.MarketID,
				"source":     source,
				"error":      err.Error(),
			})
			continue
		}
		results = append(results, o.link(ctx, sessionID, source, entry, false))
	}
	return results
}

func (o *Orchestrator) lookup(ctx context.Context, marketID, source string) (Entry, bool) {
	entry, err := o.Cache.GetBySource(ctx, marketID, source)
	if err != nil {
		return Entry{}, false
	}
	if o.MaxAge > 0 && time.Since(entry.CreatedAt) > o.MaxAge {
		return Entry{}, false
	}
	return entry, true
}

func (o *Orchestrator) link(ctx context.Context, sessionID, source string, entry Entry, hit bool) SourceResult {
	if err := o.Cache.LinkSession(ctx, entry.ID, sessionID); err != nil {
		telemetry.Error("research.link_failed", map[string]any{
			"session_id": sessionID,
			"entry_id":   entry.ID,
			"source":     source,
			"error":      err.Error(),
		})
	}
	return SourceResult{Source: source, Entry: entry, CacheHit: hit}
}
