package extraction

import (
	"sort"
	"sync"
	"time"

	"pumpwatch/internal/types"
)

// StatsRegistry accumulates rolling per-provider statistics: attempt count,
// success count, mean confidence over successes, mean duration over attempts.
// The registry is read-only diagnostics; nothing in the fallback chain ever
// consults it.
type StatsRegistry struct {
	mu    sync.Mutex
	stats map[string]*providerStats
}

type providerStats struct {
	attempts      int64
	successes     int64
	sumConfidence float64
	sumDuration   time.Duration
}

// NewStatsRegistry creates an empty registry.
func NewStatsRegistry() *StatsRegistry {
	return &StatsRegistry{stats: make(map[string]*providerStats)}
}

// Record folds one attempt into the provider's running totals.
func (r *StatsRegistry) Record(provider string, res *types.ExtractionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stats[provider]
	if !ok {
		s = &providerStats{}
		r.stats[provider] = s
	}
	s.attempts++
	s.sumDuration += res.Duration
	if res.Success {
		s.successes++
		s.sumConfidence += res.Confidence
	}
}

// Snapshot returns the current statistics sorted by provider name.
func (r *StatsRegistry) Snapshot() []types.ProviderStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.ProviderStats, 0, len(r.stats))
	for name, s := range r.stats {
		ps := types.ProviderStats{
			Provider:  name,
			Attempts:  s.attempts,
			Successes: s.successes,
		}
		if s.successes > 0 {
			ps.MeanConfidence = s.sumConfidence / float64(s.successes)
		}
		if s.attempts > 0 {
			ps.MeanDuration = s.sumDuration / time.Duration(s.attempts)
		}
		out = append(out, ps)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}
