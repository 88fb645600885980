package extraction

import (
	"context"
	"errors"
	"log/slog"

	"pumpwatch/internal/config"
	"pumpwatch/internal/types"
)

// Orchestrator applies preprocessing and walks the snapshot's provider
// priority list until a result meets the confidence bar. Provider faults are
// recorded and skipped; only a configuration error (bad ROI) fails the call.
type Orchestrator struct {
	registry Registry
	stats    *StatsRegistry
	logger   *slog.Logger
}

// NewOrchestrator creates an Orchestrator over the given provider registry.
func NewOrchestrator(registry Registry, stats *StatsRegistry, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if stats == nil {
		stats = NewStatsRegistry()
	}
	return &Orchestrator{
		registry: registry,
		stats:    stats,
		logger:   logger.With("component", "extraction"),
	}
}

// Stats returns the orchestrator's statistics registry.
func (o *Orchestrator) Stats() *StatsRegistry { return o.stats }

// Extract preprocesses the frame and tries providers in the snapshot's
// priority order, each under the snapshot's per-provider timeout.
//
// The first result with Success and Confidence >= MinimumConfidence wins.
// If no provider clears the bar, the highest-confidence successful result is
// returned with Exhausted set; if nothing succeeded at all, a synthesized
// failed result (also Exhausted) is returned. Neither case is an error: a
// frame the chain cannot read is an Unknown reading, not a dead cycle.
//
// The only error return is a configuration fault from preprocessing (ROI out
// of bounds) or an undecodable frame.
func (o *Orchestrator) Extract(ctx context.Context, frame []byte, snap *config.Snapshot) (*types.ExtractionResult, error) {
	prepared, err := Preprocess(frame, snap.Region, snap.Preprocess)
	if err != nil {
		return nil, err
	}

	var best *types.ExtractionResult

	for _, name := range snap.ProviderPriority {
		provider, ok := o.registry[name]
		if !ok {
			o.logger.Warn("snapshot names unknown provider", "provider", name)
			continue
		}

		res := o.attempt(ctx, provider, prepared, snap)
		o.stats.Record(name, res)

		if res.Success && res.Confidence >= snap.MinimumConfidence {
			return res, nil
		}
		if res.Success && (best == nil || res.Confidence > best.Confidence) {
			best = res
		}

		if ctx.Err() != nil {
			break
		}
	}

	if best != nil {
		tagged := *best
		tagged.Exhausted = true
		return &tagged, nil
	}

	// No provider responded at all.
	return &types.ExtractionResult{
		Success:   false,
		Exhausted: true,
		Error:     string(types.ErrCodeNoProviderAvailable),
	}, nil
}

// attempt runs one provider under the per-provider timeout, converting every
// fault into a failed result.
func (o *Orchestrator) attempt(ctx context.Context, provider Provider, image []byte, snap *config.Snapshot) *types.ExtractionResult {
	attemptCtx, cancel := context.WithTimeout(ctx, snap.ProviderTimeout)
	defer cancel()

	if !provider.IsAvailable(attemptCtx) {
		return &types.ExtractionResult{
			ProviderName: provider.Name(),
			Error:        string(types.ErrCodeProviderUnavailable),
		}
	}

	res, err := provider.Extract(attemptCtx, image)
	if err != nil {
		code := types.ErrCodeProviderFault
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			code = appErr.Code
		}
		o.logger.Warn("provider attempt failed",
			"provider", provider.Name(),
			"code", string(code),
			"error", err,
		)
		return &types.ExtractionResult{
			ProviderName: provider.Name(),
			Error:        err.Error(),
		}
	}

	res.ProviderName = provider.Name()
	return res
}
