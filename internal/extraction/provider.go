// Package extraction turns a captured frame of the pump display into text.
// It owns image preprocessing, the ordered provider fallback chain, and the
// per-provider rolling statistics. Providers are engines, not strategies:
// the orchestrator never reorders them based on outcomes.
package extraction

import (
	"context"

	"pumpwatch/internal/types"
)

// Provider is a single text-extraction engine. Implementations wrap a local
// OCR binary, a cloud OCR API, or a long-running out-of-process bridge.
//
// Extract must honor ctx cancellation and should return an error for engine
// faults (crash, network failure, missing dependency); the orchestrator
// records faults as failed ExtractionResults and moves on — a provider fault
// is never a cycle fault.
type Provider interface {
	// Name returns the stable identifier used in the snapshot's priority list.
	Name() string

	// Initialize performs one-time setup (binary lookup, topic subscription).
	Initialize(ctx context.Context) error

	// IsAvailable reports whether the engine is currently usable. It must be
	// cheap enough to call once per attempt.
	IsAvailable(ctx context.Context) bool

	// Extract runs the engine against a preprocessed image.
	Extract(ctx context.Context, image []byte) (*types.ExtractionResult, error)
}

// Registry maps provider names to engines. Construction order is irrelevant;
// the snapshot's priority list decides invocation order each cycle.
type Registry map[string]Provider

// NewRegistry builds a Registry from the given providers, keyed by Name().
func NewRegistry(providers ...Provider) Registry {
	r := make(Registry, len(providers))
	for _, p := range providers {
		r[p.Name()] = p
	}
	return r
}
