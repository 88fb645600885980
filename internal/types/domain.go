// Package types defines the domain records, enums, error taxonomy, and
// collaborator interfaces shared across the pumpwatch daemon. The package is
// deliberately dependency-free: it holds data and contracts, not behavior.
package types

import "time"

// ExtractionResult is the outcome of a single provider attempt. It is created
// once per attempt and never mutated.
type ExtractionResult struct {
	Success      bool          `json:"success"`
	RawText      string        `json:"raw_text"`
	Confidence   float64       `json:"confidence"` // provider-reported, in [0,1]
	ProviderName string        `json:"provider"`
	Duration     time.Duration `json:"duration"`
	Error        string        `json:"error,omitempty"`

	// Exhausted marks a below-threshold or empty result returned after the
	// whole provider chain was tried, letting the caller distinguish
	// "low confidence accepted" from "no provider responded".
	Exhausted bool `json:"exhausted,omitempty"`
}

// Reading is the classified observation for one monitoring cycle. It is
// immutable once built and is handed to the persistence sink exactly once.
type Reading struct {
	ID                 string        `json:"id"`
	TimestampUTC       time.Time     `json:"timestamp_utc"`
	CurrentAmps        *float64      `json:"current_amps,omitempty"`
	Status             PumpState     `json:"status"`
	RawText            string        `json:"raw_text"`
	Confidence         float64       `json:"confidence"`
	ProviderUsed       string        `json:"provider_used"`
	ProcessingDuration time.Duration `json:"processing_duration"`
}

// RelayAction records an executed or suppressed safety action. Only the
// safety controller creates these.
type RelayAction struct {
	ID           string        `json:"id"`
	TimestampUTC time.Time     `json:"timestamp_utc"`
	Kind         ActionKind    `json:"kind"`
	Reason       string        `json:"reason"`
	Outcome      ActionOutcome `json:"outcome"`
}

// ProviderStats is a read-only diagnostic summary of one provider's rolling
// statistics. Stats never feed back into provider selection.
type ProviderStats struct {
	Provider       string        `json:"provider"`
	Attempts       int64         `json:"attempts"`
	Successes      int64         `json:"successes"`
	MeanConfidence float64       `json:"mean_confidence"`
	MeanDuration   time.Duration `json:"mean_duration"`
}
