package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeWire(t *testing.T, payload string) *snapshotWire {
	t.Helper()
	var w snapshotWire
	require.NoError(t, json.Unmarshal([]byte(payload), &w))
	return &w
}

func TestOverlay_PartialPushKeepsUnsetFields(t *testing.T) {
	base := DefaultSnapshot()
	w := decodeWire(t, `{"poll_interval_seconds": 300, "minimum_confidence": 0.85}`)

	next := w.overlay(base)

	assert.Equal(t, 5*time.Minute, next.PollInterval)
	assert.InDelta(t, 0.85, next.MinimumConfidence, 1e-9)

	// Everything else carries over from the base snapshot.
	assert.Equal(t, base.ProviderPriority, next.ProviderPriority)
	assert.Equal(t, base.OffThreshold, next.OffThreshold)
	assert.Equal(t, base.Region, next.Region)
	assert.Equal(t, base.MaxDailyCycles, next.MaxDailyCycles)
}

func TestOverlay_ExplicitFalseOverridesTrue(t *testing.T) {
	base := DefaultSnapshot()
	base.EnableDryConditionCycling = true

	w := decodeWire(t, `{"enable_dry_condition_cycling": false}`)
	next := w.overlay(base)

	assert.False(t, next.EnableDryConditionCycling,
		"explicit false must not be treated as unset")
}

func TestOverlay_DurationsTravelAsSeconds(t *testing.T) {
	w := decodeWire(t, `{
		"provider_timeout_seconds": 20,
		"minimum_cycle_interval_seconds": 1800,
		"power_cycle_delay_seconds": 15
	}`)
	next := w.overlay(DefaultSnapshot())

	assert.Equal(t, 20*time.Second, next.ProviderTimeout)
	assert.Equal(t, 30*time.Minute, next.MinimumCycleInterval)
	assert.Equal(t, 15*time.Second, next.PowerCycleDelay)
}

func TestOverlay_SlicesAreCopied(t *testing.T) {
	base := DefaultSnapshot()
	w := decodeWire(t, `{"provider_priority": ["bridge", "cloud"]}`)

	next := w.overlay(base)
	require.Equal(t, []string{"bridge", "cloud"}, next.ProviderPriority)

	// Mutating the pushed slice must not alias into the published snapshot.
	(*w.ProviderPriority)[0] = "clobbered"
	assert.Equal(t, "bridge", next.ProviderPriority[0])
}

func TestOverlay_DoesNotMutateBase(t *testing.T) {
	base := DefaultSnapshot()
	w := decodeWire(t, `{"off_threshold": 0.9, "roi": {"x":0.1,"y":0.1,"width":0.3,"height":0.3}}`)

	next := w.overlay(base)

	assert.InDelta(t, 0.9, next.OffThreshold, 1e-9)
	assert.InDelta(t, 0.5, base.OffThreshold, 1e-9, "base must stay untouched")
	assert.Equal(t, ROI{X: 0.25, Y: 0.35, Width: 0.5, Height: 0.3}, base.Region)
}

func TestHandlePush_InvalidOverlayKeepsLastKnownGood(t *testing.T) {
	st, err := NewSnapshotStore(DefaultSnapshot(), nil)
	require.NoError(t, err)
	before := st.Current()

	// A push that inverts the normal band fails validation after overlay.
	w := decodeWire(t, `{"normal_min": 9.0, "normal_max": 3.0}`)
	require.Error(t, st.Apply(w.overlay(st.Current())))
	assert.Same(t, before, st.Current())
}
