package extraction

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpwatch/internal/config"
	"pumpwatch/internal/types"
)

// fakeProvider is a scripted Provider for orchestrator tests.
type fakeProvider struct {
	name      string
	available bool
	result    *types.ExtractionResult
	err       error
	delay     time.Duration
	calls     int
}

func (f *fakeProvider) Name() string                        { return f.name }
func (f *fakeProvider) Initialize(context.Context) error    { return nil }
func (f *fakeProvider) IsAvailable(context.Context) bool    { return f.available }
func (f *fakeProvider) Extract(ctx context.Context, _ []byte) (*types.ExtractionResult, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	return &res, nil
}

func succeeding(name string, confidence float64) *fakeProvider {
	return &fakeProvider{
		name:      name,
		available: true,
		result: &types.ExtractionResult{
			Success:    true,
			RawText:    "4.2A",
			Confidence: confidence,
		},
	}
}

// testFrame returns a decodable PNG larger than a few pixels so ROI crops
// stay non-empty.
func testFrame(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func orchestratorSnap(priority ...string) *config.Snapshot {
	s := config.DefaultSnapshot()
	s.ProviderPriority = priority
	s.MinimumConfidence = 0.7
	s.ProviderTimeout = time.Second
	return s
}

func TestExtract_FallbackSkipsLowConfidence(t *testing.T) {
	a := succeeding("a", 0.4)
	b := succeeding("b", 0.9)
	o := NewOrchestrator(NewRegistry(a, b), nil, nil)

	res, err := o.Extract(context.Background(), testFrame(t), orchestratorSnap("a", "b"))
	require.NoError(t, err)

	assert.Equal(t, "b", res.ProviderName)
	assert.True(t, res.Success)
	assert.False(t, res.Exhausted)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestExtract_FirstConfidentProviderShortCircuits(t *testing.T) {
	a := succeeding("a", 0.95)
	b := succeeding("b", 0.99)
	o := NewOrchestrator(NewRegistry(a, b), nil, nil)

	res, err := o.Extract(context.Background(), testFrame(t), orchestratorSnap("a", "b"))
	require.NoError(t, err)

	assert.Equal(t, "a", res.ProviderName)
	assert.Equal(t, 0, b.calls, "chain must stop at the first confident result")
}

func TestExtract_AllBelowThresholdReturnsBestTagged(t *testing.T) {
	a := succeeding("a", 0.3)
	b := succeeding("b", 0.6)
	o := NewOrchestrator(NewRegistry(a, b), nil, nil)

	res, err := o.Extract(context.Background(), testFrame(t), orchestratorSnap("a", "b"))
	require.NoError(t, err)

	assert.True(t, res.Success, "low confidence accepted, not a failure")
	assert.True(t, res.Exhausted)
	assert.Equal(t, "b", res.ProviderName)
	assert.InDelta(t, 0.6, res.Confidence, 1e-9)
}

func TestExtract_NoProviderResponded(t *testing.T) {
	a := &fakeProvider{name: "a", available: true, err: errors.New("boom")}
	b := &fakeProvider{name: "b", available: false}
	o := NewOrchestrator(NewRegistry(a, b), nil, nil)

	res, err := o.Extract(context.Background(), testFrame(t), orchestratorSnap("a", "b"))
	require.NoError(t, err, "an unreadable frame is not a cycle fault")

	assert.False(t, res.Success)
	assert.True(t, res.Exhausted)
	assert.Equal(t, string(types.ErrCodeNoProviderAvailable), res.Error)
	assert.Equal(t, 0, b.calls, "unavailable provider must not be invoked")
}

func TestExtract_ProviderFaultFallsThrough(t *testing.T) {
	a := &fakeProvider{name: "a", available: true, err: errors.New("process crashed")}
	b := succeeding("b", 0.9)
	o := NewOrchestrator(NewRegistry(a, b), nil, nil)

	res, err := o.Extract(context.Background(), testFrame(t), orchestratorSnap("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, "b", res.ProviderName)
}

func TestExtract_ProviderTimeoutFallsThrough(t *testing.T) {
	slow := &fakeProvider{
		name:      "slow",
		available: true,
		delay:     200 * time.Millisecond,
		result:    &types.ExtractionResult{Success: true, Confidence: 0.99},
	}
	fast := succeeding("fast", 0.9)
	o := NewOrchestrator(NewRegistry(slow, fast), nil, nil)

	snap := orchestratorSnap("slow", "fast")
	snap.ProviderTimeout = 20 * time.Millisecond

	res, err := o.Extract(context.Background(), testFrame(t), snap)
	require.NoError(t, err)
	assert.Equal(t, "fast", res.ProviderName)
}

func TestExtract_UnknownProviderNameSkipped(t *testing.T) {
	b := succeeding("b", 0.9)
	o := NewOrchestrator(NewRegistry(b), nil, nil)

	res, err := o.Extract(context.Background(), testFrame(t), orchestratorSnap("ghost", "b"))
	require.NoError(t, err)
	assert.Equal(t, "b", res.ProviderName)
}

func TestExtract_InvalidROIFailsFast(t *testing.T) {
	a := succeeding("a", 0.9)
	o := NewOrchestrator(NewRegistry(a), nil, nil)

	snap := orchestratorSnap("a")
	snap.Region = config.ROI{X: 0.8, Y: 0.1, Width: 0.5, Height: 0.5}

	_, err := o.Extract(context.Background(), testFrame(t), snap)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeConfigInvalidROI, appErr.Code)
	assert.Equal(t, 0, a.calls, "no provider may run against an invalid crop")
}

func TestExtract_RecordsStatistics(t *testing.T) {
	a := &fakeProvider{name: "a", available: true, err: errors.New("boom")}
	b := succeeding("b", 0.9)
	stats := NewStatsRegistry()
	o := NewOrchestrator(NewRegistry(a, b), stats, nil)

	_, err := o.Extract(context.Background(), testFrame(t), orchestratorSnap("a", "b"))
	require.NoError(t, err)
	_, err = o.Extract(context.Background(), testFrame(t), orchestratorSnap("a", "b"))
	require.NoError(t, err)

	snapshot := stats.Snapshot()
	require.Len(t, snapshot, 2)

	assert.Equal(t, "a", snapshot[0].Provider)
	assert.EqualValues(t, 2, snapshot[0].Attempts)
	assert.EqualValues(t, 0, snapshot[0].Successes)

	assert.Equal(t, "b", snapshot[1].Provider)
	assert.EqualValues(t, 2, snapshot[1].Attempts)
	assert.EqualValues(t, 2, snapshot[1].Successes)
	assert.InDelta(t, 0.9, snapshot[1].MeanConfidence, 1e-9)
}
