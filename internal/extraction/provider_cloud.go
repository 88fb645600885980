package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"pumpwatch/internal/types"
)

// cloudProviderName is the identifier used in snapshot priority lists.
const cloudProviderName = "cloud"

// CloudProviderConfig holds the configuration for creating a CloudProvider.
type CloudProviderConfig struct {
	Endpoint string
	APIKey   string
	Logger   *slog.Logger
}

// CloudProvider extracts text via a hosted OCR HTTP API. All calls route
// through a circuit-breaker client so a dead uplink degrades to a fast
// failure instead of stalling the fallback chain.
type CloudProvider struct {
	base     *resilientClient
	endpoint string
	apiKey   string
	logger   *slog.Logger
	clock    types.Clock
}

// cloudRequest mirrors the extraction request envelope: the image travels
// base64-encoded under the "image" key.
type cloudRequest struct {
	Image string `json:"image"`
}

// cloudResponse mirrors the extraction response envelope shared with the
// out-of-process bridge.
type cloudResponse struct {
	Success              bool    `json:"success"`
	RawText              string  `json:"rawText"`
	ProcessedText        string  `json:"processedText"`
	Confidence           float64 `json:"confidence"`
	Provider             string  `json:"provider"`
	ProcessingDurationMs int64   `json:"processingDurationMs"`
	Error                string  `json:"error"`
}

// NewCloudProvider creates a CloudProvider. The httpClient timeout bounds a
// single attempt; the orchestrator's per-provider timeout bounds the whole
// retry envelope.
func NewCloudProvider(httpClient *http.Client, cfg CloudProviderConfig) *CloudProvider {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudProvider{
		base:     newResilientClient(httpClient, cloudProviderName, DefaultRetryPolicy()),
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		logger:   logger.With("provider", cloudProviderName),
		clock:    types.RealClock{},
	}
}

// Name implements Provider.
func (p *CloudProvider) Name() string { return cloudProviderName }

// Initialize implements Provider. The endpoint must be configured; there is
// no handshake to perform.
func (p *CloudProvider) Initialize(_ context.Context) error {
	if p.endpoint == "" {
		return types.NewAppError(types.ErrCodeProviderUnavailable,
			"cloud OCR endpoint not configured", nil)
	}
	return nil
}

// IsAvailable implements Provider. Reachability is the breaker's job; a
// configured endpoint counts as available.
func (p *CloudProvider) IsAvailable(_ context.Context) bool {
	return p.endpoint != ""
}

// Extract implements Provider.
func (p *CloudProvider) Extract(ctx context.Context, image []byte) (*types.ExtractionResult, error) {
	started := p.clock.Now()

	body, err := json.Marshal(cloudRequest{Image: base64.StdEncoding.EncodeToString(image)})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			"encoding cloud OCR request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			"building cloud OCR request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.base.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(types.ErrCodeProviderFault,
			fmt.Sprintf("cloud OCR returned status %d", resp.StatusCode), nil)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeProviderFault,
			"reading cloud OCR response", err)
	}

	var decoded cloudResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, types.NewAppError(types.ErrCodeProviderFault,
			"cloud OCR response is not valid JSON", err)
	}

	return &types.ExtractionResult{
		Success:      decoded.Success,
		RawText:      decoded.RawText,
		Confidence:   decoded.Confidence,
		ProviderName: cloudProviderName,
		Duration:     p.clock.Now().Sub(started),
		Error:        decoded.Error,
	}, nil
}

var _ Provider = (*CloudProvider)(nil)

// cloudDefaultTimeout is the recommended http.Client timeout for one attempt.
const cloudDefaultTimeout = 10 * time.Second
