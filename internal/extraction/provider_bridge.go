package extraction

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"pumpwatch/internal/types"
)

// bridgeProviderName is the identifier used in snapshot priority lists.
const bridgeProviderName = "bridge"

// bridgeHealthTimeout bounds the availability probe so a dead bridge costs
// the chain well under the per-provider budget.
const bridgeHealthTimeout = 2 * time.Second

// bridgeRequest is the wire request. The protocol is fixed for interop with
// the external extraction process: the image travels base64-encoded under
// the "image" key, and a health probe is the same envelope with no image.
type bridgeRequest struct {
	Image string `json:"image,omitempty"`
}

// bridgeResponse is the wire response, covering the success, failure, and
// health-probe shapes.
type bridgeResponse struct {
	Success              bool    `json:"success"`
	RawText              string  `json:"rawText"`
	ProcessedText        string  `json:"processedText"`
	Confidence           float64 `json:"confidence"`
	Provider             string  `json:"provider"`
	ProcessingDurationMs int64   `json:"processingDurationMs"`
	Error                string  `json:"error"`
	Status               string  `json:"status"`
}

// BridgeProviderConfig holds the configuration for creating a BridgeProvider.
type BridgeProviderConfig struct {
	RequestTopic string
	ReplyTopic   string
	Logger       *slog.Logger
}

// BridgeProvider talks to a pooled, long-running external OCR process over
// MQTT request/reply topics. The process lifecycle is the bridge side's
// concern; this provider only speaks the protocol and probes health.
//
// Requests are serialized: the monitoring loop runs one cycle at a time, and
// the mutex preserves that property even if a caller misuses the provider
// concurrently, so replies need no correlation IDs.
type BridgeProvider struct {
	client       mqtt.Client
	requestTopic string
	replyTopic   string
	logger       *slog.Logger
	clock        types.Clock

	reqMu   sync.Mutex // serializes whole request/reply exchanges
	mu      sync.Mutex // guards pending
	pending chan []byte
}

// NewBridgeProvider creates a BridgeProvider bound to the given broker client.
func NewBridgeProvider(client mqtt.Client, cfg BridgeProviderConfig) *BridgeProvider {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BridgeProvider{
		client:       client,
		requestTopic: cfg.RequestTopic,
		replyTopic:   cfg.ReplyTopic,
		logger:       logger.With("provider", bridgeProviderName),
		clock:        types.RealClock{},
	}
}

// Name implements Provider.
func (p *BridgeProvider) Name() string { return bridgeProviderName }

// Initialize implements Provider: subscribe to the reply topic once.
func (p *BridgeProvider) Initialize(_ context.Context) error {
	token := p.client.Subscribe(p.replyTopic, 1, p.handleReply)
	if token.Wait() && token.Error() != nil {
		return types.NewAppError(types.ErrCodeProviderUnavailable,
			"subscribing to bridge reply topic", token.Error())
	}
	return nil
}

// handleReply delivers a reply payload to the waiting request, if any.
// Replies with no waiter (late arrivals after a timeout) are dropped.
func (p *BridgeProvider) handleReply(_ mqtt.Client, msg mqtt.Message) {
	p.mu.Lock()
	ch := p.pending
	p.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- msg.Payload():
	default:
	}
}

// IsAvailable implements Provider: send a health probe (an empty request)
// and expect {"status":"healthy"} back.
func (p *BridgeProvider) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, bridgeHealthTimeout)
	defer cancel()

	payload, err := p.roundTrip(probeCtx, bridgeRequest{})
	if err != nil {
		return false
	}
	var resp bridgeResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return false
	}
	return resp.Status == "healthy"
}

// Extract implements Provider.
func (p *BridgeProvider) Extract(ctx context.Context, image []byte) (*types.ExtractionResult, error) {
	started := p.clock.Now()

	payload, err := p.roundTrip(ctx, bridgeRequest{
		Image: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return nil, err
	}

	var decoded bridgeResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, types.NewAppError(types.ErrCodeProviderFault,
			"bridge reply is not valid JSON", err)
	}

	return &types.ExtractionResult{
		Success:      decoded.Success,
		RawText:      decoded.RawText,
		Confidence:   decoded.Confidence,
		ProviderName: bridgeProviderName,
		Duration:     p.clock.Now().Sub(started),
		Error:        decoded.Error,
	}, nil
}

// roundTrip publishes one request and waits for the next reply or context
// expiry. reqMu holds for the whole exchange to keep request/reply pairing
// unambiguous.
func (p *BridgeProvider) roundTrip(ctx context.Context, req bridgeRequest) ([]byte, error) {
	p.reqMu.Lock()
	defer p.reqMu.Unlock()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			"encoding bridge request", err)
	}

	ch := make(chan []byte, 1)
	p.mu.Lock()
	p.pending = ch
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.pending = nil
		p.mu.Unlock()
	}()

	token := p.client.Publish(p.requestTopic, 1, false, body)
	if token.Wait() && token.Error() != nil {
		return nil, types.NewAppError(types.ErrCodeProviderFault,
			"publishing bridge request", token.Error())
	}

	select {
	case payload := <-ch:
		return payload, nil
	case <-ctx.Done():
		return nil, types.NewAppError(types.ErrCodeProviderTimeout,
			"bridge reply timed out", ctx.Err())
	}
}

var _ Provider = (*BridgeProvider)(nil)
