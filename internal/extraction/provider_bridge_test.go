package extraction

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpwatch/internal/types"
)

// fakeToken is a completed paho token.
type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

// fakeMessage carries only a payload; the bridge reads nothing else.
type fakeMessage struct {
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return "pumpwatch/ocr/reply" }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// fakeBroker implements mqtt.Client, looping each published request back
// through a scripted responder.
type fakeBroker struct {
	mu         sync.Mutex
	handler    mqtt.MessageHandler
	published  [][]byte
	respond    func(request []byte) []byte // nil means never reply
	publishErr error
	subErr     error
}

func (b *fakeBroker) IsConnected() bool      { return true }
func (b *fakeBroker) IsConnectionOpen() bool { return true }
func (b *fakeBroker) Connect() mqtt.Token    { return &fakeToken{} }
func (b *fakeBroker) Disconnect(uint)        {}

func (b *fakeBroker) Publish(_ string, _ byte, _ bool, payload interface{}) mqtt.Token {
	if b.publishErr != nil {
		return &fakeToken{err: b.publishErr}
	}
	body := payload.([]byte)
	b.mu.Lock()
	b.published = append(b.published, body)
	handler := b.handler
	respond := b.respond
	b.mu.Unlock()

	if handler != nil && respond != nil {
		go handler(b, &fakeMessage{payload: respond(body)})
	}
	return &fakeToken{}
}

func (b *fakeBroker) Subscribe(_ string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	if b.subErr != nil {
		return &fakeToken{err: b.subErr}
	}
	b.mu.Lock()
	b.handler = cb
	b.mu.Unlock()
	return &fakeToken{}
}

func (b *fakeBroker) SubscribeMultiple(filters map[string]byte, cb mqtt.MessageHandler) mqtt.Token {
	for topic := range filters {
		b.Subscribe(topic, filters[topic], cb)
	}
	return &fakeToken{}
}

func (b *fakeBroker) Unsubscribe(...string) mqtt.Token        { return &fakeToken{} }
func (b *fakeBroker) AddRoute(string, mqtt.MessageHandler)    {}
func (b *fakeBroker) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

var _ mqtt.Client = (*fakeBroker)(nil)

func newBridge(t *testing.T, broker *fakeBroker) *BridgeProvider {
	t.Helper()
	p := NewBridgeProvider(broker, BridgeProviderConfig{
		RequestTopic: "pumpwatch/ocr/request",
		ReplyTopic:   "pumpwatch/ocr/reply",
	})
	require.NoError(t, p.Initialize(context.Background()))
	return p
}

func bridgeReply(resp bridgeResponse) func([]byte) []byte {
	return func([]byte) []byte {
		body, _ := json.Marshal(resp)
		return body
	}
}

func TestBridgeExtract_RoundTrip(t *testing.T) {
	broker := &fakeBroker{
		respond: bridgeReply(bridgeResponse{
			Success:    true,
			RawText:    "4.2A",
			Confidence: 0.88,
			Provider:   "bridge-ocr",
		}),
	}
	p := newBridge(t, broker)
	frame := []byte{0x01, 0x02, 0x03}

	res, err := p.Extract(context.Background(), frame)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "4.2A", res.RawText)
	assert.InDelta(t, 0.88, res.Confidence, 1e-9)
	assert.Equal(t, "bridge", res.ProviderName)

	require.Len(t, broker.published, 1)
	var req bridgeRequest
	require.NoError(t, json.Unmarshal(broker.published[0], &req))
	assert.Equal(t, base64.StdEncoding.EncodeToString(frame), req.Image)
}

func TestBridgeExtract_TimeoutWhenNoReply(t *testing.T) {
	broker := &fakeBroker{} // respond is nil: the bridge is silent
	p := newBridge(t, broker)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := p.Extract(ctx, []byte("img"))
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeProviderTimeout, appErr.Code)
}

func TestBridgeExtract_PublishFailure(t *testing.T) {
	broker := &fakeBroker{publishErr: errors.New("broker gone")}
	p := NewBridgeProvider(broker, BridgeProviderConfig{
		RequestTopic: "pumpwatch/ocr/request",
		ReplyTopic:   "pumpwatch/ocr/reply",
	})

	_, err := p.Extract(context.Background(), []byte("img"))
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeProviderFault, appErr.Code)
}

func TestBridgeIsAvailable_HealthProbe(t *testing.T) {
	broker := &fakeBroker{
		respond: func(req []byte) []byte {
			// A health probe is the request envelope with no image.
			var r bridgeRequest
			if err := json.Unmarshal(req, &r); err != nil || r.Image != "" {
				return []byte(`{"success":false}`)
			}
			return []byte(`{"status":"healthy"}`)
		},
	}
	p := newBridge(t, broker)

	assert.True(t, p.IsAvailable(context.Background()))
}

func TestBridgeIsAvailable_UnhealthyStatus(t *testing.T) {
	broker := &fakeBroker{respond: bridgeReply(bridgeResponse{Status: "degraded"})}
	p := newBridge(t, broker)

	assert.False(t, p.IsAvailable(context.Background()))
}

func TestBridgeInitialize_SubscribeFailure(t *testing.T) {
	broker := &fakeBroker{subErr: errors.New("not authorized")}
	p := NewBridgeProvider(broker, BridgeProviderConfig{ReplyTopic: "pumpwatch/ocr/reply"})

	err := p.Initialize(context.Background())
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeProviderUnavailable, appErr.Code)
}

func TestBridgeExtract_LateReplyFromPreviousRequestDropped(t *testing.T) {
	broker := &fakeBroker{}
	p := newBridge(t, broker)

	// First request times out with no reply.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	_, err := p.Extract(ctx, []byte("first"))
	cancel()
	require.Error(t, err)

	// The stale reply arrives while nothing is pending: it must be dropped,
	// not delivered to the next exchange.
	broker.mu.Lock()
	handler := broker.handler
	broker.mu.Unlock()
	handler(broker, &fakeMessage{payload: []byte(`{"success":true,"rawText":"stale"}`)})

	broker.mu.Lock()
	broker.respond = bridgeReply(bridgeResponse{Success: true, RawText: "fresh", Confidence: 0.9})
	broker.mu.Unlock()

	res, err := p.Extract(context.Background(), []byte("second"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", res.RawText)
}
