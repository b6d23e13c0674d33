package link

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"wheelly/internal/clock"
	"wheelly/internal/world"
)

// BridgeClient talks to the ESP8266 HTTP↔serial gateway (the Bridge HTTP
// API) instead of a direct serial connection — used in simulation/bench
// setups where the robot sits behind a network bridge rather than a local
// tty. It satisfies the same Link contract as SerialLink; telemetry is
// polled rather than pushed, since the bridge API exposes no stream.
type BridgeClient struct {
	baseURL string
	client  *http.Client
	cfg     Config

	mu       sync.Mutex
	closed   bool
	stop     chan struct{}
	messages chan world.Message
}

// NewBridgeClient constructs a bridge client against baseURL (e.g.
// "http://wheelly.local").
func NewBridgeClient(baseURL string, cfg Config) *BridgeClient {
	return &BridgeClient{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: cfg.SerialTimeout},
		cfg:      cfg,
		stop:     make(chan struct{}),
		messages: make(chan world.Message, cfg.queueDepth()),
	}
}

// Connect starts the background status poller; the bridge itself requires
// no handshake.
func (b *BridgeClient) Connect(ctx context.Context) error {
	go b.pollLoop(ctx)
	return nil
}

func (b *BridgeClient) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stop:
			return
		case <-ticker.C:
			if msg, ok := b.fetchStatus(ctx); ok {
				b.deliver(msg)
			}
		}
	}
}

// deliver enqueues one polled message, holding the client mutex for the
// send so Close can never close the channel out from under the poll loop.
func (b *BridgeClient) deliver(msg world.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.messages <- msg:
	default:
	}
}

func (b *BridgeClient) fetchStatus(ctx context.Context) (world.Message, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/v1/wheelly/status", nil)
	if err != nil {
		return nil, false
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false
	}
	var body struct{ Status string `json:"status"` }
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false
	}
	msg, ok, err := parseTelemetry(body.Status)
	if err != nil || !ok {
		return nil, false
	}
	return msg, true
}

func (b *BridgeClient) post(path string, body any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("%w: encode: %v", ErrProtocol, err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, b.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusGatewayTimeout {
		return ErrTimeout
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: bridge returned %d", ErrProtocol, resp.StatusCode)
	}
	return nil
}

func (b *BridgeClient) SendMotors(left, right int, validTo clock.Time) error {
	return b.post("/api/v1/wheelly/motors", map[string]int{
		"left": clampMotor(left), "right": clampMotor(right), "validTo": int(validTo),
	})
}

func (b *BridgeClient) SendScan(deg float64) error {
	return b.post("/api/v1/wheelly/scan", map[string]float64{"deg": deg})
}

func (b *BridgeClient) SendHalt() error {
	return b.post("/api/v1/wheelly/motors", map[string]int{"left": 0, "right": 0, "validTo": 0})
}

func (b *BridgeClient) SendQueryStatus() error {
	return nil // status is polled, not pushed, for this transport
}

func (b *BridgeClient) ClockSync(token string) error {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/api/v1/wheelly/clock?ck=%s", b.baseURL, token), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusGatewayTimeout {
		return ErrTimeout
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: bridge returned %d", ErrProtocol, resp.StatusCode)
	}
	var body struct {
		Clock string `json:"clock"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: decode clock reply: %v", ErrProtocol, err)
	}
	msg, ok, err := parseTelemetry(body.Clock)
	if err != nil {
		return err
	}
	if ok {
		b.deliver(msg)
	}
	return nil
}

func (b *BridgeClient) Messages() <-chan world.Message { return b.messages }

// Close stops the polling loop and closes the telemetry channel. The closed
// flag is flipped under the same mutex deliver sends under, so no writer can
// be mid-send when the channel closes.
func (b *BridgeClient) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.stop)
	close(b.messages)
	return nil
}

var _ Link = (*BridgeClient)(nil)
