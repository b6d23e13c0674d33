package link

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"wheelly/internal/world"
)

func TestBridgeClockSyncEnqueuesParsedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/wheelly/clock" {
			http.NotFound(w, r)
			return
		}
		token := r.URL.Query().Get("ck")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"clock":"ck ` + token + ` 1000 1100"}`))
	}))
	defer srv.Close()

	b := NewBridgeClient(srv.URL, Config{SerialTimeout: time.Second})
	if err := b.ClockSync("42"); err != nil {
		t.Fatalf("ClockSync: %v", err)
	}

	msg := <-b.Messages()
	ck, ok := msg.(world.ClockMessage)
	if !ok {
		t.Fatalf("expected ClockMessage, got %T", msg)
	}
	if ck.Token != "42" || ck.T0 != 1000 || ck.T1 != 1100 {
		t.Fatalf("unexpected clock reply %+v", ck)
	}
}

func TestBridgeGatewayTimeoutIsTimeoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	b := NewBridgeClient(srv.URL, Config{SerialTimeout: time.Second})
	if err := b.SendMotors(100, 100, 1000); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout on 504, got %v", err)
	}
}

func TestBridgeCloseRacesDeliverWithoutPanic(t *testing.T) {
	b := NewBridgeClient("http://bridge.invalid", Config{QueueDepth: 4})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			b.deliver(testMotion(int64(i)))
		}
	}()
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	wg.Wait()

	for range b.Messages() {
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close must be a no-op, got %v", err)
	}
}

func TestBridgeDeliverAfterCloseIsDropped(t *testing.T) {
	b := NewBridgeClient("http://bridge.invalid", Config{QueueDepth: 4})
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	b.deliver(testMotion(1))
	if _, ok := <-b.Messages(); ok {
		t.Fatalf("expected closed empty channel, got a message")
	}
}
