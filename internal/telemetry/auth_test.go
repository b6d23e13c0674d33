package telemetry

import (
	"testing"

	"wheelly/internal/clock"
)

func TestTokenGateSignVerifyRoundTrip(t *testing.T) {
	source := clock.NewFakeSource(0)
	gate, err := NewTokenGate("s3cret", source)
	if err != nil {
		t.Fatalf("NewTokenGate: %v", err)
	}
	token := gate.Sign("dashboard", clock.Time(5000))
	if err := gate.Verify(token); err != nil {
		t.Fatalf("expected valid token to verify, got %v", err)
	}
}

func TestTokenGateRejectsTamperedPayload(t *testing.T) {
	source := clock.NewFakeSource(0)
	gate, err := NewTokenGate("s3cret", source)
	if err != nil {
		t.Fatalf("NewTokenGate: %v", err)
	}
	token := gate.Sign("dashboard", clock.Time(5000))
	tampered := token[:len(token)-1] + "0"
	if err := gate.Verify(tampered); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized for tampered token, got %v", err)
	}
}

func TestTokenGateRejectsPastDeadline(t *testing.T) {
	source := clock.NewFakeSource(0)
	gate, err := NewTokenGate("s3cret", source)
	if err != nil {
		t.Fatalf("NewTokenGate: %v", err)
	}
	token := gate.Sign("dashboard", clock.Time(1000))
	source.Set(clock.Time(1001))
	if err := gate.Verify(token); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized once past the deadline, got %v", err)
	}
}

func TestNewTokenGateRequiresSecretAndSource(t *testing.T) {
	if _, err := NewTokenGate("", clock.NewFakeSource(0)); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	if _, err := NewTokenGate("s3cret", nil); err == nil {
		t.Fatalf("expected error for nil clock source")
	}
}
