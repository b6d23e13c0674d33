package telemetry

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	"wheelly/internal/clock"
)

// ErrUnauthorized is returned by TokenGate.Verify for a missing, malformed,
// forged, or expired token.
var ErrUnauthorized = errors.New("telemetry: unauthorized")

// TokenGate gates the telemetry websocket upgrade with a shared-secret
// token. A token's validity window is expressed the same way a motor
// command's is (§6): an absolute deadline in the reactor's own clock
// domain, checked against the same Source the controller ticks against,
// rather than wall-clock time or a generic JWT claim set.
type TokenGate struct {
	secret []byte
	source clock.Source
}

// NewTokenGate builds a gate that signs and verifies tokens with secret,
// reading "now" from source when checking a deadline.
func NewTokenGate(secret string, source clock.Source) (*TokenGate, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("telemetry: token gate secret must not be empty")
	}
	if source == nil {
		return nil, errors.New("telemetry: token gate requires a clock source")
	}
	return &TokenGate{secret: []byte(secret), source: source}, nil
}

// Sign mints a token for subject (typically an operator or dashboard id)
// valid until validTo, for an operator console to hand out short-lived
// telemetry links.
func (g *TokenGate) Sign(subject string, validTo clock.Time) string {
	payload := subject + "." + strconv.FormatInt(int64(validTo), 10)
	return payload + "." + g.macOf(payload)
}

// Verify checks the token's signature and that its validity deadline has
// not passed; a token is still accepted at the deadline itself.
func (g *TokenGate) Verify(token string) error {
	parts := strings.SplitN(token, ".", 3)
	if len(parts) != 3 || parts[0] == "" {
		return ErrUnauthorized
	}
	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(g.macOf(payload)), []byte(parts[2])) {
		return ErrUnauthorized
	}
	validTo, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ErrUnauthorized
	}
	if g.source.Now().After(clock.Time(validTo)) {
		return ErrUnauthorized
	}
	return nil
}

func (g *TokenGate) macOf(payload string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
