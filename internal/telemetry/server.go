package telemetry

import (
	"encoding/json"
	"net/http"

	"github.com/golang/snappy"
	"github.com/gorilla/websocket"

	"wheelly/internal/logging"
)

// Server upgrades HTTP connections to websockets and relays a telemetry
// Stream to each connected client, snappy-compressing each frame before it
// goes on the wire. A bearer token, when a gate is configured, gates the
// upgrade.
type Server struct {
	stream   *Stream
	gate     *TokenGate
	upgrader websocket.Upgrader
	log      *logging.Logger
}

// NewServer constructs a telemetry server fanning out stream to authorized
// websocket clients. gate may be nil to disable authentication (e.g. local
// development); log may be nil to fall back to the package-level global
// logger.
func NewServer(stream *Stream, gate *TokenGate, log *logging.Logger) *Server {
	if log == nil {
		log = logging.L()
	}
	return &Server{
		stream:   stream,
		gate:     gate,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
		log:      log,
	}
}

// ServeHTTP implements http.Handler: it checks the bearer token (if a gate
// is configured), upgrades the connection, and streams snapshots until the
// client disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.gate != nil {
		token := r.URL.Query().Get("token")
		if err := s.gate.Verify(token); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("telemetry upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	sub, err := s.stream.Subscribe(32)
	if err != nil {
		s.log.Warn("telemetry subscribe failed", logging.Error(err))
		return
	}
	defer sub.Close()

	for snap := range sub.Events() {
		payload, err := json.Marshal(snap)
		if err != nil {
			s.log.Error("telemetry encode failed", logging.Error(err))
			continue
		}
		compressed := snappy.Encode(nil, payload)
		if err := conn.WriteMessage(websocket.BinaryMessage, compressed); err != nil {
			s.log.Debug("telemetry client disconnected", logging.Error(err))
			return
		}
	}
}
