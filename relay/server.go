package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"stagecraft"
	"stagecraft/logging"
)

const (
	// EventSessionAccepted is published when a websocket client joins the
	// lobby.
	EventSessionAccepted logging.EventType = "relay.session_accepted"
	// EventSessionRefused is published when a client is turned away from a
	// full lobby.
	EventSessionRefused logging.EventType = "relay.session_refused"
)

// AcceptedClient is one connected player, ready to be wrapped in a
// ServerActor.
type AcceptedClient struct {
	Pipe    stagecraft.Pipe
	Session string
}

// Server accepts websocket clients until the lobby is full. It serves three
// endpoints: /ws for game traffic, /health for liveness probes, and
// /diagnostics for the telemetry counters.
type Server struct {
	cfg       ServerConfig
	log       logging.Publisher
	telemetry *stagecraft.Telemetry
	upgrader  websocket.Upgrader
	accepted  chan AcceptedClient
	started   time.Time
}

// NewServer builds the accept layer. Log and telemetry may be nil.
func NewServer(cfg ServerConfig, log logging.Publisher, telemetry *stagecraft.Telemetry) *Server {
	return &Server{
		cfg:       cfg,
		log:       log,
		telemetry: telemetry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		accepted: make(chan AcceptedClient, cfg.Clients),
		started:  time.Now(),
	}
}

// Handler returns the server's HTTP routes, ready for http.ListenAndServe
// or an httptest server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/diagnostics", s.handleDiagnostics)
	return mux
}

// AwaitClients blocks until the lobby is full, returning one accepted
// client per seat. The config's accept timeout applies unless the context
// expires first.
func (s *Server) AwaitClients(ctx context.Context) ([]AcceptedClient, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.AcceptTimeout)
	defer cancel()

	clients := make([]AcceptedClient, 0, s.cfg.Clients)
	for len(clients) < s.cfg.Clients {
		select {
		case client := <-s.accepted:
			clients = append(clients, client)
		case <-ctx.Done():
			for _, client := range clients {
				client.Pipe.Close()
			}
			return nil, ctx.Err()
		}
	}
	return clients, nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	session := ulid.Make().String()
	client := AcceptedClient{Pipe: NewSocketPipe(conn), Session: session}

	select {
	case s.accepted <- client:
		s.publish(EventSessionAccepted, session)
	default:
		s.publish(EventSessionRefused, session)
		message := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "lobby full")
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	payload := struct {
		UptimeSeconds float64                      `json:"uptimeSeconds"`
		Telemetry     stagecraft.TelemetrySnapshot `json:"telemetry"`
	}{
		UptimeSeconds: time.Since(s.started).Seconds(),
		Telemetry:     s.telemetry.Snapshot(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func (s *Server) publish(eventType logging.EventType, session string) {
	if s.log == nil {
		return
	}
	s.log.Publish(context.Background(), logging.Event{
		Type:     eventType,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Session:  session,
	})
}
