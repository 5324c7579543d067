// Package app exposes the combat authority over HTTP: the websocket connect
// endpoint, the debug state endpoint, and health checks.
package app

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/louisbranch/skirmish/internal/combat/session"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// Server serves the combat transport and debug endpoints.
type Server struct {
	registry *session.Registry
	policy   *originPolicy
	upgrader websocket.Upgrader
}

// NewServer wires the HTTP surface around a session registry.
func NewServer(registry *session.Registry, allowedOrigins []string) *Server {
	policy := newOriginPolicy(allowedOrigins)
	return &Server{
		registry: registry,
		policy:   policy,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin header.
				return origin == "" || policy.allowed(origin)
			},
		},
	}
}

// Handler builds the route table with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/connect", s.handleConnect)
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/health", s.handleHealth)
	return s.policy.cors(mux)
}

// handleConnect upgrades to a websocket and attaches the client to its
// session. The URL carries playerId, isGM, and an optional declared entity
// list.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	campaignID := query.Get("campaignId")
	combatID := query.Get("combatId")

	sess, err := s.registry.Get(r.Context(), campaignID, combatID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	meta := session.Metadata{
		PlayerID: query.Get("playerId"),
		IsGM:     query.Get("isGM") == "true",
	}
	if declared := query.Get("entities"); declared != "" {
		for _, id := range strings.Split(declared, ",") {
			if id = strings.TrimSpace(id); id != "" {
				meta.ControlledEntityIDs = append(meta.ControlledEntityIDs, id)
			}
		}
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("app: upgrade %s/%s: %v", campaignID, combatID, err)
		return
	}

	connID, err := sess.Connect(r.Context(), meta, session.NewWebsocketTransport(ws))
	if err != nil {
		log.Printf("app: attach %s/%s: %v", campaignID, combatID, err)
		_ = ws.Close()
		return
	}

	go s.readLoop(sess, connID, ws)
}

// readLoop pumps inbound frames into the session until the connection
// drops. Transport errors detach silently.
func (s *Server) readLoop(sess *session.Session, connID string, ws *websocket.Conn) {
	defer sess.Disconnect(connID)
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		sess.Submit(connID, raw)
	}
}

// handleState returns the session's debug snapshot.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(r.Context(), r.URL.Query().Get("campaignId"), r.URL.Query().Get("combatId"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	snapshot, err := sess.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.registry.SessionCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("app: encode response: %v", err)
	}
}

// ListenAndServe runs the HTTP server until ctx is canceled.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{Addr: addr, Handler: handler}
	errs := make(chan error, 1)
	go func() {
		errs <- server.ListenAndServe()
	}()
	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
