package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mtzanidakis/swarmlink/internal/config"
	"github.com/mtzanidakis/swarmlink/internal/natsbus"
	"github.com/mtzanidakis/swarmlink/internal/orchestrator"
	"github.com/mtzanidakis/swarmlink/internal/store"
	"github.com/mtzanidakis/swarmlink/internal/swarm"
	"github.com/nats-io/nats.go"
)

// CycleSource is the live orchestrator state.
type CycleSource interface {
	Latest() *orchestrator.Snapshot
	Stats() orchestrator.Stats
	Busy() bool
}

// AgentSource is the tracked swarm state.
type AgentSource interface {
	Collect() []swarm.AgentState
	LastSeen(id int) time.Time
}

type Server struct {
	store     *store.Store
	nats      *natsbus.Client
	cycles    CycleSource
	agents    AgentSource
	hub       *Hub
	cfg       config.WebConfig
	version   string
	startedAt time.Time
	sub       *nats.Subscription
}

// NewServer builds the API server. The store, NATS client and agent source
// may be nil; the matching endpoints then report them as unavailable.
func NewServer(s *store.Store, nc *natsbus.Client, cycles CycleSource, agents AgentSource, cfg config.WebConfig, version string) *Server {
	return &Server{
		store:     s,
		nats:      nc,
		cycles:    cycles,
		agents:    agents,
		hub:       NewHub(),
		cfg:       cfg,
		version:   version,
		startedAt: time.Now(),
	}
}

// Handler returns the routed API with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerAPI(mux)
	mux.HandleFunc("/api/ws", s.handleWebSocket)
	return s.withMiddleware(mux)
}

func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	// Subscribe to NATS events and broadcast to WebSocket
	if err := s.subscribeEvents(); err != nil {
		slog.Error("web event subscription failed", "error", err)
	}

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	server := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		if s.sub != nil {
			_ = s.sub.Unsubscribe()
		}
		server.Close()
	}()

	slog.Info("web server listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		if strings.HasPrefix(r.URL.Path, "/api/") && s.cfg.Auth != "" && !s.checkAuth(r) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="swarmlink"`)
			jsonError(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// checkAuth accepts the configured password as a bearer token, as a Basic
// Auth password, or as the "token" query parameter (browsers cannot set
// headers on websocket upgrades).
func (s *Server) checkAuth(r *http.Request) bool {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return s.passwordMatches(token)
	}
	if _, pass, ok := r.BasicAuth(); ok {
		return s.passwordMatches(pass)
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return s.passwordMatches(token)
	}
	return false
}

func (s *Server) passwordMatches(candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(s.cfg.Auth)) == 1
}

// subscribeEvents forwards cycle events from the bus to websocket clients.
func (s *Server) subscribeEvents() error {
	if s.nats == nil {
		return nil
	}
	sub, err := s.nats.Subscribe(natsbus.TopicEventsCycle, func(msg *nats.Msg) {
		var ev orchestrator.CycleEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Warn("invalid cycle event payload", "subject", msg.Subject, "error", err)
			return
		}
		s.hub.Broadcast(Event{Type: EventCycle, Payload: ev})
	})
	if err != nil {
		return fmt.Errorf("subscribe events: %w", err)
	}
	s.sub = sub
	return nil
}
