package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mtzanidakis/swarmlink/internal/routing"
	"github.com/mtzanidakis/swarmlink/internal/store"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	// Live state
	mux.HandleFunc("GET /api/status", s.getStatus)
	mux.HandleFunc("GET /api/adjacency", s.getAdjacency)
	mux.HandleFunc("GET /api/routing-table", s.getRoutingTable)
	mux.HandleFunc("GET /api/agents", s.listAgents)

	// History
	mux.HandleFunc("GET /api/cycles", s.listCycles)
	mux.HandleFunc("GET /api/cycles/{id}", s.getCycle)
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.cycles.Latest()

	status := map[string]any{
		"status":    "ok",
		"version":   s.version,
		"uptime":    formatUptime(time.Since(s.startedAt)),
		"busy":      s.cycles.Busy(),
		"stats":     s.cycles.Stats(),
		"seq":       snap.Seq,
		"edges":     snap.Matrix.Edges(),
		"nats":      "disabled",
		"timestamp": time.Now().UTC(),
	}
	if !snap.UpdatedAt.IsZero() {
		status["updated_at"] = snap.UpdatedAt.UTC()
	}
	if s.nats != nil {
		status["nats"] = "ok"
	}
	if s.store != nil {
		if counts, err := s.store.CountByStatus(); err == nil {
			status["history"] = counts
		}
	}

	jsonResponse(w, status)
}

func (s *Server) getAdjacency(w http.ResponseWriter, r *http.Request) {
	snap := s.cycles.Latest()

	if r.URL.Query().Get("format") == "multiarray" {
		jsonResponse(w, snap.Matrix.MultiArray())
		return
	}

	jsonResponse(w, map[string]any{
		"seq":        snap.Seq,
		"n":          snap.Matrix.N,
		"rows":       snap.Matrix.Rows(),
		"edges":      snap.Matrix.Edges(),
		"symmetric":  snap.Matrix.Symmetric(),
		"components": routing.Components(snap.Matrix),
	})
}

func (s *Server) getRoutingTable(w http.ResponseWriter, r *http.Request) {
	snap := s.cycles.Latest()
	table := snap.Table
	if table == nil {
		table = routing.Table{}
	}
	jsonResponse(w, map[string]any{
		"seq":   snap.Seq,
		"table": table,
	})
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	if s.agents == nil {
		jsonResponse(w, []any{})
		return
	}

	states := s.agents.Collect()
	out := make([]map[string]any, 0, len(states))
	for _, a := range states {
		entry := map[string]any{
			"id":       a.ID,
			"position": a.Position,
			"backbone": a.Backbone,
		}
		if seen := s.agents.LastSeen(a.ID); !seen.IsZero() {
			entry["last_seen"] = seen.UTC()
		}
		out = append(out, entry)
	}
	jsonResponse(w, out)
}

func (s *Server) listCycles(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "cycle history disabled", http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, 1000)
	}

	cycles, err := s.store.ListCycles(limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if cycles == nil {
		cycles = []store.CycleRecord{}
	}
	jsonResponse(w, cycles)
}

func (s *Server) getCycle(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "cycle history disabled", http.StatusServiceUnavailable)
		return
	}

	cycle, err := s.store.GetCycle(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if cycle == nil {
		jsonError(w, "cycle not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, cycle)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
