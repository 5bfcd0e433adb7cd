package swarm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mtzanidakis/swarmlink/internal/natsbus"
	"github.com/nats-io/nats.go"
)

// Tracker keeps the latest reported position of every managed agent.
type Tracker struct {
	mu      sync.RWMutex
	states  []AgentState
	updated []time.Time
}

func NewTracker(robots, backbone int) *Tracker {
	t := &Tracker{
		states:  make([]AgentState, robots),
		updated: make([]time.Time, robots),
	}
	for i := range t.states {
		t.states[i] = AgentState{ID: i, Backbone: i < backbone}
	}
	return t
}

// Update records the position of agent id.
func (t *Tracker) Update(id int, pos Vec3) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id < 0 || id >= len(t.states) {
		return fmt.Errorf("agent %d out of range [0, %d)", id, len(t.states))
	}
	t.states[id].Position = pos
	t.updated[id] = time.Now()
	return nil
}

// Collect returns a snapshot of every agent, ordered by id. Agents that have
// not reported yet are at the origin.
func (t *Tracker) Collect() []AgentState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]AgentState, len(t.states))
	copy(out, t.states)
	return out
}

// LastSeen returns when agent id last reported, zero if never.
func (t *Tracker) LastSeen(id int) time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id < 0 || id >= len(t.updated) {
		return time.Time{}
	}
	return t.updated[id]
}

// Subscribe feeds the tracker from swarm.agent.<id>.state messages.
func (t *Tracker) Subscribe(client *natsbus.Client) (*nats.Subscription, error) {
	return client.Subscribe(natsbus.TopicAgentStateAll, t.handleState)
}

func (t *Tracker) handleState(msg *nats.Msg) {
	id, err := agentIDFromSubject(msg.Subject)
	if err != nil {
		slog.Warn("ignoring agent state", "subject", msg.Subject, "error", err)
		return
	}
	var pos Vec3
	if err := json.Unmarshal(msg.Data, &pos); err != nil {
		slog.Warn("ignoring agent state", "agent", id, "error", err)
		return
	}
	if err := t.Update(id, pos); err != nil {
		slog.Warn("ignoring agent state", "agent", id, "error", err)
	}
}

func agentIDFromSubject(subject string) (int, error) {
	parts := strings.Split(subject, ".")
	if len(parts) != 4 || parts[0] != "swarm" || parts[1] != "agent" || parts[3] != "state" {
		return 0, fmt.Errorf("unexpected subject %q", subject)
	}
	id, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, fmt.Errorf("parse agent id: %w", err)
	}
	return id, nil
}
