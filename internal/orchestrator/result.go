package orchestrator

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/mtzanidakis/swarmlink/internal/routing"
	"github.com/mtzanidakis/swarmlink/internal/store"
	"github.com/mtzanidakis/swarmlink/internal/wire"
)

const (
	StatusOK             = "ok"
	StatusTimeout        = "timeout"
	StatusDecodeError    = "decode_error"
	StatusTransportError = "transport_error"
	StatusCanceled       = "canceled"
)

// Result describes one finished cycle. Snapshot and Reply are nil unless the
// cycle succeeded.
type Result struct {
	ID        string
	Seq       uint64
	Status    string
	Err       error
	StartedAt time.Time
	Duration  time.Duration
	Bytes     int
	Nodes     int
	Mismatch  bool
	Hops      routing.HopStats
	Reply     *wire.SwarmNetworkMessage
	Snapshot  *Snapshot
}

func (r Result) OK() bool {
	return r.Status == StatusOK
}

// CycleEvent is the bus payload announcing a finished cycle.
type CycleEvent struct {
	ID         string    `json:"id"`
	Seq        uint64    `json:"seq"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Nodes      int       `json:"nodes"`
	Bytes      int       `json:"bytes"`
	Edges      int       `json:"edges"`
	Clusters   int       `json:"clusters"`
	AvgHops    float64   `json:"avg_hops"`
	Mismatch   bool      `json:"mismatch"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

func (r Result) Event() CycleEvent {
	ev := CycleEvent{
		ID:         r.ID,
		Seq:        r.Seq,
		Status:     r.Status,
		Nodes:      r.Nodes,
		Bytes:      r.Bytes,
		AvgHops:    r.Hops.Average,
		Mismatch:   r.Mismatch,
		DurationMs: r.Duration.Milliseconds(),
		Timestamp:  r.StartedAt,
	}
	if r.Err != nil {
		ev.Error = r.Err.Error()
	}
	if r.Snapshot != nil {
		ev.Edges = r.Snapshot.Matrix.Edges()
		ev.Clusters = len(routing.Components(r.Snapshot.Matrix))
	}
	return ev
}

// Record converts the result into its persisted form.
func (r Result) Record() *store.CycleRecord {
	ev := r.Event()
	rec := &store.CycleRecord{
		ID:         ev.ID,
		Seq:        ev.Seq,
		Status:     ev.Status,
		Error:      ev.Error,
		Nodes:      ev.Nodes,
		Bytes:      ev.Bytes,
		Edges:      ev.Edges,
		Clusters:   ev.Clusters,
		AvgHops:    ev.AvgHops,
		Mismatch:   ev.Mismatch,
		DurationMs: ev.DurationMs,
		StartedAt:  r.StartedAt,
	}
	if r.Snapshot != nil {
		if data, err := json.Marshal(r.Snapshot.Matrix.Rows()); err == nil {
			rec.Matrix = data
		}
	}
	return rec
}

type Stats struct {
	Triggers        uint64 `json:"triggers"`
	Dispatched      uint64 `json:"dispatched"`
	Dropped         uint64 `json:"dropped"`
	Completed       uint64 `json:"completed"`
	Timeouts        uint64 `json:"timeouts"`
	DecodeErrors    uint64 `json:"decode_errors"`
	TransportErrors uint64 `json:"transport_errors"`
	EncodeErrors    uint64 `json:"encode_errors"`
	Canceled        uint64 `json:"canceled"`
	Mismatches      uint64 `json:"mismatches"`
	PublishErrors   uint64 `json:"publish_errors"`
}

type counters struct {
	triggers        atomic.Uint64
	dispatched      atomic.Uint64
	dropped         atomic.Uint64
	completed       atomic.Uint64
	timeouts        atomic.Uint64
	decodeErrors    atomic.Uint64
	transportErrors atomic.Uint64
	encodeErrors    atomic.Uint64
	canceled        atomic.Uint64
	mismatches      atomic.Uint64
	publishErrors   atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Triggers:        c.triggers.Load(),
		Dispatched:      c.dispatched.Load(),
		Dropped:         c.dropped.Load(),
		Completed:       c.completed.Load(),
		Timeouts:        c.timeouts.Load(),
		DecodeErrors:    c.decodeErrors.Load(),
		TransportErrors: c.transportErrors.Load(),
		EncodeErrors:    c.encodeErrors.Load(),
		Canceled:        c.canceled.Load(),
		Mismatches:      c.mismatches.Load(),
		PublishErrors:   c.publishErrors.Load(),
	}
}
