package trace

import (
	"time"

	"github.com/mtzanidakis/swarmlink/internal/orchestrator"
	"github.com/mtzanidakis/swarmlink/internal/wire"
)

type Entry struct {
	ID         string                    `json:"id"`
	Seq        uint64                    `json:"seq"`
	Status     string                    `json:"status"`
	Error      string                    `json:"error,omitempty"`
	StartedAt  time.Time                 `json:"started_at"`
	DurationMs int64                     `json:"duration_ms"`
	Bytes      int                       `json:"bytes"`
	Mismatch   bool                      `json:"mismatch,omitempty"`
	Reply      *wire.SwarmNetworkMessage `json:"reply,omitempty"`
	Table      [][]int                   `json:"table,omitempty"`
	Matrix     [][]int                   `json:"matrix,omitempty"`
}

func FromResult(r orchestrator.Result) Entry {
	e := Entry{
		ID:         r.ID,
		Seq:        r.Seq,
		Status:     r.Status,
		StartedAt:  r.StartedAt,
		DurationMs: r.Duration.Milliseconds(),
		Bytes:      r.Bytes,
		Mismatch:   r.Mismatch,
		Reply:      r.Reply,
	}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	if r.Snapshot != nil {
		e.Table = r.Snapshot.Table
		e.Matrix = r.Snapshot.Matrix.Rows()
	}
	return e
}
