package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mtzanidakis/swarmlink/internal/orchestrator"
	"github.com/mtzanidakis/swarmlink/internal/routing"
)

func TestChunkMessage(t *testing.T) {
	// Short message
	chunks := chunkMessage("hello", 4096)
	if len(chunks) != 1 {
		t.Errorf("expected 1 chunk, got %d", len(chunks))
	}

	// Exact limit
	msg := strings.Repeat("a", 4096)
	chunks = chunkMessage(msg, 4096)
	if len(chunks) != 1 {
		t.Errorf("expected 1 chunk for exact limit, got %d", len(chunks))
	}

	// Over limit
	chunks = chunkMessage(strings.Repeat("a", 8192), 4096)
	if len(chunks) != 2 {
		t.Errorf("expected 2 chunks, got %d", len(chunks))
	}

	// Split at newline
	b := []byte(strings.Repeat("a", 5000))
	b[3000] = '\n'
	chunks = chunkMessage(string(b), 4096)
	if len(chunks) != 2 {
		t.Errorf("expected 2 chunks with newline split, got %d", len(chunks))
	}
	if len(chunks[0]) != 3001 { // Up to and including the newline
		t.Errorf("expected first chunk length 3001, got %d", len(chunks[0]))
	}
}

type recorder struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (r *recorder) notify(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, text)
	return r.err
}

func ok(seq uint64) orchestrator.Result {
	return orchestrator.Result{Seq: seq, Status: orchestrator.StatusOK}
}

func failed(seq uint64) orchestrator.Result {
	return orchestrator.Result{Seq: seq, Status: orchestrator.StatusTimeout, Err: errors.New("simulator reply timed out")}
}

func TestAlerterThreshold(t *testing.T) {
	rec := &recorder{}
	a := NewAlerter(3, rec.notify)
	ctx := context.Background()

	a.Observe(ctx, failed(1))
	a.Observe(ctx, failed(2))
	if len(rec.msgs) != 0 {
		t.Fatalf("expected no alert below threshold, got %v", rec.msgs)
	}

	a.Observe(ctx, failed(3))
	if len(rec.msgs) != 1 {
		t.Fatalf("expected one alert, got %d", len(rec.msgs))
	}
	if !strings.Contains(rec.msgs[0], "3 consecutive cycles failed") || !strings.Contains(rec.msgs[0], "timed out") {
		t.Errorf("unexpected alert %q", rec.msgs[0])
	}

	a.Observe(ctx, failed(4))
	a.Observe(ctx, failed(5))
	if len(rec.msgs) != 1 {
		t.Errorf("expected a single alert per failure run, got %d", len(rec.msgs))
	}

	a.Observe(ctx, ok(6))
	if len(rec.msgs) != 2 {
		t.Fatalf("expected recovery notice, got %d messages", len(rec.msgs))
	}
	if !strings.Contains(rec.msgs[1], "recovered at cycle 6 after 5 failed cycles") {
		t.Errorf("unexpected recovery %q", rec.msgs[1])
	}

	a.Observe(ctx, ok(7))
	if len(rec.msgs) != 2 {
		t.Errorf("expected no message for steady success, got %d", len(rec.msgs))
	}
}

func TestAlerterResetsBelowThreshold(t *testing.T) {
	rec := &recorder{}
	a := NewAlerter(2, rec.notify)
	ctx := context.Background()

	a.Observe(ctx, failed(1))
	a.Observe(ctx, ok(2))
	a.Observe(ctx, failed(3))
	if len(rec.msgs) != 0 {
		t.Errorf("expected success to reset the run, got %v", rec.msgs)
	}
}

func TestAlerterIgnoresCanceled(t *testing.T) {
	rec := &recorder{}
	a := NewAlerter(1, rec.notify)
	a.Observe(context.Background(), orchestrator.Result{Status: orchestrator.StatusCanceled})
	if len(rec.msgs) != 0 {
		t.Errorf("expected canceled cycles to be ignored, got %v", rec.msgs)
	}
}

func TestAlerterDisabled(t *testing.T) {
	rec := &recorder{}
	a := NewAlerter(0, rec.notify)
	a.Observe(context.Background(), failed(1))
	if len(rec.msgs) != 0 {
		t.Errorf("expected no alerts with zero threshold, got %v", rec.msgs)
	}
}

func TestFormatStatus(t *testing.T) {
	text := formatStatus(&orchestrator.Snapshot{}, orchestrator.Stats{Dispatched: 4, Completed: 3, Dropped: 1}, false)
	if !strings.Contains(text, "none received yet") {
		t.Errorf("expected empty-table notice, got %q", text)
	}
	if !strings.Contains(text, "4 dispatched, 3 completed, 1 dropped") {
		t.Errorf("unexpected counters in %q", text)
	}

	snap := &orchestrator.Snapshot{
		Seq:       9,
		Matrix:    routing.BuildAdjacency(routing.Table{{1}, {0}}, 2),
		UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	text = formatStatus(snap, orchestrator.Stats{}, true)
	if !strings.Contains(text, "cycle 9, 2 links, updated 2026-01-02T03:04:05Z") {
		t.Errorf("unexpected status %q", text)
	}
	if !strings.Contains(text, "In flight: true") {
		t.Errorf("expected busy flag in %q", text)
	}
}

func TestFormatMatrix(t *testing.T) {
	snap := &orchestrator.Snapshot{Seq: 2, Matrix: routing.BuildAdjacency(routing.Table{{1}, {0}}, 2)}
	if got := formatMatrix(snap); got != "Adjacency (cycle 2):\n0 1\n1 0\n" {
		t.Errorf("unexpected rendering %q", got)
	}
	if got := formatMatrix(&orchestrator.Snapshot{}); got != "Adjacency matrix is empty" {
		t.Errorf("unexpected empty rendering %q", got)
	}
}
