package trace

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/mtzanidakis/swarmlink/internal/orchestrator"
	"github.com/mtzanidakis/swarmlink/internal/routing"
	"github.com/mtzanidakis/swarmlink/internal/wire"
)

func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	for i := range 3 {
		if err := w.Write(Entry{ID: "c", Seq: uint64(i + 1), Status: "ok"}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(dir)
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}

	var seqs []uint64
	err = ReadFile(files[0], func(e Entry) error {
		seqs = append(seqs, e.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(seqs, []uint64{1, 2, 3}) {
		t.Errorf("expected [1 2 3], got %v", seqs)
	}
}

func TestRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	now := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	if err := w.Write(Entry{Seq: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(Entry{Seq: 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.Close()

	files, _ := Files(dir)
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %v", files)
	}
	var got []uint64
	for _, f := range files {
		if err := ReadFile(f, func(e Entry) error { got = append(got, e.Seq); return nil }); err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
	}
	if !reflect.DeepEqual(got, []uint64{1, 2}) {
		t.Errorf("expected [1 2] across files, got %v", got)
	}
}

func TestAppendAfterReopen(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := range 2 {
		w := NewWriter(dir)
		w.now = func() time.Time { return now }
		if err := w.Write(Entry{Seq: uint64(i + 1)}); err != nil {
			t.Fatalf("write: %v", err)
		}
		w.Close()
	}

	files, _ := Files(dir)
	var n int
	if err := ReadFile(files[0], func(Entry) error { n++; return nil }); err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 entries across appended frames, got %d", n)
	}
}

func TestReadFileStopsOnCallbackError(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	w.Write(Entry{Seq: 1})
	w.Write(Entry{Seq: 2})
	w.Close()

	files, _ := Files(dir)
	stop := errors.New("stop")
	calls := 0
	err := ReadFile(files[0], func(Entry) error { calls++; return stop })
	if !errors.Is(err, stop) {
		t.Errorf("expected stop error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestReadFileMissing(t *testing.T) {
	if err := ReadFile("/nonexistent/trace.jsonl.zst", func(Entry) error { return nil }); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFromResult(t *testing.T) {
	reply := &wire.SwarmNetworkMessage{Nodes: []wire.NodeRoutingTable{{Entries: []wire.RoutingEntry{{Destination: 1, Distance: 1}}}}}
	table := routing.Table{{1}, {}}
	res := orchestrator.Result{
		ID:       "abc",
		Seq:      7,
		Status:   orchestrator.StatusOK,
		Duration: 12 * time.Millisecond,
		Reply:    reply,
		Snapshot: &orchestrator.Snapshot{Table: table, Matrix: routing.BuildAdjacency(table, 2)},
	}

	e := FromResult(res)
	if e.ID != "abc" || e.Seq != 7 || e.DurationMs != 12 {
		t.Errorf("unexpected entry %+v", e)
	}
	if !reflect.DeepEqual(e.Matrix, [][]int{{0, 1}, {0, 0}}) {
		t.Errorf("unexpected matrix %v", e.Matrix)
	}

	failed := FromResult(orchestrator.Result{Status: orchestrator.StatusTimeout, Err: errors.New("timed out")})
	if failed.Error != "timed out" || failed.Matrix != nil {
		t.Errorf("unexpected failed entry %+v", failed)
	}
}
