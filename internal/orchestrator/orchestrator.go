// Package orchestrator runs the request/response cycle against the network
// simulator and keeps the last derived routing state.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mtzanidakis/swarmlink/internal/config"
	"github.com/mtzanidakis/swarmlink/internal/routing"
	"github.com/mtzanidakis/swarmlink/internal/swarm"
	"github.com/mtzanidakis/swarmlink/internal/transport"
	"github.com/mtzanidakis/swarmlink/internal/wire"
)

// ErrBusy is returned by RunOnce while a cycle is in flight.
var ErrBusy = errors.New("cycle already in flight")

type Collector interface {
	Collect() []swarm.AgentState
}

type Exchanger interface {
	Exchange(ctx context.Context, req []byte) ([]byte, error)
}

type Publisher interface {
	PublishAdjacency(m routing.Matrix) error
}

type ResultListener func(Result)

// Snapshot is the last-known-good routing state. It is never modified after
// being stored; callers must treat its slices as read-only.
type Snapshot struct {
	Seq       uint64         `json:"seq"`
	Table     routing.Table  `json:"table"`
	Matrix    routing.Matrix `json:"matrix"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type Orchestrator struct {
	cfg       config.SwarmConfig
	collector Collector
	exchanger Exchanger
	publisher Publisher

	busy   atomic.Bool
	latest atomic.Pointer[Snapshot]
	seq    atomic.Uint64
	stats  counters
	wg     sync.WaitGroup

	listeners  []ResultListener
	listenerMu sync.RWMutex

	queueMu    sync.Mutex
	queue      []delivery
	delivering bool
}

// delivery is a finished cycle waiting for its listeners. done, when set, is
// closed once every listener has returned.
type delivery struct {
	res  Result
	done chan struct{}
}

// New returns an orchestrator whose initial snapshot is the all-zero matrix.
// p may be nil when only RunOnce is used.
func New(cfg config.SwarmConfig, c Collector, x Exchanger, p Publisher) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		collector: c,
		exchanger: x,
		publisher: p,
	}
	o.latest.Store(&Snapshot{
		Table:  routing.Table{},
		Matrix: routing.NewMatrix(cfg.Backbone),
	})
	return o
}

// OnResult registers a listener called once per finished cycle. Listeners
// run one at a time in cycle order on a delivery goroutine; a slow listener
// holds back later results but never the next cycle.
func (o *Orchestrator) OnResult(listener ResultListener) {
	o.listenerMu.Lock()
	defer o.listenerMu.Unlock()
	o.listeners = append(o.listeners, listener)
}

// Iteration is one tick. It starts a background cycle unless one is already
// in flight, in which case the tick is dropped, then publishes the current
// snapshot. It never waits for the network.
func (o *Orchestrator) Iteration(ctx context.Context) {
	o.stats.triggers.Add(1)

	if o.busy.CompareAndSwap(false, true) {
		o.dispatch(ctx)
	} else {
		o.stats.dropped.Add(1)
		slog.Debug("iteration skipped, client busy")
	}

	o.publish()
}

// RunOnce performs a full cycle synchronously and returns its result once
// the listeners have seen it.
func (o *Orchestrator) RunOnce(ctx context.Context) (Result, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	seq := o.seq.Add(1)
	req, err := o.encode()
	if err != nil {
		o.busy.Store(false)
		o.stats.encodeErrors.Add(1)
		return Result{}, err
	}
	o.stats.dispatched.Add(1)
	done := make(chan struct{})
	res := o.cycle(ctx, seq, req, done)
	<-done
	return res, nil
}

func (o *Orchestrator) dispatch(ctx context.Context) {
	seq := o.seq.Add(1)
	req, err := o.encode()
	if err != nil {
		o.busy.Store(false)
		o.stats.encodeErrors.Add(1)
		slog.Error("encode request failed", "seq", seq, "error", err)
		return
	}

	o.stats.dispatched.Add(1)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.cycle(ctx, seq, req, nil)
	}()
}

func (o *Orchestrator) encode() ([]byte, error) {
	states := o.collector.Collect()
	if len(states) != o.cfg.Robots {
		slog.Warn("collector returned unexpected agent count", "got", len(states), "expected", o.cfg.Robots)
	}
	agents := make([]wire.Agent, len(states))
	for i, s := range states {
		agents[i] = wire.Agent{
			ID: int32(s.ID),
			X:  float32(s.Position.X),
			Y:  float32(s.Position.Y),
			Z:  float32(s.Position.Z),
		}
	}
	return wire.EncodeSwarm(wire.SwarmMessage{Backbone: uint32(o.cfg.Backbone), Agents: agents})
}

// cycle runs one round trip and queues its result for the listeners before
// releasing the busy flag, so results are delivered in Seq order.
func (o *Orchestrator) cycle(ctx context.Context, seq uint64, req []byte, done chan struct{}) Result {
	defer o.busy.Store(false)
	res := o.roundTrip(ctx, seq, req)
	o.enqueue(res, done)
	return res
}

// roundTrip exchanges req with the simulator and, on success, swaps in the
// derived snapshot.
func (o *Orchestrator) roundTrip(ctx context.Context, seq uint64, req []byte) (res Result) {
	res = Result{ID: uuid.NewString(), Seq: seq, StartedAt: time.Now()}
	defer func() { res.Duration = time.Since(res.StartedAt) }()

	reply, err := o.exchanger.Exchange(ctx, req)
	if err != nil {
		return o.fail(res, err)
	}
	res.Bytes = len(reply)

	msg, err := wire.DecodeNetwork(reply)
	if err != nil {
		return o.fail(res, err)
	}
	res.Reply = msg
	res.Nodes = len(msg.Nodes)
	res.Hops = routing.ComputeHopStats(msg)

	if err := routing.CheckShape(len(msg.Nodes), o.cfg.Robots, o.cfg.Backbone); err != nil {
		res.Mismatch = true
		o.stats.mismatches.Add(1)
		slog.Warn("routing reply shape mismatch", "seq", seq, "error", err)
	}

	table := routing.BuildTable(msg, o.cfg.HopsK)
	snap := &Snapshot{
		Seq:       seq,
		Table:     table,
		Matrix:    routing.BuildAdjacency(table, o.cfg.Backbone),
		UpdatedAt: time.Now(),
	}
	o.latest.Store(snap)
	o.stats.completed.Add(1)

	res.Status = StatusOK
	res.Snapshot = snap
	slog.Debug("routing table updated", "seq", seq, "nodes", res.Nodes, "edges", snap.Matrix.Edges())
	return res
}

func (o *Orchestrator) fail(res Result, err error) Result {
	res.Status = classify(err)
	res.Err = err
	switch res.Status {
	case StatusTimeout:
		o.stats.timeouts.Add(1)
	case StatusDecodeError:
		o.stats.decodeErrors.Add(1)
	case StatusCanceled:
		o.stats.canceled.Add(1)
	default:
		o.stats.transportErrors.Add(1)
	}
	if res.Status == StatusCanceled {
		slog.Info("cycle canceled", "seq", res.Seq)
	} else {
		slog.Warn("cycle failed, keeping previous routing table", "seq", res.Seq, "status", res.Status, "error", err)
	}
	return res
}

func (o *Orchestrator) publish() {
	if o.publisher == nil {
		return
	}
	snap := o.latest.Load()
	if err := o.publisher.PublishAdjacency(snap.Matrix); err != nil {
		o.stats.publishErrors.Add(1)
		slog.Warn("publish routing table failed", "error", err)
	}
}

func (o *Orchestrator) enqueue(res Result, done chan struct{}) {
	o.wg.Add(1)
	o.queueMu.Lock()
	o.queue = append(o.queue, delivery{res: res, done: done})
	start := !o.delivering
	o.delivering = true
	o.queueMu.Unlock()

	if start {
		go o.deliver()
	}
}

// deliver drains the queue and exits once it is empty.
func (o *Orchestrator) deliver() {
	for {
		o.queueMu.Lock()
		if len(o.queue) == 0 {
			o.delivering = false
			o.queueMu.Unlock()
			return
		}
		d := o.queue[0]
		o.queue = o.queue[1:]
		o.queueMu.Unlock()

		o.notify(d.res)
		if d.done != nil {
			close(d.done)
		}
		o.wg.Done()
	}
}

func (o *Orchestrator) notify(res Result) {
	o.listenerMu.RLock()
	listeners := make([]ResultListener, len(o.listeners))
	copy(listeners, o.listeners)
	o.listenerMu.RUnlock()

	for _, l := range listeners {
		l(res)
	}
}

// Latest returns the last-known-good snapshot.
func (o *Orchestrator) Latest() *Snapshot {
	return o.latest.Load()
}

func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

func (o *Orchestrator) Stats() Stats {
	return o.stats.snapshot()
}

// Wait blocks until in-flight cycles and their listeners are done.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func classify(err error) string {
	switch {
	case errors.Is(err, transport.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	case errors.Is(err, transport.ErrTruncated), errors.Is(err, wire.ErrMalformed):
		return StatusDecodeError
	case errors.Is(err, context.Canceled):
		return StatusCanceled
	default:
		return StatusTransportError
	}
}
