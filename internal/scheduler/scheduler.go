package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mtzanidakis/swarmlink/internal/config"
	"github.com/mtzanidakis/swarmlink/internal/schedule"
)

type Iterator interface {
	Iteration(ctx context.Context)
}

// Pruner deletes cycle history older than a cutoff.
type Pruner interface {
	DeleteCyclesBefore(cutoff time.Time) (int64, error)
}

type Scheduler struct {
	iter     Iterator
	interval time.Duration

	pruner    Pruner
	retention *schedule.Schedule
	keep      time.Duration
}

func New(iter Iterator, interval time.Duration) *Scheduler {
	return &Scheduler{iter: iter, interval: interval}
}

// WithRetention enables periodic pruning of cycle history. An empty schedule
// or a zero keep window leaves pruning disabled.
func (s *Scheduler) WithRetention(p Pruner, cfg config.RetentionConfig) error {
	if p == nil || cfg.Schedule == "" || cfg.Keep <= 0 {
		return nil
	}
	sched, err := schedule.Parse(cfg.Schedule)
	if err != nil {
		return fmt.Errorf("parse retention schedule: %w", err)
	}
	s.pruner = p
	s.retention = sched
	s.keep = cfg.Keep
	return nil
}

// Start ticks the iterator at the configured interval until ctx is done.
// Ticks missed while an iteration runs are coalesced by the ticker. Retention
// pruning runs in its own goroutine, which Start waits for before returning.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.interval = 500 * time.Millisecond
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	if s.retention != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.pruneLoop(ctx)
		}()
	}
	defer wg.Wait()

	slog.Info("scheduler started", "interval", s.interval, "retention", s.retentionString())

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.iter.Iteration(ctx)
		}
	}
}

func (s *Scheduler) pruneLoop(ctx context.Context) {
	timer := time.NewTimer(s.untilNextPrune())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.prune()
			timer.Reset(s.untilNextPrune())
		}
	}
}

func (s *Scheduler) untilNextPrune() time.Duration {
	now := time.Now()
	next, err := s.retention.Next(now)
	if err != nil {
		slog.Error("retention schedule failed, retrying in an hour", "error", err)
		return time.Hour
	}
	return next.Sub(now)
}

func (s *Scheduler) prune() {
	cutoff := time.Now().Add(-s.keep)
	n, err := s.pruner.DeleteCyclesBefore(cutoff)
	if err != nil {
		slog.Error("prune cycle history failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("pruned cycle history", "deleted", n, "before", cutoff.Format(time.RFC3339))
	}
}

func (s *Scheduler) retentionString() string {
	if s.retention == nil {
		return "disabled"
	}
	return s.retention.String()
}
