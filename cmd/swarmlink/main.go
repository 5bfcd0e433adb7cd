package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mtzanidakis/swarmlink/internal/config"
	"github.com/mtzanidakis/swarmlink/internal/natsbus"
	"github.com/mtzanidakis/swarmlink/internal/orchestrator"
	"github.com/mtzanidakis/swarmlink/internal/scheduler"
	"github.com/mtzanidakis/swarmlink/internal/store"
	"github.com/mtzanidakis/swarmlink/internal/swarm"
	"github.com/mtzanidakis/swarmlink/internal/telegram"
	"github.com/mtzanidakis/swarmlink/internal/trace"
	"github.com/mtzanidakis/swarmlink/internal/transport"
	"github.com/mtzanidakis/swarmlink/internal/web"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("swarmlink %s\n", version)
	case "run":
		if err := runService(); err != nil {
			slog.Error("service failed", "error", err)
			os.Exit(1)
		}
	case "probe":
		if err := runProbe(); err != nil {
			slog.Error("probe failed", "error", err)
			os.Exit(1)
		}
	case "trace":
		if err := runTrace(os.Args[2:], os.Stdout); err != nil {
			slog.Error("trace failed", "error", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: swarmlink <command>

Commands:
  run              Poll the network simulator and publish the routing table
  probe            Run a single exchange with the simulator and print the result
  trace -f FILE    Print a recorded cycle trace
  version          Print version
`)
}

func setupLogging(cfg config.LogConfig) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	slog.SetDefault(slog.New(handler))
}

func runService() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.Log)

	slog.Info("starting swarmlink", "version", version,
		"robots", cfg.Swarm.Robots, "backbone", cfg.Swarm.Backbone, "hops_k", cfg.Swarm.HopsK)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite store
	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	// NATS (embedded unless an external URL is configured)
	bus, err := natsbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer bus.Close()
	slog.Info("nats ready", "url", bus.ClientURL(), "embedded", bus.Embedded())

	nc, err := natsbus.NewClient(bus)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer nc.Close()

	// Agent positions
	tracker := swarm.NewTracker(cfg.Swarm.Robots, cfg.Swarm.Backbone)
	sub, err := tracker.Subscribe(nc)
	if err != nil {
		return fmt.Errorf("subscribe agent states: %w", err)
	}
	defer sub.Unsubscribe()

	// Simulator endpoint; a socket that cannot be set up is fatal.
	client, err := transport.New(cfg.Simulator)
	if err != nil {
		return fmt.Errorf("init simulator client: %w", err)
	}
	defer client.Close()
	slog.Info("simulator client ready", "addr", client.Addr())

	orch := orchestrator.New(cfg.Swarm, tracker, client, nc)
	orch.OnResult(func(res orchestrator.Result) {
		if res.Status == orchestrator.StatusCanceled {
			return
		}
		if err := db.SaveCycle(res.Record()); err != nil {
			slog.Error("save cycle failed", "id", res.ID, "error", err)
		}
		if err := nc.PublishJSON(natsbus.TopicCycleEvent(res.Status), res.Event()); err != nil {
			slog.Warn("publish cycle event failed", "id", res.ID, "error", err)
		}
	})

	// Cycle trace
	if cfg.Trace.Enabled {
		tw := trace.NewWriter(cfg.Trace.Dir)
		defer tw.Close()
		orch.OnResult(func(res orchestrator.Result) {
			if res.Status == orchestrator.StatusCanceled {
				return
			}
			if err := tw.Write(trace.FromResult(res)); err != nil {
				slog.Error("write trace failed", "error", err)
			}
		})
		slog.Info("cycle trace enabled", "dir", cfg.Trace.Dir)
	}

	// Telegram alerts
	if cfg.Telegram.Token != "" {
		bot, err := telegram.NewBot(cfg.Telegram, orch)
		if err != nil {
			return fmt.Errorf("init telegram bot: %w", err)
		}
		go func() {
			if err := bot.Start(ctx); err != nil {
				slog.Error("telegram bot error", "error", err)
			}
		}()
		alerter := telegram.NewAlerter(cfg.Telegram.FailureThreshold, bot.Notify)
		orch.OnResult(func(res orchestrator.Result) {
			actx, acancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer acancel()
			alerter.Observe(actx, res)
		})
		slog.Info("telegram bot started", "failure_threshold", cfg.Telegram.FailureThreshold)
	} else {
		slog.Warn("telegram token not set, alerts disabled")
	}

	// Web API
	if cfg.Web.Enabled {
		srv := web.NewServer(db, nc, orch, tracker, cfg.Web, version)
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
		slog.Info("web server started", "port", cfg.Web.Port)
	}

	// Scheduler
	sched := scheduler.New(orch, cfg.Swarm.Interval())
	if err := sched.WithRetention(db, cfg.Retention); err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	schedDone := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(schedDone)
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)
	cancel()

	// No new cycles start once the scheduler has returned.
	<-schedDone
	orch.Wait()

	stats := orch.Stats()
	slog.Info("swarmlink stopped", "completed", stats.Completed, "dropped", stats.Dropped,
		"timeouts", stats.Timeouts, "decode_errors", stats.DecodeErrors)
	return nil
}
