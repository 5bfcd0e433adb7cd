package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/mtzanidakis/swarmlink/internal/config"
	"github.com/mtzanidakis/swarmlink/internal/orchestrator"
	"github.com/mtzanidakis/swarmlink/internal/routing"
	"github.com/mtzanidakis/swarmlink/internal/swarm"
	"github.com/mtzanidakis/swarmlink/internal/transport"
)

// runProbe sends one request with every agent at the origin and prints what
// the simulator answered.
func runProbe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.Log)

	client, err := transport.New(cfg.Simulator)
	if err != nil {
		return fmt.Errorf("init simulator client: %w", err)
	}
	defer client.Close()

	tracker := swarm.NewTracker(cfg.Swarm.Robots, cfg.Swarm.Backbone)
	orch := orchestrator.New(cfg.Swarm, tracker, client, nil)

	res, err := orch.RunOnce(context.Background())
	if err != nil {
		return err
	}
	printResult(os.Stdout, client.Addr(), res)
	if !res.OK() {
		return fmt.Errorf("cycle %s: %w", res.Status, res.Err)
	}
	return nil
}

func printResult(w io.Writer, addr string, res orchestrator.Result) {
	fmt.Fprintf(w, "simulator: %s\n", addr)
	fmt.Fprintf(w, "status:    %s (%s)\n", res.Status, res.Duration.Round(time.Microsecond))
	if !res.OK() {
		if res.Err != nil {
			fmt.Fprintf(w, "error:     %v\n", res.Err)
		}
		return
	}

	fmt.Fprintf(w, "reply:     %d bytes, %d nodes", res.Bytes, res.Nodes)
	if res.Mismatch {
		fmt.Fprint(w, " (node count mismatch)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "hops:      %d entries, avg %.2f, max %d %s\n", res.Hops.Entries, res.Hops.Average, res.Hops.Max, histogram(res.Hops.Histogram))

	snap := res.Snapshot
	fmt.Fprintln(w, "\nrouting table:")
	for i, dests := range snap.Table {
		fmt.Fprintf(w, "  %d: %v\n", i, dests)
	}
	fmt.Fprintf(w, "\nadjacency (%d links, clusters %v):\n", snap.Matrix.Edges(), routing.Components(snap.Matrix))
	fmt.Fprint(w, snap.Matrix.String())
}

func histogram(h map[int]int) string {
	if len(h) == 0 {
		return ""
	}
	hops := make([]int, 0, len(h))
	for k := range h {
		hops = append(hops, k)
	}
	sort.Ints(hops)
	out := "["
	for i, k := range hops {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%d:%d", k, h[k])
	}
	return out + "]"
}
