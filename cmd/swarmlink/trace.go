package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/mtzanidakis/swarmlink/internal/trace"
)

func runTrace(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("trace", flag.ContinueOnError)
	file := fs.String("f", "", "trace file (cycles-YYYY-MM-DD-HH.jsonl.zst)")
	matrix := fs.Bool("matrix", false, "print the adjacency matrix of each successful cycle")
	status := fs.String("status", "", "only print cycles with this status")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("-f is required")
	}

	return trace.ReadFile(*file, func(e trace.Entry) error {
		if *status != "" && e.Status != *status {
			return nil
		}
		fmt.Fprintln(w, formatEntry(e))
		if *matrix {
			for _, row := range e.Matrix {
				fmt.Fprintf(w, "  %v\n", row)
			}
		}
		return nil
	})
}

func formatEntry(e trace.Entry) string {
	line := fmt.Sprintf("%s seq=%d status=%s duration=%dms",
		e.StartedAt.UTC().Format("2006-01-02T15:04:05.000Z"), e.Seq, e.Status, e.DurationMs)
	if e.Reply != nil {
		line += fmt.Sprintf(" nodes=%d bytes=%d", len(e.Reply.Nodes), e.Bytes)
	}
	if e.Mismatch {
		line += " mismatch"
	}
	if e.Error != "" {
		line += fmt.Sprintf(" error=%q", e.Error)
	}
	return line
}
