package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/mtzanidakis/swarmlink/internal/orchestrator"
)

// chunkMessage splits a message into chunks that fit within Telegram's message size limit.
func chunkMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}

		// Try to split at a newline
		cutAt := maxLen
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > maxLen/2 {
			cutAt = idx + 1
		}

		chunks = append(chunks, text[:cutAt])
		text = text[cutAt:]
	}

	return chunks
}

func formatStatus(snap *orchestrator.Snapshot, stats orchestrator.Stats, busy bool) string {
	var sb strings.Builder
	if snap == nil || snap.Seq == 0 {
		sb.WriteString("Routing table: none received yet\n")
	} else {
		fmt.Fprintf(&sb, "Routing table: cycle %d, %d links, updated %s\n",
			snap.Seq, snap.Matrix.Edges(), snap.UpdatedAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&sb, "In flight: %v\n", busy)
	fmt.Fprintf(&sb, "Cycles: %d dispatched, %d completed, %d dropped\n", stats.Dispatched, stats.Completed, stats.Dropped)
	fmt.Fprintf(&sb, "Failures: %d timeouts, %d decode, %d transport\n", stats.Timeouts, stats.DecodeErrors, stats.TransportErrors)
	return sb.String()
}

func formatMatrix(snap *orchestrator.Snapshot) string {
	if snap == nil || snap.Matrix.N == 0 {
		return "Adjacency matrix is empty"
	}
	return fmt.Sprintf("Adjacency (cycle %d):\n%s", snap.Seq, snap.Matrix.String())
}
