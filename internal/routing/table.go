// Package routing derives the per-node neighbour lists and the backbone
// adjacency matrix from a decoded simulator reply.
package routing

import (
	"fmt"

	"github.com/mtzanidakis/swarmlink/internal/wire"
)

// Table holds, for each simulated node, the destinations reported at exactly
// the configured hop distance, in reply order. Duplicates are kept.
type Table [][]int

// BuildTable filters every node's routing entries by distance == k.
// Nodes beyond the backbone are retained.
func BuildTable(msg *wire.SwarmNetworkMessage, k int) Table {
	if msg == nil {
		return Table{}
	}
	t := make(Table, len(msg.Nodes))
	for i, node := range msg.Nodes {
		neighbors := []int{}
		for _, e := range node.Entries {
			if int(e.Distance) == k {
				neighbors = append(neighbors, int(e.Destination))
			}
		}
		t[i] = neighbors
	}
	return t
}

// Has reports whether node i lists destination j.
func (t Table) Has(i, j int) bool {
	if i < 0 || i >= len(t) {
		return false
	}
	for _, d := range t[i] {
		if d == j {
			return true
		}
	}
	return false
}

// MismatchError reports a reply whose node count matches neither the number
// of robots nor the number of backbone nodes.
type MismatchError struct {
	Nodes    int
	Robots   int
	Backbone int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("simulator reported %d nodes, expected %d robots or %d backbone nodes", e.Nodes, e.Robots, e.Backbone)
}

// CheckShape returns a *MismatchError when the reply's node count is
// unexpected. Missing rows are still treated as empty by BuildAdjacency.
func CheckShape(nodes, robots, backbone int) error {
	if nodes == robots || nodes == backbone {
		return nil
	}
	return &MismatchError{Nodes: nodes, Robots: robots, Backbone: backbone}
}

// HopStats summarises the hop counts of a reply, ignoring self entries.
type HopStats struct {
	Entries   int         `json:"entries"`
	Average   float64     `json:"average"`
	Max       int         `json:"max"`
	Histogram map[int]int `json:"histogram"`
}

func ComputeHopStats(msg *wire.SwarmNetworkMessage) HopStats {
	s := HopStats{Histogram: make(map[int]int)}
	if msg == nil {
		return s
	}
	total := 0
	for i, node := range msg.Nodes {
		for _, e := range node.Entries {
			if int(e.Destination) == i {
				continue
			}
			d := int(e.Distance)
			s.Entries++
			s.Histogram[d]++
			total += d
			if d > s.Max {
				s.Max = d
			}
		}
	}
	if s.Entries > 0 {
		s.Average = float64(total) / float64(s.Entries)
	}
	return s
}
