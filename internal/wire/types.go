// Package wire implements the FlatBuffers messages exchanged with the network
// simulator. The layouts in schema/*.fbs are an external contract: field
// order, widths and the little-endian encoding must not change.
package wire

// SwarmMessage is the request: the number of tracked backbone nodes followed
// by every agent's position, ordered by id.
type SwarmMessage struct {
	Backbone uint32
	Agents   []Agent
}

type Agent struct {
	ID      int32
	X, Y, Z float32
}

// SwarmNetworkMessage is the reply: one routing table per simulated node.
type SwarmNetworkMessage struct {
	Nodes []NodeRoutingTable
}

type NodeRoutingTable struct {
	Entries []RoutingEntry
}

type RoutingEntry struct {
	Destination int32
	Distance    int32
}

// vtable slots
const (
	agentPos = 0
	agentID  = 1

	swarmBackbone = 0
	swarmAgents   = 1

	entryDestination = 0
	entryDistance    = 1

	nodeRoutingTable = 0

	networkNodes = 0
)

const vec3Size = 12
