package wire

import (
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
)

// MaxUDPPayload is the largest payload a single IPv4 UDP datagram can carry.
const MaxUDPPayload = 65507

// EncodeSwarm serializes a request. The returned slice is owned by the caller.
func EncodeSwarm(msg SwarmMessage) ([]byte, error) {
	if int64(msg.Backbone) > int64(len(msg.Agents)) {
		return nil, fmt.Errorf("encode swarm: backbone %d exceeds %d agents", msg.Backbone, len(msg.Agents))
	}

	b := flatbuffers.NewBuilder(64 + 32*len(msg.Agents))

	agents := make([]flatbuffers.UOffsetT, len(msg.Agents))
	for i, a := range msg.Agents {
		b.StartObject(2)
		b.PrependInt32Slot(agentID, a.ID, 0)
		b.PrependStructSlot(agentPos, createVec3(b, a.X, a.Y, a.Z), 0)
		agents[i] = b.EndObject()
	}
	vec := offsetVector(b, agents)

	b.StartObject(2)
	b.PrependUOffsetTSlot(swarmAgents, vec, 0)
	b.PrependUint32Slot(swarmBackbone, msg.Backbone, 0)
	b.Finish(b.EndObject())

	out := b.FinishedBytes()
	if len(out) > MaxUDPPayload {
		return nil, fmt.Errorf("encode swarm: %d bytes exceed a single datagram", len(out))
	}
	return out, nil
}

// EncodeNetwork serializes a reply the way the simulator does. swarmlink
// never sends one; tests use it to build simulator replies.
func EncodeNetwork(msg SwarmNetworkMessage) []byte {
	b := flatbuffers.NewBuilder(64)

	nodes := make([]flatbuffers.UOffsetT, len(msg.Nodes))
	for i, n := range msg.Nodes {
		entries := make([]flatbuffers.UOffsetT, len(n.Entries))
		for j, e := range n.Entries {
			b.StartObject(2)
			b.PrependInt32Slot(entryDistance, e.Distance, 0)
			b.PrependInt32Slot(entryDestination, e.Destination, 0)
			entries[j] = b.EndObject()
		}
		table := offsetVector(b, entries)

		b.StartObject(1)
		b.PrependUOffsetTSlot(nodeRoutingTable, table, 0)
		nodes[i] = b.EndObject()
	}
	vec := offsetVector(b, nodes)

	b.StartObject(1)
	b.PrependUOffsetTSlot(networkNodes, vec, 0)
	b.Finish(b.EndObject())
	return b.FinishedBytes()
}

// createVec3 writes the struct inline; it must directly precede the slot
// that references it.
func createVec3(b *flatbuffers.Builder, x, y, z float32) flatbuffers.UOffsetT {
	b.Prep(4, vec3Size)
	b.PrependFloat32(z)
	b.PrependFloat32(y)
	b.PrependFloat32(x)
	return b.Offset()
}

func offsetVector(b *flatbuffers.Builder, offs []flatbuffers.UOffsetT) flatbuffers.UOffsetT {
	b.StartVector(flatbuffers.SizeUOffsetT, len(offs), flatbuffers.SizeUOffsetT)
	for i := len(offs) - 1; i >= 0; i-- {
		b.PrependUOffsetT(offs[i])
	}
	return b.EndVector(len(offs))
}
