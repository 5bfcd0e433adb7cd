package wire

import (
	"errors"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
)

// ErrMalformed matches every *DecodeError.
var ErrMalformed = errors.New("malformed message")

// DecodeError reports why a buffer is not a well-formed message. Decoding
// checks each offset against the buffer before dereferencing it.
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode: %s at offset %d", e.Reason, e.Offset)
}

func (e *DecodeError) Unwrap() error { return ErrMalformed }

func malformed(off int, format string, args ...any) error {
	return &DecodeError{Offset: off, Reason: fmt.Sprintf(format, args...)}
}

// DecodeNetwork parses a simulator reply.
func DecodeNetwork(buf []byte) (*SwarmNetworkMessage, error) {
	root, err := rootTable(buf)
	if err != nil {
		return nil, err
	}

	start, n, err := root.vector(networkNodes, flatbuffers.SizeUOffsetT)
	if err != nil {
		return nil, err
	}

	msg := &SwarmNetworkMessage{Nodes: make([]NodeRoutingTable, n)}
	for i := 0; i < n; i++ {
		node, err := root.child(start + i*flatbuffers.SizeUOffsetT)
		if err != nil {
			return nil, err
		}
		estart, en, err := node.vector(nodeRoutingTable, flatbuffers.SizeUOffsetT)
		if err != nil {
			return nil, err
		}
		entries := make([]RoutingEntry, en)
		for j := 0; j < en; j++ {
			entry, err := node.child(estart + j*flatbuffers.SizeUOffsetT)
			if err != nil {
				return nil, err
			}
			if entries[j].Destination, err = entry.int32(entryDestination); err != nil {
				return nil, err
			}
			if entries[j].Distance, err = entry.int32(entryDistance); err != nil {
				return nil, err
			}
			if entries[j].Distance < 0 {
				return nil, malformed(entry.pos, "negative distance %d in node %d", entries[j].Distance, i)
			}
		}
		msg.Nodes[i].Entries = entries
	}
	return msg, nil
}

// DecodeSwarm parses a request. It is the simulator-side view of
// EncodeSwarm and is used by tooling and tests.
func DecodeSwarm(buf []byte) (*SwarmMessage, error) {
	root, err := rootTable(buf)
	if err != nil {
		return nil, err
	}

	backbone, err := root.uint32(swarmBackbone)
	if err != nil {
		return nil, err
	}
	start, n, err := root.vector(swarmAgents, flatbuffers.SizeUOffsetT)
	if err != nil {
		return nil, err
	}

	msg := &SwarmMessage{Backbone: backbone, Agents: make([]Agent, n)}
	for i := 0; i < n; i++ {
		agent, err := root.child(start + i*flatbuffers.SizeUOffsetT)
		if err != nil {
			return nil, err
		}
		if msg.Agents[i].ID, err = agent.int32(agentID); err != nil {
			return nil, err
		}
		p, ok, err := agent.field(agentPos, vec3Size)
		if err != nil {
			return nil, err
		}
		if ok {
			msg.Agents[i].X = flatbuffers.GetFloat32(buf[p:])
			msg.Agents[i].Y = flatbuffers.GetFloat32(buf[p+4:])
			msg.Agents[i].Z = flatbuffers.GetFloat32(buf[p+8:])
		}
	}
	return msg, nil
}

// table is a verified view of one FlatBuffers table: its position, vtable
// position and the sizes both declare.
type table struct {
	buf  []byte
	pos  int
	vt   int
	vlen int
	tlen int
}

func rootTable(buf []byte) (table, error) {
	if len(buf) < flatbuffers.SizeUOffsetT {
		return table{}, malformed(0, "buffer too short (%d bytes)", len(buf))
	}
	return newTable(buf, int64(flatbuffers.GetUOffsetT(buf)))
}

func newTable(buf []byte, pos int64) (table, error) {
	if pos < 0 || pos+flatbuffers.SizeSOffsetT > int64(len(buf)) {
		return table{}, malformed(int(pos), "table outside buffer")
	}
	vt := pos - int64(flatbuffers.GetSOffsetT(buf[pos:]))
	if vt < 0 || vt+2*flatbuffers.SizeVOffsetT > int64(len(buf)) {
		return table{}, malformed(int(pos), "vtable outside buffer")
	}
	vlen := int64(flatbuffers.GetVOffsetT(buf[vt:]))
	tlen := int64(flatbuffers.GetVOffsetT(buf[vt+flatbuffers.SizeVOffsetT:]))
	if vlen < 2*flatbuffers.SizeVOffsetT || vlen%2 != 0 || vt+vlen > int64(len(buf)) {
		return table{}, malformed(int(vt), "bad vtable length %d", vlen)
	}
	if tlen < flatbuffers.SizeSOffsetT || pos+tlen > int64(len(buf)) {
		return table{}, malformed(int(pos), "bad table length %d", tlen)
	}
	return table{buf: buf, pos: int(pos), vt: int(vt), vlen: int(vlen), tlen: int(tlen)}, nil
}

// field returns the absolute position of a present field of the given size.
func (t table) field(slot, size int) (int, bool, error) {
	voff := 2*flatbuffers.SizeVOffsetT + slot*flatbuffers.SizeVOffsetT
	if voff+flatbuffers.SizeVOffsetT > t.vlen {
		return 0, false, nil
	}
	off := int(flatbuffers.GetVOffsetT(t.buf[t.vt+voff:]))
	if off == 0 {
		return 0, false, nil
	}
	if off < flatbuffers.SizeSOffsetT || off+size > t.tlen {
		return 0, false, malformed(t.pos, "field %d outside table", slot)
	}
	return t.pos + off, true, nil
}

func (t table) int32(slot int) (int32, error) {
	p, ok, err := t.field(slot, flatbuffers.SizeInt32)
	if err != nil || !ok {
		return 0, err
	}
	return flatbuffers.GetInt32(t.buf[p:]), nil
}

func (t table) uint32(slot int) (uint32, error) {
	p, ok, err := t.field(slot, flatbuffers.SizeUint32)
	if err != nil || !ok {
		return 0, err
	}
	return flatbuffers.GetUint32(t.buf[p:]), nil
}

// vector returns the position of the first element and the element count of
// a vector field. An absent field is an empty vector.
func (t table) vector(slot, elemSize int) (int, int, error) {
	p, ok, err := t.field(slot, flatbuffers.SizeUOffsetT)
	if err != nil || !ok {
		return 0, 0, err
	}
	vec := int64(p) + int64(flatbuffers.GetUOffsetT(t.buf[p:]))
	if vec+flatbuffers.SizeUOffsetT > int64(len(t.buf)) {
		return 0, 0, malformed(p, "vector outside buffer")
	}
	n := int64(flatbuffers.GetUOffsetT(t.buf[vec:]))
	start := vec + flatbuffers.SizeUOffsetT
	if start+n*int64(elemSize) > int64(len(t.buf)) {
		return 0, 0, malformed(int(vec), "vector of %d elements overruns buffer", n)
	}
	return int(start), int(n), nil
}

// child follows the uoffset stored at p to a table.
func (t table) child(p int) (table, error) {
	off := int64(flatbuffers.GetUOffsetT(t.buf[p:]))
	if off == 0 {
		return table{}, malformed(p, "null table reference")
	}
	return newTable(t.buf, int64(p)+off)
}
