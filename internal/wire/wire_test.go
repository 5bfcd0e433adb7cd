package wire

import (
	"encoding/binary"
	"errors"
	"reflect"
	"testing"
)

func scenarioReply() SwarmNetworkMessage {
	return SwarmNetworkMessage{Nodes: []NodeRoutingTable{
		{Entries: []RoutingEntry{{Destination: 1, Distance: 1}, {Destination: 2, Distance: 2}}},
		{Entries: []RoutingEntry{{Destination: 0, Distance: 1}}},
		{},
	}}
}

func TestSwarmRoundTrip(t *testing.T) {
	in := SwarmMessage{
		Backbone: 2,
		Agents: []Agent{
			{ID: 0, X: 1.5, Y: -2.25, Z: 10},
			{ID: 1, X: 0, Y: 0, Z: 0},
			{ID: 2, X: 100.125, Y: 3, Z: -7.5},
		},
	}

	buf, err := EncodeSwarm(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeSwarm(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(in, *out) {
		t.Errorf("round trip mismatch:\n in: %+v\nout: %+v", in, *out)
	}
}

func TestEncodeSwarmDeterministic(t *testing.T) {
	msg := SwarmMessage{Backbone: 1, Agents: []Agent{{ID: 0, X: 1}, {ID: 1, Y: 2}}}
	a, err := EncodeSwarm(msg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncodeSwarm(msg)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("expected identical encodings for identical input")
	}
}

func TestEncodeSwarmRejectsBackboneOverflow(t *testing.T) {
	_, err := EncodeSwarm(SwarmMessage{Backbone: 3, Agents: []Agent{{ID: 0}, {ID: 1}}})
	if err == nil {
		t.Fatal("expected error when backbone exceeds agent count")
	}
}

func TestEncodeSwarmLayout(t *testing.T) {
	buf, err := EncodeSwarm(SwarmMessage{Backbone: 7, Agents: []Agent{{ID: 4, X: 1, Y: 2, Z: 3}}})
	if err != nil {
		t.Fatal(err)
	}
	// The root offset is a little-endian uint32 pointing inside the buffer.
	root := binary.LittleEndian.Uint32(buf)
	if int(root) >= len(buf) {
		t.Fatalf("root offset %d outside %d byte buffer", root, len(buf))
	}
	msg, err := DecodeSwarm(buf)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Backbone != 7 || len(msg.Agents) != 1 || msg.Agents[0].ID != 4 || msg.Agents[0].Z != 3 {
		t.Errorf("unexpected decode: %+v", msg)
	}
}

func TestNetworkRoundTrip(t *testing.T) {
	in := scenarioReply()
	out, err := DecodeNetwork(EncodeNetwork(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Nodes) != len(in.Nodes) {
		t.Fatalf("expected %d nodes, got %d", len(in.Nodes), len(out.Nodes))
	}
	for i := range in.Nodes {
		if len(in.Nodes[i].Entries) != len(out.Nodes[i].Entries) {
			t.Fatalf("node %d: expected %d entries, got %d", i, len(in.Nodes[i].Entries), len(out.Nodes[i].Entries))
		}
		for j := range in.Nodes[i].Entries {
			if in.Nodes[i].Entries[j] != out.Nodes[i].Entries[j] {
				t.Errorf("node %d entry %d: expected %+v, got %+v", i, j, in.Nodes[i].Entries[j], out.Nodes[i].Entries[j])
			}
		}
	}
}

func TestNetworkRoundTripZeroValues(t *testing.T) {
	// Zero-valued fields are omitted from the buffer and must read back as zero.
	in := SwarmNetworkMessage{Nodes: []NodeRoutingTable{{Entries: []RoutingEntry{{Destination: 0, Distance: 0}}}}}
	out, err := DecodeNetwork(EncodeNetwork(in))
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Nodes[0].Entries[0]; got != (RoutingEntry{}) {
		t.Errorf("expected zero entry, got %+v", got)
	}
}

func TestDecodeNetworkEmpty(t *testing.T) {
	out, err := DecodeNetwork(EncodeNetwork(SwarmNetworkMessage{}))
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Nodes) != 0 {
		t.Errorf("expected no nodes, got %d", len(out.Nodes))
	}
}

func TestDecodeNetworkTruncated(t *testing.T) {
	full := EncodeNetwork(scenarioReply())
	for n := 0; n < len(full); n++ {
		_, err := DecodeNetwork(full[:n])
		if err == nil {
			t.Fatalf("expected error for %d of %d bytes", n, len(full))
		}
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("expected *DecodeError for %d bytes, got %T", n, err)
		}
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed for %d bytes", n)
		}
	}
}

func TestDecodeNetworkBadRootOffset(t *testing.T) {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf, 0xFFFFFFF0)
	if _, err := DecodeNetwork(buf); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestDecodeNetworkOversizedVector(t *testing.T) {
	buf := EncodeNetwork(SwarmNetworkMessage{Nodes: []NodeRoutingTable{{}}})
	// Locate the nodes vector length (the only uint32 equal to 1 following the
	// root table's field offset) by decoding the layout step by step.
	root, err := rootTable(buf)
	if err != nil {
		t.Fatal(err)
	}
	p, ok, err := root.field(networkNodes, 4)
	if err != nil || !ok {
		t.Fatalf("nodes field missing: %v", err)
	}
	vec := p + int(binary.LittleEndian.Uint32(buf[p:]))
	binary.LittleEndian.PutUint32(buf[vec:], 1<<30)

	if _, err := DecodeNetwork(buf); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for oversized vector, got %v", err)
	}
}

func TestDecodeNetworkRejectsNegativeDistance(t *testing.T) {
	buf := EncodeNetwork(SwarmNetworkMessage{Nodes: []NodeRoutingTable{
		{Entries: []RoutingEntry{{Destination: 1, Distance: -1}}},
	}})
	if _, err := DecodeNetwork(buf); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for negative distance, got %v", err)
	}
}

func TestDecodeErrorMessage(t *testing.T) {
	err := malformed(12, "bad %s", "thing")
	if err.Error() != "decode: bad thing at offset 12" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func FuzzDecodeNetwork(f *testing.F) {
	f.Add(EncodeNetwork(scenarioReply()))
	f.Add(EncodeNetwork(SwarmNetworkMessage{}))
	f.Add([]byte{})
	f.Add([]byte{4, 0, 0, 0, 0, 0, 0, 0})

	f.Fuzz(func(t *testing.T, buf []byte) {
		msg, err := DecodeNetwork(buf)
		if err != nil {
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("unexpected error class: %v", err)
			}
			return
		}
		for _, n := range msg.Nodes {
			for _, e := range n.Entries {
				if e.Distance < 0 {
					t.Fatalf("decoded negative distance %d", e.Distance)
				}
			}
		}
	})
}
