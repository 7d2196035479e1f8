package spatial

import (
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MarshalNode encodes a node with mus-go primitives.
func MarshalNode(n *Node) []byte {
	size := ord.Bool.Size(n.Leaf) + varint.Int.Size(len(n.Entries))
	for _, e := range n.Entries {
		size += entrySize(e)
	}
	bs := make([]byte, size)
	off := ord.Bool.Marshal(n.Leaf, bs)
	off += varint.Int.Marshal(len(n.Entries), bs[off:])
	for _, e := range n.Entries {
		off += raw.Float64.Marshal(e.Rect.MinX, bs[off:])
		off += raw.Float64.Marshal(e.Rect.MinY, bs[off:])
		off += raw.Float64.Marshal(e.Rect.MaxX, bs[off:])
		off += raw.Float64.Marshal(e.Rect.MaxY, bs[off:])
		off += varint.Uint32.Marshal(e.Ref, bs[off:])
		off += varint.Uint8.Marshal(e.Tag, bs[off:])
	}
	return bs
}

func entrySize(e Entry) int {
	return raw.Float64.Size(e.Rect.MinX)*4 + varint.Uint32.Size(e.Ref) + varint.Uint8.Size(e.Tag)
}

// UnmarshalNode decodes a node produced by MarshalNode.
func UnmarshalNode(bs []byte) (*Node, error) {
	leaf, off, err := ord.Bool.Unmarshal(bs)
	if err != nil {
		return nil, err
	}
	count, n, err := varint.Int.Unmarshal(bs[off:])
	if err != nil {
		return nil, err
	}
	off += n
	if count < 0 || count > len(bs) {
		return nil, fmt.Errorf("r-tree node: invalid entry count %d", count)
	}

	node := &Node{Leaf: leaf, Entries: make([]Entry, count)}
	for i := range node.Entries {
		e := &node.Entries[i]
		for _, dst := range []*float64{&e.Rect.MinX, &e.Rect.MinY, &e.Rect.MaxX, &e.Rect.MaxY} {
			if *dst, n, err = raw.Float64.Unmarshal(bs[off:]); err != nil {
				return nil, err
			}
			off += n
		}
		if e.Ref, n, err = varint.Uint32.Unmarshal(bs[off:]); err != nil {
			return nil, err
		}
		off += n
		if e.Tag, n, err = varint.Uint8.Unmarshal(bs[off:]); err != nil {
			return nil, err
		}
		off += n
	}
	return node, nil
}
