// Package spatial implements a static, bulk-loaded R-tree for point data.
//
// Trees are packed once with the Sort-Tile-Recursive algorithm and never
// modified afterwards, which suits immutable region databases. Nodes are
// addressed by integer id so that a tree can be persisted node by node and
// searched lazily through a NodeReader without loading it whole.
package spatial

import (
	"context"
	"errors"
	"math"
	"sort"
)

// DefaultCapacity is the maximum number of entries per node.
const DefaultCapacity = 16

// ErrNodeNotFound is returned by a NodeReader for an unknown node id.
var ErrNodeNotFound = errors.New("r-tree node not found")

// Rect is an axis-aligned rectangle; X is longitude and Y latitude.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// PointRect returns the degenerate rectangle of a point.
func PointRect(x, y float64) Rect {
	return Rect{MinX: x, MinY: y, MaxX: x, MaxY: y}
}

// Intersects reports whether r and o overlap, edges included.
func (r Rect) Intersects(o Rect) bool {
	return r.MinX <= o.MaxX && o.MinX <= r.MaxX && r.MinY <= o.MaxY && o.MinY <= r.MaxY
}

func (r Rect) union(o Rect) Rect {
	return Rect{
		MinX: math.Min(r.MinX, o.MinX),
		MinY: math.Min(r.MinY, o.MinY),
		MaxX: math.Max(r.MaxX, o.MaxX),
		MaxY: math.Max(r.MaxY, o.MaxY),
	}
}

func (r Rect) center() (float64, float64) {
	return (r.MinX + r.MaxX) / 2, (r.MinY + r.MaxY) / 2
}

// Entry is a node slot. In inner nodes Ref is a child node id; in leaves it
// is the caller's item reference and Tag carries a small caller payload.
type Entry struct {
	Rect Rect
	Ref  uint32
	Tag  uint8
}

// Node is one R-tree node.
type Node struct {
	Leaf    bool
	Entries []Entry
}

func (n *Node) bounds() Rect {
	if len(n.Entries) == 0 {
		return Rect{}
	}
	r := n.Entries[0].Rect
	for _, e := range n.Entries[1:] {
		r = r.union(e.Rect)
	}
	return r
}

// Item is a point to index.
type Item struct {
	X, Y float64
	Ref  uint32
	Tag  uint8
}

// NodeReader resolves node ids.
type NodeReader interface {
	Node(id uint32) (*Node, error)
}

// Tree is a packed R-tree held in memory.
type Tree struct {
	Nodes  []*Node
	Root   uint32
	Height int
}

var _ NodeReader = (*Tree)(nil)

// Node implements NodeReader.
func (t *Tree) Node(id uint32) (*Node, error) {
	if int(id) >= len(t.Nodes) {
		return nil, ErrNodeNotFound
	}
	return t.Nodes[id], nil
}

// Build packs items with Sort-Tile-Recursive. capacity < 2 selects DefaultCapacity.
func Build(items []Item, capacity int) *Tree {
	if capacity < 2 {
		capacity = DefaultCapacity
	}
	t := &Tree{}

	level := make([]Entry, len(items))
	for i, it := range items {
		level[i] = Entry{Rect: PointRect(it.X, it.Y), Ref: it.Ref, Tag: it.Tag}
	}

	leaf := true
	for {
		groups := strTile(level, capacity)
		next := make([]Entry, 0, len(groups))
		for _, g := range groups {
			n := &Node{Leaf: leaf, Entries: g}
			id := uint32(len(t.Nodes))
			t.Nodes = append(t.Nodes, n)
			next = append(next, Entry{Rect: n.bounds(), Ref: id})
		}
		t.Height++
		leaf = false
		if len(next) == 1 {
			t.Root = next[0].Ref
			return t
		}
		level = next
	}
}

// strTile partitions entries into groups of at most capacity, sorting into
// vertical slices by X and then by Y within each slice.
func strTile(entries []Entry, capacity int) [][]Entry {
	if len(entries) == 0 {
		return [][]Entry{nil}
	}
	leaves := (len(entries) + capacity - 1) / capacity
	numSlices := int(math.Ceil(math.Sqrt(float64(leaves))))
	sliceSize := numSlices * capacity

	sort.Slice(entries, func(i, j int) bool {
		xi, _ := entries[i].Rect.center()
		xj, _ := entries[j].Rect.center()
		return xi < xj
	})

	var groups [][]Entry
	for start := 0; start < len(entries); start += sliceSize {
		end := min(start+sliceSize, len(entries))
		slice := entries[start:end]
		sort.Slice(slice, func(i, j int) bool {
			_, yi := slice[i].Rect.center()
			_, yj := slice[j].Rect.center()
			return yi < yj
		})
		for g := 0; g < len(slice); g += capacity {
			ge := min(g+capacity, len(slice))
			group := make([]Entry, ge-g)
			copy(group, slice[g:ge])
			groups = append(groups, group)
		}
	}
	return groups
}

// Search visits every leaf entry intersecting query. fn returns false to stop.
// Only nodes whose bounds intersect the query are read.
func Search(ctx context.Context, r NodeReader, root uint32, query Rect, fn func(Entry) bool) error {
	stack := []uint32{root}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n, err := r.Node(id)
		if err != nil {
			return err
		}
		for _, e := range n.Entries {
			if !e.Rect.Intersects(query) {
				continue
			}
			if n.Leaf {
				if !fn(e) {
					return nil
				}
				continue
			}
			stack = append(stack, e.Ref)
		}
	}
	return nil
}
