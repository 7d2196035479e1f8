package search

import (
	"github.com/poiesic/geosearch/core"
	"github.com/poiesic/geosearch/textnorm"
)

// uniqueBySource keeps the first item per source id.
func uniqueBySource[T any](items []T, id func(*T) core.SourceID) []T {
	seen := make(map[core.SourceID]bool, len(items))
	out := items[:0]
	for i := range items {
		key := id(&items[i])
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, items[i])
	}
	return out
}

// seenPlace is a place already accepted by dedupe.
type seenPlace struct {
	id    core.SourceID
	coord core.Coordinate
	name  string
}

// duplicates reports whether p collides with s.
func (s seenPlace) duplicates(p seenPlace, tolerance float64) bool {
	if !s.id.IsZero() && s.id == p.id {
		return true
	}
	if s.coord.DistanceTo(p.coord) > tolerance {
		return false
	}
	return s.name == p.name || s.name == "" || p.name == ""
}

// dedupe removes items that duplicate an earlier one, so offline results
// placed first win. Two places are duplicates when they share a source id,
// or lie within tolerance meters and their normalized names are equal or
// one of them is empty.
func dedupe[T any](items []T, place func(*T) *core.Place, tolerance float64) []T {
	seen := make([]seenPlace, 0, len(items))
	out := items[:0]
	for i := range items {
		p := place(&items[i])
		cand := seenPlace{id: p.ID, coord: p.Coordinate, name: textnorm.NormalizeName(p.Name)}

		dup := false
		for _, s := range seen {
			if s.duplicates(cand, tolerance) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen = append(seen, cand)
		out = append(out, items[i])
	}
	return out
}
