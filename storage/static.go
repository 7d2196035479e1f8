package storage

import (
	"context"

	"github.com/poiesic/geosearch/core"
)

// StaticRegions is a RegionProvider over a fixed set of open readers.
// Handles never unpin anything; the caller owns the readers.
type StaticRegions []RegionReader

var _ RegionProvider = StaticRegions(nil)

// Snapshot returns a handle per reader.
func (s StaticRegions) Snapshot(ctx context.Context) ([]RegionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles := make([]RegionHandle, len(s))
	for i, r := range s {
		handles[i] = staticHandle{r}
	}
	return handles, nil
}

type staticHandle struct {
	reader RegionReader
}

func (h staticHandle) Meta() core.RegionMeta { return h.reader.Meta() }
func (h staticHandle) Reader() RegionReader  { return h.reader }
func (h staticHandle) Release()              {}
