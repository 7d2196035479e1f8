package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/geosearch/core"
)

// Key prefixes for different data types
const (
	docPrefix    = "doc:"
	sourcePrefix = "src:"
	poiPrefix    = "poi:"
	termPrefix   = "term:"
	nodePrefix   = "rtree:"
	cachePrefix  = "cache:"
	metaKey      = "meta"
)

// makeNumberedKey appends a big-endian number to prefix so keys sort numerically.
func makeNumberedKey(prefix string, n uint32) []byte {
	buf := make([]byte, len(prefix)+4)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint32(buf[offset:], n)
	return buf
}

// makeDocKey generates a key for a place by document number.
func makeDocKey(doc uint32) []byte {
	return makeNumberedKey(docPrefix, doc)
}

// makePOIKey generates a key for a POI. POIs share the document number of their place.
func makePOIKey(doc uint32) []byte {
	return makeNumberedKey(poiPrefix, doc)
}

// makeNodeKey generates a key for an R-tree node.
func makeNodeKey(id uint32) []byte {
	return makeNumberedKey(nodePrefix, id)
}

// makeSourceKey generates the source id lookup key.
// Format: prefix:type:id
func makeSourceKey(id core.SourceID) []byte {
	return []byte(fmt.Sprintf("%s%d:%d", sourcePrefix, id.Type, id.ID))
}

// makeTermKey generates a postings key. A partial term yields a prefix
// covering every term it starts.
func makeTermKey(term string) []byte {
	return []byte(termPrefix + term)
}

// makeCacheKey generates a key for a cache index entry.
func makeCacheKey(regionID string) []byte {
	return []byte(cachePrefix + regionID)
}

func encodeDoc(doc uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, doc)
}

func decodeDoc(val []byte) (uint32, error) {
	if len(val) != 4 {
		return 0, fmt.Errorf("invalid document number length %d", len(val))
	}
	return binary.BigEndian.Uint32(val), nil
}
