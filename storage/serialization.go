// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"

	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/geosearch/core"
)

// MarshalPlace serializes a Place to bytes.
func MarshalPlace(place *core.Place) []byte {
	buf := make([]byte, core.PlaceMUS.Size(*place))
	core.PlaceMUS.Marshal(*place, buf)
	return buf
}

// UnmarshalPlace deserializes a Place from bytes.
func UnmarshalPlace(data []byte) (*core.Place, error) {
	place, _, err := core.PlaceMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &place, nil
}

// MarshalPOI serializes a POI to bytes.
func MarshalPOI(poi *core.POI) []byte {
	buf := make([]byte, core.POIMUS.Size(*poi))
	core.POIMUS.Marshal(*poi, buf)
	return buf
}

// UnmarshalPOI deserializes a POI from bytes.
func UnmarshalPOI(data []byte) (*core.POI, error) {
	poi, _, err := core.POIMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &poi, nil
}

// MarshalRegionMeta serializes a RegionMeta to bytes.
func MarshalRegionMeta(meta *core.RegionMeta) []byte {
	buf := make([]byte, core.RegionMetaMUS.Size(*meta))
	core.RegionMetaMUS.Marshal(*meta, buf)
	return buf
}

// UnmarshalRegionMeta deserializes a RegionMeta from bytes.
func UnmarshalRegionMeta(data []byte) (*core.RegionMeta, error) {
	meta, _, err := core.RegionMetaMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &meta, nil
}

// MarshalCacheEntry serializes a CacheEntry to bytes.
func MarshalCacheEntry(entry *core.CacheEntry) []byte {
	buf := make([]byte, core.CacheEntryMUS.Size(*entry))
	core.CacheEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalCacheEntry deserializes a CacheEntry from bytes.
func UnmarshalCacheEntry(data []byte) (*core.CacheEntry, error) {
	entry, _, err := core.CacheEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &entry, nil
}

// Posting is one document entry in a term's postings list.
type Posting struct {
	Doc    uint32  // document number within the region
	Freq   float64 // field-weighted term frequency
	Length float64 // field-weighted document length
}

// MarshalPostings serializes postings sorted by ascending Doc. Document
// numbers are delta encoded.
func MarshalPostings(postings []Posting) []byte {
	size := varint.Int.Size(len(postings))
	var prev uint32
	for _, p := range postings {
		size += varint.Uint32.Size(p.Doc-prev) + raw.Float64.Size(p.Freq) + raw.Float64.Size(p.Length)
		prev = p.Doc
	}

	buf := make([]byte, size)
	n := varint.Int.Marshal(len(postings), buf)
	prev = 0
	for _, p := range postings {
		n += varint.Uint32.Marshal(p.Doc-prev, buf[n:])
		n += raw.Float64.Marshal(p.Freq, buf[n:])
		n += raw.Float64.Marshal(p.Length, buf[n:])
		prev = p.Doc
	}
	return buf
}

// UnmarshalPostings deserializes a postings list.
func UnmarshalPostings(data []byte) ([]Posting, error) {
	count, n, err := varint.Int.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	// every posting takes at least 17 bytes
	if count < 0 || count*17 > len(data)-n {
		return nil, ErrTruncatedData
	}

	postings := make([]Posting, count)
	var doc uint32
	for i := range postings {
		delta, m, err := varint.Uint32.Unmarshal(data[n:])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
		}
		n += m
		doc += delta
		postings[i].Doc = doc

		if postings[i].Freq, m, err = raw.Float64.Unmarshal(data[n:]); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
		}
		n += m
		if postings[i].Length, m, err = raw.Float64.Unmarshal(data[n:]); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
		}
		n += m
	}
	return postings, nil
}
