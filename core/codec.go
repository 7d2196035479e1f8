package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Record codecs. Each codec exposes the Marshal/Unmarshal/Size/Skip shape of
// a mus-go serializer and is built from mus-go primitives. Field order is the
// wire format; append new fields at the end only.
var (
	PlaceMUS      = placeMUS{}
	POIMUS        = poiMUS{}
	RegionMetaMUS = regionMetaMUS{}
	CacheEntryMUS = cacheEntryMUS{}
)

// fieldWriter is implemented by both the sizer and the encoder so each record
// layout is written once.
type fieldWriter interface {
	str(v string)
	i64(v int64)
	u64(v uint64)
	f64(v float64)
}

type sizer struct{ n int }

func (s *sizer) str(v string)  { s.n += ord.String.Size(v) }
func (s *sizer) i64(v int64)   { s.n += varint.Int64.Size(v) }
func (s *sizer) u64(v uint64)  { s.n += varint.Uint64.Size(v) }
func (s *sizer) f64(v float64) { s.n += raw.Float64.Size(v) }

type encoder struct {
	bs []byte
	n  int
}

func (e *encoder) str(v string)  { e.n += ord.String.Marshal(v, e.bs[e.n:]) }
func (e *encoder) i64(v int64)   { e.n += varint.Int64.Marshal(v, e.bs[e.n:]) }
func (e *encoder) u64(v uint64)  { e.n += varint.Uint64.Marshal(v, e.bs[e.n:]) }
func (e *encoder) f64(v float64) { e.n += raw.Float64.Marshal(v, e.bs[e.n:]) }

// decoder reads fields sequentially and latches the first error.
type decoder struct {
	bs  []byte
	n   int
	err error
}

func (d *decoder) str() (v string) {
	if d.err != nil {
		return
	}
	var n int
	v, n, d.err = ord.String.Unmarshal(d.bs[d.n:])
	d.n += n
	return
}

func (d *decoder) i64() (v int64) {
	if d.err != nil {
		return
	}
	var n int
	v, n, d.err = varint.Int64.Unmarshal(d.bs[d.n:])
	d.n += n
	return
}

func (d *decoder) u64() (v uint64) {
	if d.err != nil {
		return
	}
	var n int
	v, n, d.err = varint.Uint64.Unmarshal(d.bs[d.n:])
	d.n += n
	return
}

func (d *decoder) f64() (v float64) {
	if d.err != nil {
		return
	}
	var n int
	v, n, d.err = raw.Float64.Unmarshal(d.bs[d.n:])
	d.n += n
	return
}

func writeTime(w fieldWriter, t time.Time) {
	if t.IsZero() {
		w.i64(0)
		return
	}
	w.i64(t.UnixMicro())
}

func readTime(d *decoder) time.Time {
	v := d.i64()
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

func writeBounds(w fieldWriter, b BoundingBox) {
	w.i64(ToE7(b.MinLat))
	w.i64(ToE7(b.MinLon))
	w.i64(ToE7(b.MaxLat))
	w.i64(ToE7(b.MaxLon))
}

func readBounds(d *decoder) BoundingBox {
	return BoundingBox{
		MinLat: FromE7(d.i64()),
		MinLon: FromE7(d.i64()),
		MaxLat: FromE7(d.i64()),
		MaxLon: FromE7(d.i64()),
	}
}

func writePlace(w fieldWriter, p *Place) {
	w.u64(uint64(p.ID.Type))
	w.i64(p.ID.ID)
	w.i64(ToE7(p.Coordinate.Lat))
	w.i64(ToE7(p.Coordinate.Lon))
	w.str(p.Name)
	w.str(p.DisplayName)
	w.str(p.Kind)
	w.str(p.Address.Street)
	w.str(p.Address.HouseNumber)
	w.str(p.Address.City)
	w.str(p.Address.Postcode)
	w.str(p.Address.State)
	w.str(p.Address.Country)
}

func readPlace(d *decoder, p *Place) {
	p.ID.Type = SourceType(d.u64())
	p.ID.ID = d.i64()
	p.Coordinate.Lat = FromE7(d.i64())
	p.Coordinate.Lon = FromE7(d.i64())
	p.Name = d.str()
	p.DisplayName = d.str()
	p.Kind = d.str()
	p.Address.Street = d.str()
	p.Address.HouseNumber = d.str()
	p.Address.City = d.str()
	p.Address.Postcode = d.str()
	p.Address.State = d.str()
	p.Address.Country = d.str()
}

type placeMUS struct{}

func (placeMUS) Marshal(v Place, bs []byte) (n int) {
	e := &encoder{bs: bs}
	writePlace(e, &v)
	return e.n
}

func (placeMUS) Unmarshal(bs []byte) (v Place, n int, err error) {
	d := &decoder{bs: bs}
	readPlace(d, &v)
	return v, d.n, d.err
}

func (placeMUS) Size(v Place) (size int) {
	s := &sizer{}
	writePlace(s, &v)
	return s.n
}

func (m placeMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = m.Unmarshal(bs)
	return
}

func writePOI(w fieldWriter, p *POI) {
	writePlace(w, &p.Place)
	w.u64(uint64(p.Category))
	w.str(p.Phone)
	w.str(p.Website)
	w.str(p.OpeningHours)
}

type poiMUS struct{}

func (poiMUS) Marshal(v POI, bs []byte) (n int) {
	e := &encoder{bs: bs}
	writePOI(e, &v)
	return e.n
}

func (poiMUS) Unmarshal(bs []byte) (v POI, n int, err error) {
	d := &decoder{bs: bs}
	readPlace(d, &v.Place)
	v.Category = Category(d.u64())
	v.Phone = d.str()
	v.Website = d.str()
	v.OpeningHours = d.str()
	return v, d.n, d.err
}

func (poiMUS) Size(v POI) (size int) {
	s := &sizer{}
	writePOI(s, &v)
	return s.n
}

func (m poiMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = m.Unmarshal(bs)
	return
}

func writeRegionMeta(w fieldWriter, m *RegionMeta) {
	w.str(m.RegionID)
	w.str(m.Name)
	w.str(m.Version)
	w.i64(int64(m.SchemaVersion))
	writeBounds(w, m.Bounds)
	writeTime(w, m.CreatedAt)
	w.i64(int64(m.PlaceCount))
	w.i64(int64(m.POICount))
	w.f64(m.AvgDocLength)
	w.u64(uint64(m.SpatialRoot))
	w.i64(int64(m.SpatialHeight))
}

type regionMetaMUS struct{}

func (regionMetaMUS) Marshal(v RegionMeta, bs []byte) (n int) {
	e := &encoder{bs: bs}
	writeRegionMeta(e, &v)
	return e.n
}

func (regionMetaMUS) Unmarshal(bs []byte) (v RegionMeta, n int, err error) {
	d := &decoder{bs: bs}
	v.RegionID = d.str()
	v.Name = d.str()
	v.Version = d.str()
	v.SchemaVersion = int(d.i64())
	v.Bounds = readBounds(d)
	v.CreatedAt = readTime(d)
	v.PlaceCount = int(d.i64())
	v.POICount = int(d.i64())
	v.AvgDocLength = d.f64()
	v.SpatialRoot = uint32(d.u64())
	v.SpatialHeight = int(d.i64())
	return v, d.n, d.err
}

func (regionMetaMUS) Size(v RegionMeta) (size int) {
	s := &sizer{}
	writeRegionMeta(s, &v)
	return s.n
}

func (m regionMetaMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = m.Unmarshal(bs)
	return
}

func writeCacheEntry(w fieldWriter, c *CacheEntry) {
	w.str(c.RegionID)
	w.str(c.Version)
	w.str(c.Path)
	writeBounds(w, c.Bounds)
	w.i64(c.SizeBytes)
	writeTime(w, c.LastAccess)
}

type cacheEntryMUS struct{}

func (cacheEntryMUS) Marshal(v CacheEntry, bs []byte) (n int) {
	e := &encoder{bs: bs}
	writeCacheEntry(e, &v)
	return e.n
}

func (cacheEntryMUS) Unmarshal(bs []byte) (v CacheEntry, n int, err error) {
	d := &decoder{bs: bs}
	v.RegionID = d.str()
	v.Version = d.str()
	v.Path = d.str()
	v.Bounds = readBounds(d)
	v.SizeBytes = d.i64()
	v.LastAccess = readTime(d)
	return v, d.n, d.err
}

func (cacheEntryMUS) Size(v CacheEntry) (size int) {
	s := &sizer{}
	writeCacheEntry(s, &v)
	return s.n
}

func (m cacheEntryMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = m.Unmarshal(bs)
	return
}
