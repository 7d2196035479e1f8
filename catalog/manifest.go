package catalog

import (
	"github.com/poiesic/geosearch/core"
)

// ManifestVersion is the manifest format written by NewManifest.
const ManifestVersion = "2.0"

// Manifest is the JSON document listing downloadable regions.
type Manifest struct {
	Version       string           `json:"version"`
	SchemaVersion int              `json:"schema_version"`
	POICategories []string         `json:"poi_categories"`
	Regions       []ManifestRegion `json:"regions"`
	States        []ManifestRegion `json:"states,omitempty"` // legacy name for Regions
}

// ManifestRegion is one region in the manifest. BBox is
// [minLat, minLon, maxLat, maxLon].
type ManifestRegion struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Version    string    `json:"version"`
	BBox       []float64 `json:"bbox,omitempty"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest,omitempty"`
	URL        string    `json:"url,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	PlaceCount int       `json:"place_count"`
	POICount   int       `json:"poi_count"`
}

// NewManifest builds a manifest for the given entries.
func NewManifest(entries []core.CatalogEntry) Manifest {
	m := Manifest{
		Version:       ManifestVersion,
		SchemaVersion: core.SchemaVersion,
		Regions:       make([]ManifestRegion, 0, len(entries)),
	}
	for _, c := range core.Categories() {
		m.POICategories = append(m.POICategories, c.String())
	}
	for _, e := range entries {
		m.Regions = append(m.Regions, ManifestRegion{
			ID:         e.RegionID,
			Name:       e.Name,
			Version:    e.Version,
			BBox:       []float64{e.Bounds.MinLat, e.Bounds.MinLon, e.Bounds.MaxLat, e.Bounds.MaxLon},
			Size:       e.SizeBytes,
			Digest:     e.Digest,
			URL:        e.URI,
			PlaceCount: e.PlaceCount,
			POICount:   e.POICount,
		})
	}
	return m
}

// regions returns the region list, accepting the legacy "states" key.
func (m *Manifest) regions() []ManifestRegion {
	if len(m.Regions) > 0 {
		return m.Regions
	}
	return m.States
}

// bounds returns the region bbox; regions published without one cover the
// whole world.
func (r *ManifestRegion) bounds() (core.BoundingBox, error) {
	if len(r.BBox) == 0 {
		return core.GlobalBounds, nil
	}
	if len(r.BBox) != 4 {
		return core.BoundingBox{}, core.ErrInvalidBounds
	}
	b := core.BoundingBox{MinLat: r.BBox[0], MinLon: r.BBox[1], MaxLat: r.BBox[2], MaxLon: r.BBox[3]}
	return b, core.ValidateBounds(b)
}

// artifactRef returns the download reference relative to the manifest.
func (r *ManifestRegion) artifactRef() string {
	switch {
	case r.URL != "":
		return r.URL
	case r.Filename != "":
		return r.Filename
	}
	return r.ID + ArtifactExtension
}

// version returns the region version, falling back to the artifact digest.
func (r *ManifestRegion) version() string {
	if r.Version != "" {
		return r.Version
	}
	return r.Digest
}

// ArtifactExtension is the file extension of packaged region databases.
const ArtifactExtension = ".tar.zst"
