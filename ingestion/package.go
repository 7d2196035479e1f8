package ingestion

import (
	"archive/tar"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/poiesic/geosearch/catalog"
	"github.com/poiesic/geosearch/core"
)

// maxArtifactEntry bounds a single unpacked file.
const maxArtifactEntry = 8 << 30

// Artifact describes a packaged region database.
type Artifact struct {
	Path   string
	Size   int64
	Digest string // hex BLAKE2b-256 of the artifact bytes
}

// Package writes the database directory dbDir as a zstd compressed tar
// stream to artifactPath. The artifact is written to a temporary file and
// renamed into place.
func Package(dbDir, artifactPath string) (*Artifact, error) {
	tmp := fmt.Sprintf("%s.tmp-%s", artifactPath, uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp)

	digest := core.NewDigest()
	counter := &countingWriter{}
	zw, err := zstd.NewWriter(io.MultiWriter(f, digest, counter), zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := writeTar(zw, dbDir); err != nil {
		zw.Close()
		f.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, artifactPath); err != nil {
		return nil, err
	}

	return &Artifact{
		Path:   artifactPath,
		Size:   counter.n,
		Digest: hex.EncodeToString(digest.Sum(nil)),
	}, nil
}

func writeTar(w io.Writer, dir string) error {
	tw := tar.NewWriter(w)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tw, src)
		return err
	})
	if err != nil {
		return err
	}
	return tw.Close()
}

// Unpack extracts an artifact stream into destDir, creating it as needed.
// Only regular files are extracted; entries escaping destDir are rejected.
func Unpack(r io.Reader, destDir string) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return err
	}
	defer zr.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := filepath.FromSlash(hdr.Name)
		if filepath.IsAbs(name) || name == ".." || strings.HasPrefix(name, ".."+string(filepath.Separator)) {
			return fmt.Errorf("%w: %s", ErrUnsafeArchivePath, hdr.Name)
		}
		target := filepath.Join(destDir, name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(filepath.Separator)) {
			return fmt.Errorf("%w: %s", ErrUnsafeArchivePath, hdr.Name)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := extractFile(tr, target, hdr.Size); err != nil {
			return err
		}
	}
}

func extractFile(r io.Reader, target string, size int64) error {
	if size > maxArtifactEntry {
		return fmt.Errorf("archive entry %s too large: %d bytes", target, size)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := io.CopyN(f, r, size); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

// ManifestFile is the name of the catalog manifest.
const ManifestFile = "manifest.json"

// WriteManifest writes the catalog manifest for entries into dir.
func WriteManifest(dir string, entries []core.CatalogEntry) (string, error) {
	data, err := json.MarshalIndent(catalog.NewManifest(entries), "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ManifestFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return path, nil
}

// CatalogEntry describes a packaged region for the manifest. uri is the
// artifact location relative to the manifest, usually its file name.
func CatalogEntry(meta *core.RegionMeta, artifact *Artifact, uri string) core.CatalogEntry {
	return core.CatalogEntry{
		RegionID:   meta.RegionID,
		Name:       meta.Name,
		Version:    meta.Version,
		Bounds:     meta.Bounds,
		SizeBytes:  artifact.Size,
		URI:        uri,
		Digest:     artifact.Digest,
		PlaceCount: meta.PlaceCount,
		POICount:   meta.POICount,
	}
}
