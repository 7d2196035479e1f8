package ingestion

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/poiesic/geosearch/catalog"
	"github.com/poiesic/geosearch/core"
	"github.com/poiesic/geosearch/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackageUnpackRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newTestBuilder(t)
	meta, err := b.Build(ctx, sampleFeatures(), "richmond", smallBounds)
	require.NoError(t, err)

	artifactPath := filepath.Join(t.TempDir(), "richmond"+catalog.ArtifactExtension)
	artifact, err := Package(b.Path("richmond"), artifactPath)
	require.NoError(t, err)
	assert.Equal(t, artifactPath, artifact.Path)
	assert.Len(t, artifact.Digest, 64)

	info, err := os.Stat(artifactPath)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), artifact.Size)

	f, err := os.Open(artifactPath)
	require.NoError(t, err)
	defer f.Close()

	dest := filepath.Join(t.TempDir(), "unpacked")
	require.NoError(t, Unpack(f, dest))

	r, err := badger.OpenRegion(dest)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, meta.Version, r.Meta().Version)

	results, err := r.SearchText(ctx, "central hospital", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Central Hospital", results[0].Place.Name)
}

func craftArtifact(t *testing.T, name string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	tw := tar.NewWriter(zw)
	body := []byte("payload")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(body)), Typeflag: tar.TypeReg}))
	_, err = tw.Write(body)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestUnpackRejectsEscapingPaths(t *testing.T) {
	for _, name := range []string{"../evil", "nested/../../evil", "/etc/evil"} {
		t.Run(name, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "out")
			err := Unpack(bytes.NewReader(craftArtifact(t, name)), dest)
			assert.ErrorIs(t, err, ErrUnsafeArchivePath)
			_, statErr := os.Stat(filepath.Join(filepath.Dir(dest), "evil"))
			assert.ErrorIs(t, statErr, os.ErrNotExist)
		})
	}
}

func TestUnpackNestedFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out")
	require.NoError(t, Unpack(bytes.NewReader(craftArtifact(t, "sub/dir/file.vlog")), dest))
	data, err := os.ReadFile(filepath.Join(dest, "sub", "dir", "file.vlog"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestWriteManifestIsReadableByCatalog(t *testing.T) {
	ctx := context.Background()
	b := newTestBuilder(t)
	meta, err := b.Build(ctx, sampleFeatures(), "richmond", smallBounds)
	require.NoError(t, err)

	dir := t.TempDir()
	artifact, err := Package(b.Path("richmond"), filepath.Join(dir, "richmond"+catalog.ArtifactExtension))
	require.NoError(t, err)

	entry := CatalogEntry(meta, artifact, "richmond"+catalog.ArtifactExtension)
	path, err := WriteManifest(dir, []core.CatalogEntry{entry})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ManifestFile), path)

	client, err := catalog.NewClient("file://" + filepath.ToSlash(path))
	require.NoError(t, err)
	entries, err := client.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, "richmond", got.RegionID)
	assert.Equal(t, meta.Version, got.Version)
	assert.Equal(t, artifact.Digest, got.Digest)
	assert.Equal(t, artifact.Size, got.SizeBytes)
	assert.Equal(t, smallBounds, got.Bounds)

	rc, err := client.Fetch(ctx, got)
	require.NoError(t, err)
	defer rc.Close()
	dest := filepath.Join(t.TempDir(), "installed")
	require.NoError(t, Unpack(rc, dest))
}
