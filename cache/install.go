package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/geosearch/core"
	"github.com/poiesic/geosearch/ingestion"
	"github.com/poiesic/geosearch/storage/badger"
	"golang.org/x/sync/errgroup"
)

type listFunc func(ctx context.Context) ([]core.CatalogEntry, error)

// EnsureLocal returns the installed database of a region, downloading and
// installing the catalog's current version when the installed one is
// missing or stale. Older versions are removed once no query pins them.
//
// When the catalog cannot be reached the installed version is returned.
// Failures are *FetchError and leave any installed version untouched.
func (c *Cache) EnsureLocal(ctx context.Context, regionID string) (core.CacheEntry, error) {
	if c.catalog == nil {
		return core.CacheEntry{}, &FetchError{RegionID: regionID, Reason: ReasonCatalog, Err: ErrCatalogRequired}
	}
	return c.ensure(ctx, regionID, c.catalog.ListAvailable)
}

// SyncAll ensures every region listed by the catalog, installing up to the
// sync limit concurrently. Regions that fail are reported in the joined
// error; the others are still installed.
func (c *Cache) SyncAll(ctx context.Context) ([]core.CacheEntry, error) {
	if c.catalog == nil {
		return nil, ErrCatalogRequired
	}
	available, err := c.catalog.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}
	list := func(context.Context) ([]core.CatalogEntry, error) { return available, nil }

	var (
		mu        sync.Mutex
		installed = make([]core.CacheEntry, 0, len(available))
		errs      []error
	)
	var g errgroup.Group
	g.SetLimit(c.syncLimit)
	for _, entry := range available {
		g.Go(func() error {
			got, err := c.ensure(ctx, entry.RegionID, list)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			installed = append(installed, got)
			return nil
		})
	}
	g.Wait()

	slices.SortFunc(installed, func(a, b core.CacheEntry) int {
		return strings.Compare(a.RegionID, b.RegionID)
	})
	return installed, errors.Join(errs...)
}

func (c *Cache) ensure(ctx context.Context, regionID string, list listFunc) (core.CacheEntry, error) {
	if err := core.ValidateRegionID(regionID); err != nil {
		return core.CacheEntry{}, &FetchError{RegionID: regionID, Reason: ReasonInvalidRegion, Err: err}
	}
	// Concurrent callers for the same region share one install.
	v, err, _ := c.installs.Do(regionID, func() (any, error) {
		return c.ensureLocal(ctx, regionID, list)
	})
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			c.monitor.OnFetchError(regionID, fe.Reason)
		}
		return core.CacheEntry{}, err
	}
	return v.(core.CacheEntry), nil
}

func (c *Cache) ensureLocal(ctx context.Context, regionID string, list listFunc) (core.CacheEntry, error) {
	installed, err := c.index.GetEntry(ctx, regionID)
	if err != nil {
		return core.CacheEntry{}, c.fetchError(ctx, regionID, ReasonInstall, err)
	}

	available, err := list(ctx)
	if err != nil {
		if installed != nil && ctx.Err() == nil {
			c.logger.Warn("catalog unavailable, using installed region",
				"region", regionID, "version", installed.Version, "err", err)
			return *installed, nil
		}
		return core.CacheEntry{}, c.fetchError(ctx, regionID, ReasonCatalog, err)
	}

	i := slices.IndexFunc(available, func(e core.CatalogEntry) bool { return e.RegionID == regionID })
	if i < 0 {
		if installed != nil {
			c.logger.Warn("region no longer in catalog, keeping installed version",
				"region", regionID, "version", installed.Version)
			return *installed, nil
		}
		return core.CacheEntry{}, &FetchError{RegionID: regionID, Reason: ReasonNotInCatalog, Err: ErrNotInCatalog}
	}
	entry := available[i]

	if installed != nil && installed.Version == entry.Version {
		if _, err := os.Stat(installed.Path); err == nil {
			return *installed, nil
		}
		c.logger.Warn("installed region missing on disk, reinstalling", "region", regionID, "path", installed.Path)
	}

	start := time.Now()
	got, reason, err := c.install(ctx, entry, installed)
	if err != nil {
		return core.CacheEntry{}, c.fetchError(ctx, regionID, reason, err)
	}
	c.monitor.OnInstall(got.RegionID, got.Version, got.SizeBytes, time.Since(start))
	c.logger.Info("installed region", "region", got.RegionID, "version", got.Version,
		"size", got.SizeBytes, "elapsed", time.Since(start))

	if _, err := c.evict(ctx, regionID); err != nil {
		c.logger.Warn("eviction after install failed", "err", err)
	}
	return got, nil
}

func (c *Cache) fetchError(ctx context.Context, regionID string, reason Reason, err error) *FetchError {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		reason = ReasonCanceled
	}
	return &FetchError{RegionID: regionID, Reason: reason, Err: err}
}

// install downloads, verifies and unpacks entry next to the installed
// version, then swaps it in.
func (c *Cache) install(ctx context.Context, entry core.CatalogEntry, installed *core.CacheEntry) (core.CacheEntry, Reason, error) {
	if err := core.ValidateRegionID(entry.Version); err != nil {
		return core.CacheEntry{}, ReasonVerify, fmt.Errorf("%w: %q", ErrInvalidVersion, entry.Version)
	}
	regionDir := filepath.Join(c.root, regionsDir, entry.RegionID)
	if err := os.MkdirAll(regionDir, 0755); err != nil {
		return core.CacheEntry{}, ReasonInstall, err
	}

	c.logger.Info("downloading region", "region", entry.RegionID, "version", entry.Version, "size", entry.SizeBytes)
	artifact, reason, err := c.download(ctx, entry, regionDir)
	if err != nil {
		return core.CacheEntry{}, reason, err
	}
	defer os.Remove(artifact)

	staging := filepath.Join(regionDir, ".unpack-"+uuid.NewString())
	defer os.RemoveAll(staging)
	if err := unpackFile(artifact, staging); err != nil {
		return core.CacheEntry{}, ReasonVerify, err
	}
	meta, err := verifyDatabase(staging, entry)
	if err != nil {
		return core.CacheEntry{}, ReasonVerify, err
	}
	size, err := dirSize(staging)
	if err != nil {
		return core.CacheEntry{}, ReasonInstall, err
	}

	target := filepath.Join(regionDir, entry.Version)
	got := core.CacheEntry{
		RegionID:   entry.RegionID,
		Version:    entry.Version,
		Path:       target,
		Bounds:     meta.Bounds,
		SizeBytes:  size,
		LastAccess: c.now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.CacheEntry{}, ReasonInstall, ErrClosed
	}
	for r := range c.retired {
		if r.entry.Path == target {
			return core.CacheEntry{}, ReasonInstall, fmt.Errorf("%w: %s version %s", ErrPinned, entry.RegionID, entry.Version)
		}
	}
	if err := os.RemoveAll(target); err != nil {
		return core.CacheEntry{}, ReasonInstall, err
	}
	if err := os.Rename(staging, target); err != nil {
		return core.CacheEntry{}, ReasonInstall, err
	}
	if err := c.index.PutEntry(ctx, &got); err != nil {
		os.RemoveAll(target)
		return core.CacheEntry{}, ReasonInstall, err
	}
	c.retireLocked(entry.RegionID, installed, target)
	return got, "", nil
}

// retireLocked takes the previous version of a region out of service. An
// open previous version is removed on its last release.
func (c *Cache) retireLocked(regionID string, previous *core.CacheEntry, current string) {
	if r, ok := c.regions[regionID]; ok {
		delete(c.regions, regionID)
		if r.entry.Path == current {
			r.close(c.logger)
			return
		}
		r.retired = true
		if r.refs == 0 {
			c.disposeLocked(r)
			return
		}
		c.retired[r] = struct{}{}
		c.logger.Info("previous region version in use, removal deferred",
			"region", regionID, "version", r.entry.Version, "refs", r.refs)
		return
	}
	if previous != nil && previous.Path != current {
		if err := os.RemoveAll(previous.Path); err != nil {
			c.logger.Error("failed to remove previous region version", "path", previous.Path, "err", err)
		}
	}
}

// download copies the artifact into dir and checks its declared size and
// digest. The returned file must be removed by the caller.
func (c *Cache) download(ctx context.Context, entry core.CatalogEntry, dir string) (string, Reason, error) {
	body, err := c.catalog.Fetch(ctx, entry)
	if err != nil {
		return "", ReasonDownload, err
	}
	defer body.Close()

	f, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", ReasonInstall, err
	}
	path := f.Name()

	digest := core.NewDigest()
	n, err := io.Copy(io.MultiWriter(f, digest), &contextReader{ctx: ctx, r: body})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", ReasonDownload, err
	}

	if entry.SizeBytes > 0 && n != entry.SizeBytes {
		os.Remove(path)
		return "", ReasonVerify, fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, n, entry.SizeBytes)
	}
	if entry.Digest != "" {
		if got := hex.EncodeToString(digest.Sum(nil)); !strings.EqualFold(got, entry.Digest) {
			os.Remove(path)
			return "", ReasonVerify, fmt.Errorf("%w: got %s, want %s", ErrDigestMismatch, got, entry.Digest)
		}
	}
	return path, "", nil
}

func unpackFile(artifact, dest string) error {
	f, err := os.Open(artifact)
	if err != nil {
		return err
	}
	defer f.Close()
	return ingestion.Unpack(f, dest)
}

// verifyDatabase opens an unpacked database and checks it is the region
// and version the catalog promised. Catalogs publishing no version use the
// artifact digest instead, which cannot be checked against the database.
func verifyDatabase(dir string, entry core.CatalogEntry) (core.RegionMeta, error) {
	r, err := badger.OpenRegion(dir)
	if err != nil {
		return core.RegionMeta{}, err
	}
	meta := r.Meta()
	if err := r.Close(); err != nil {
		return core.RegionMeta{}, err
	}
	versionOK := meta.Version == entry.Version || (entry.Digest != "" && entry.Version == entry.Digest)
	if meta.RegionID != entry.RegionID || !versionOK {
		return core.RegionMeta{}, fmt.Errorf("%w: got %s@%s, want %s@%s",
			ErrMetaMismatch, meta.RegionID, meta.Version, entry.RegionID, entry.Version)
	}
	return meta, nil
}

// contextReader stops reading once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
