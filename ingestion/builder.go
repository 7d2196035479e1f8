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


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/geosearch/classify"
	"github.com/poiesic/geosearch/core"
	"github.com/poiesic/geosearch/storage"
	"github.com/poiesic/geosearch/storage/badger"
)

// RegionSpec describes one region to build.
type RegionSpec struct {
	ID     string
	Name   string // used for display names and as the default state
	Bounds core.BoundingBox
	Source MapDataSource
}

// Builder builds region databases into an output directory.
type Builder struct {
	outputDir      string
	classifier     *classify.Classifier
	pool           *ants.Pool
	progress       io.Writer
	reportInterval int
	logger         *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder) error

// WithClassifier sets the tag classifier. Default is classify.Default.
func WithClassifier(c *classify.Classifier) Option {
	return func(b *Builder) error {
		if c != nil {
			b.classifier = c
		}
		return nil
	}
}

// WithPoolSize sets how many regions BuildAll builds concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(b *Builder) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if b.pool != nil {
			b.pool.Release()
		}
		b.pool = pool
		return nil
	}
}

// WithProgress reports scanned features to w every interval features.
func WithProgress(w io.Writer, interval int) Option {
	return func(b *Builder) error {
		b.progress = w
		b.reportInterval = interval
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// NewBuilder creates a builder writing databases under outputDir.
func NewBuilder(outputDir string, opts ...Option) (*Builder, error) {
	if outputDir == "" {
		return nil, ErrOutputDirRequired
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	b := &Builder{
		outputDir:      outputDir,
		classifier:     classify.Default,
		pool:           pool,
		reportInterval: 10000,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		if optErr := opt(b); optErr != nil {
			b.Release()
			return nil, optErr
		}
	}
	return b, nil
}

// Release releases the worker pool.
func (b *Builder) Release() {
	if b.pool != nil {
		b.pool.Release()
	}
}

// Path returns the directory a region is published to.
func (b *Builder) Path(regionID string) string {
	return filepath.Join(b.outputDir, regionID)
}

// Build builds the region regionID from source, keeping features inside
// bbox. The region name defaults to its id.
func (b *Builder) Build(ctx context.Context, source MapDataSource, regionID string, bbox core.BoundingBox) (*core.RegionMeta, error) {
	return b.BuildRegion(ctx, RegionSpec{ID: regionID, Name: regionID, Bounds: bbox, Source: source})
}

// BuildRegion builds one region and publishes it atomically. Every failure
// is an *IngestionError and leaves any previously published database intact.
func (b *Builder) BuildRegion(ctx context.Context, spec RegionSpec) (*core.RegionMeta, error) {
	fail := func(reason Reason, err error) (*core.RegionMeta, error) {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			reason = ReasonCanceled
		}
		return nil, &IngestionError{RegionID: spec.ID, Reason: reason, Err: err}
	}

	if err := core.ValidateRegionID(spec.ID); err != nil {
		return fail(ReasonInvalidInput, err)
	}
	if err := core.ValidateBounds(spec.Bounds); err != nil {
		return fail(ReasonInvalidInput, err)
	}
	if spec.Source == nil {
		return fail(ReasonInvalidInput, ErrSourceRequired)
	}
	if spec.Name == "" {
		spec.Name = spec.ID
	}

	tmp := filepath.Join(b.outputDir, fmt.Sprintf(".%s.tmp-%s", spec.ID, uuid.NewString()))
	defer os.RemoveAll(tmp)

	w, err := badger.CreateRegion(tmp)
	if err != nil {
		return fail(ReasonStore, err)
	}
	meta, reason, err := b.write(ctx, w, spec)
	if closeErr := w.Close(); err == nil && closeErr != nil {
		reason, err = ReasonStore, closeErr
	}
	if err != nil {
		return fail(reason, err)
	}

	if err := publish(tmp, b.Path(spec.ID)); err != nil {
		return fail(ReasonPublish, err)
	}
	b.logger.Info("region built",
		"region", spec.ID,
		"version", meta.Version,
		"places", meta.PlaceCount,
		"pois", meta.POICount,
		"path", b.Path(spec.ID))
	return meta, nil
}

// write streams the source into w and finalizes it.
func (b *Builder) write(ctx context.Context, w storage.RegionWriter, spec RegionSpec) (*core.RegionMeta, Reason, error) {
	hasher := core.NewContentHasher()
	fmt.Fprintf(hasher, "region:%s\nbounds:%s\n", spec.Name, spec.Bounds)

	var tracker *ProgressTracker
	if b.progress != nil {
		tracker = NewProgressTracker(b.progress, spec.ID, 0, b.reportInterval)
		tracker.Start()
		defer tracker.Finish()
	}

	var writeErr error
	var writeReason Reason
	err := spec.Source.Scan(ctx, func(f Feature) error {
		if tracker != nil {
			tracker.Increment(1)
		}
		if !spec.Bounds.Contains(f.Coordinate) {
			return nil
		}
		category, classified := b.classifier.Classify(f.Tags)
		place := extractPlace(f, spec.Name, category, classified)
		if place == nil {
			return nil
		}

		if err := w.AddPlace(ctx, place); err != nil {
			writeReason, writeErr = storeReason(err), err
			return err
		}
		hasher.Write(storage.MarshalPlace(place))

		if classified {
			poi := extractPOI(place, f.Tags, category)
			if err := w.AddPOI(ctx, poi); err != nil {
				writeReason, writeErr = storeReason(err), err
				return err
			}
			hasher.Write(storage.MarshalPOI(poi))
		}
		return nil
	})
	if err != nil {
		if writeErr != nil && errors.Is(err, writeErr) {
			return nil, writeReason, err
		}
		return nil, ReasonSource, err
	}

	meta, err := w.Finalize(ctx, core.RegionMeta{
		RegionID: spec.ID,
		Name:     spec.Name,
		Version:  hasher.Version(),
		Bounds:   spec.Bounds,
	})
	if err != nil {
		return nil, ReasonStore, err
	}
	return meta, "", nil
}

func storeReason(err error) Reason {
	if errors.Is(err, storage.ErrDuplicateKey) {
		return ReasonDuplicate
	}
	return ReasonStore
}

// publish renames tmp to target, replacing any existing database.
func publish(tmp, target string) error {
	var old string
	if _, err := os.Stat(target); err == nil {
		old = fmt.Sprintf("%s.old-%s", target, uuid.NewString())
		if err := os.Rename(target, old); err != nil {
			return err
		}
	}
	if err := os.Rename(tmp, target); err != nil {
		if old != "" {
			os.Rename(old, target)
		}
		return err
	}
	if old != "" {
		return os.RemoveAll(old)
	}
	return nil
}

// BuildAll builds every region on the worker pool. Regions are independent:
// the metas of successful builds are returned in spec order, with nil for
// failed ones, alongside the joined errors.
func (b *Builder) BuildAll(ctx context.Context, specs []RegionSpec) ([]*core.RegionMeta, error) {
	metas := make([]*core.RegionMeta, len(specs))
	errs := make([]error, len(specs))

	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		err := b.pool.Submit(func() {
			defer wg.Done()
			metas[i], errs[i] = b.BuildRegion(ctx, spec)
		})
		if err != nil {
			wg.Done()
			errs[i] = &IngestionError{RegionID: spec.ID, Reason: ReasonStore, Err: err}
		}
	}
	wg.Wait()
	return metas, errors.Join(errs...)
}
