package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrRootRequired indicates the cache was created without a root directory.
	ErrRootRequired = errors.New("cache root directory is required")

	// ErrCatalogRequired indicates an operation needs a catalog but none was configured.
	ErrCatalogRequired = errors.New("catalog is required")

	// ErrNotInstalled indicates the region has no installed database.
	ErrNotInstalled = errors.New("region not installed")

	// ErrNotInCatalog indicates the catalog does not list the region.
	ErrNotInCatalog = errors.New("region not in catalog")

	// ErrSizeMismatch indicates the downloaded artifact has the wrong byte size.
	ErrSizeMismatch = errors.New("artifact size mismatch")

	// ErrDigestMismatch indicates the downloaded artifact failed its digest check.
	ErrDigestMismatch = errors.New("artifact digest mismatch")

	// ErrMetaMismatch indicates the unpacked database describes another region or version.
	ErrMetaMismatch = errors.New("region database does not match catalog entry")

	// ErrInvalidVersion indicates a catalog version unusable as a directory name.
	ErrInvalidVersion = errors.New("invalid region version")

	// ErrPinned indicates the region is held open by an in-flight query.
	ErrPinned = errors.New("region is in use")

	// ErrClosed indicates the cache was closed.
	ErrClosed = errors.New("cache is closed")
)

// Reason classifies a FetchError.
type Reason string

const (
	ReasonInvalidRegion Reason = "invalid region id"
	ReasonCatalog       Reason = "catalog unavailable"
	ReasonNotInCatalog  Reason = "not in catalog"
	ReasonDownload      Reason = "download failed"
	ReasonVerify        Reason = "verification failed"
	ReasonInstall       Reason = "install failed"
	ReasonCanceled      Reason = "canceled"
)

// FetchError reports a failed download or install. The previously
// installed version of the region, if any, is left untouched.
type FetchError struct {
	RegionID string
	Reason   Reason
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch region %s: %s: %v", e.RegionID, e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
