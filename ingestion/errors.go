package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrOutputDirRequired is returned when no output directory is provided.
	ErrOutputDirRequired = errors.New("output directory required")

	// ErrSourceRequired is returned when no map data source is provided.
	ErrSourceRequired = errors.New("map data source required")

	// ErrUnknownFormat is returned for map data files of unrecognized format.
	ErrUnknownFormat = errors.New("unknown map data format")

	// ErrUnsafeArchivePath is returned when an artifact entry escapes the target directory.
	ErrUnsafeArchivePath = errors.New("unsafe path in archive")
)

// Reason classifies an ingestion failure.
type Reason string

const (
	ReasonInvalidInput Reason = "invalid input"
	ReasonSource       Reason = "source read failed"
	ReasonDuplicate    Reason = "duplicate source id"
	ReasonStore        Reason = "store write failed"
	ReasonPublish      Reason = "publish failed"
	ReasonCanceled     Reason = "canceled"
)

// IngestionError reports why a region build failed.
type IngestionError struct {
	RegionID string
	Reason   Reason
	Err      error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("build region %s: %s: %v", e.RegionID, e.Reason, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}
