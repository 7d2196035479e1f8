package catalog

import "errors"

var (
	// ErrCatalogUnavailable wraps every failure to obtain the region list.
	ErrCatalogUnavailable = errors.New("region catalog unavailable")

	// ErrManifestURLRequired is returned when no manifest URL is configured.
	ErrManifestURLRequired = errors.New("manifest URL required")

	// ErrIncompatibleSchema indicates a manifest built for another schema version.
	ErrIncompatibleSchema = errors.New("incompatible manifest schema version")

	// ErrUnsupportedScheme indicates a URI the catalog cannot fetch.
	ErrUnsupportedScheme = errors.New("unsupported URI scheme")

	// ErrFetchFailed indicates an artifact download failure.
	ErrFetchFailed = errors.New("artifact fetch failed")
)
