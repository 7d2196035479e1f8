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


package core

import (
	"fmt"
	"regexp"
	"strings"
)

// regionIDPattern keeps region ids usable as directory and file names.
var regionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidatePlace validates a Place according to domain rules.
//
// Validation rules:
//   - SourceID must carry a known type
//   - Coordinate must be within WGS84 ranges
//   - A name or at least one address part must be present
//
// Everything else (display name, kind, address parts) is optional.
func ValidatePlace(place *Place) error {
	if place == nil {
		return fmt.Errorf("%w: place is nil", ErrInvalidPlace)
	}

	if err := ValidateSourceID(place.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPlace, err)
	}

	if !place.Coordinate.Valid() {
		return fmt.Errorf("%w: %w: %s", ErrInvalidPlace, ErrInvalidCoordinate, place.Coordinate)
	}

	if strings.TrimSpace(place.Name) == "" && place.Address.IsZero() {
		return fmt.Errorf("%w: name or address required", ErrInvalidPlace)
	}

	return nil
}

// ValidatePOI validates a POI: the embedded place plus a known category.
func ValidatePOI(poi *POI) error {
	if poi == nil {
		return fmt.Errorf("%w: POI is nil", ErrInvalidPOI)
	}

	if err := ValidatePlace(&poi.Place); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPOI, err)
	}

	if !poi.Category.Valid() {
		return fmt.Errorf("%w: %w: %d", ErrInvalidPOI, ErrUnknownCategory, poi.Category)
	}

	return nil
}

// ValidateSourceID checks that a SourceID has a known element type.
func ValidateSourceID(id SourceID) error {
	if id.Type < SourceNode || id.Type > SourceRelation {
		return fmt.Errorf("%w: type %d", ErrInvalidSourceID, id.Type)
	}
	return nil
}

// ValidateBounds checks that a bounding box is well formed.
func ValidateBounds(b BoundingBox) error {
	if !b.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidBounds, b)
	}
	return nil
}

// ValidateInRegion checks that a place lies within the region's bounds.
func ValidateInRegion(place *Place, bounds BoundingBox) error {
	if !bounds.Contains(place.Coordinate) {
		return fmt.Errorf("%w: %s at %s not in %s", ErrOutOfBounds, place.ID, place.Coordinate, bounds)
	}
	return nil
}

// ValidateRegionID checks that a region id is non-empty and safe to use as a
// path element.
func ValidateRegionID(id string) error {
	if id == "" {
		return ErrEmptyRegionID
	}
	if !regionIDPattern.MatchString(id) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidRegionID, id)
	}
	return nil
}
