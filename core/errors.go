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

import "errors"

// Domain validation errors
var (
	// ErrInvalidPlace indicates a Place failed validation.
	ErrInvalidPlace = errors.New("invalid place")

	// ErrInvalidPOI indicates a POI failed validation.
	ErrInvalidPOI = errors.New("invalid POI")

	// ErrInvalidCoordinate indicates a coordinate outside WGS84 ranges.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrInvalidBounds indicates a malformed bounding box.
	ErrInvalidBounds = errors.New("invalid bounding box")

	// ErrInvalidSourceID indicates a missing or malformed source id.
	ErrInvalidSourceID = errors.New("invalid source id")

	// ErrUnknownCategory indicates a value outside the Category enumeration.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrOutOfBounds indicates a coordinate outside the region's bounding box.
	ErrOutOfBounds = errors.New("coordinate outside region bounds")

	// ErrEmptyRegionID indicates the region id is empty.
	ErrEmptyRegionID = errors.New("region id cannot be empty")

	// ErrInvalidRegionID indicates a region id that is unsafe as a path element.
	ErrInvalidRegionID = errors.New("invalid region id")
)
