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


package search

import "errors"

var (
	// ErrRegionProviderRequired is returned when no region provider is given.
	ErrRegionProviderRequired = errors.New("region provider required")

	// ErrInvalidQuery is returned for malformed search arguments.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidThreshold is returned for a negative sufficiency threshold.
	ErrInvalidThreshold = errors.New("sufficiency threshold must not be negative")

	// ErrInvalidTolerance is returned for a negative deduplication tolerance.
	ErrInvalidTolerance = errors.New("dedup tolerance must not be negative")

	// ErrEngineClosed is returned when searching a closed engine.
	ErrEngineClosed = errors.New("engine is closed")
)
