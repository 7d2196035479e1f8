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


// Package storage defines the persistence contracts of geosearch.
//
// A region database is written once by a RegionWriter during ingestion and
// then only ever read through a RegionReader. Readers are immutable and safe
// for concurrent use, so the query engine fans a single request out over
// many regions at once.
//
// The BadgerDB implementation lives in the badger subpackage:
//
//	w, err := badger.CreateRegion("/data/regions/tmp-monaco")
//	...
//	meta, err := w.Finalize(ctx, core.RegionMeta{RegionID: "monaco", ...})
//
//	r, err := badger.OpenRegion("/data/regions/monaco")
//	defer r.Close()
//	hits, err := r.SearchText(ctx, "rue grimaldi", 10)
//
// The local cache of installed regions keeps its bookkeeping in a
// CacheIndexRepository, also backed by BadgerDB.
//
// # Context Support
//
// All blocking methods accept a context.Context and stop early when it is
// cancelled.
package storage
