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


// Package ingestion turns OpenStreetMap extracts into region databases.
//
// A Builder streams the features of a MapDataSource once, keeps those inside
// the region's bounding box that carry a name or a street, classifies them,
// and writes places, POIs and both search indexes through a
// storage.RegionWriter. Databases are built in a temporary directory next to
// the target and renamed into place only when complete, so a failed build
// never leaves a readable database behind.
//
// # Usage
//
//	b, err := ingestion.NewBuilder("/srv/regions", ingestion.WithProgress(os.Stderr, 10000))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Release()
//
//	src, err := ingestion.NewOSMFileSource("monaco-latest.osm.pbf")
//	meta, err := b.Build(ctx, src, "monaco", bbox)
//
// Built databases are distributed as zstd compressed tar artifacts written
// by Package and listed in a manifest written by WriteManifest.
package ingestion
