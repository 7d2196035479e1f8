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


// Package search is the runtime query engine.
//
// The Engine answers two kinds of requests over the locally cached region
// databases:
//   - SearchText resolves a free-text address or place query with the
//     lexical index of each candidate region
//   - SearchNearby returns POIs inside a bounding box with the spatial index
//
// Both paths share a sufficiency rule. When the offline hits reach the
// configured threshold the online collaborators are not consulted at all.
// Otherwise the online geocoder or POI source is asked under a timeout,
// its results are appended after the offline ones and duplicates are
// removed, keeping the offline copy.
//
// Online failures never fail a search. They are logged and reported in
// Response.OnlineErr; only invalid arguments and caller cancellation are
// returned as errors.
package search
