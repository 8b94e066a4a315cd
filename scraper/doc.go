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

// Package scraper collects publications from a paginated listing site.
//
// Traversal runs in two phases over a single Session. The listing phase
// extracts every item on every listing page, skipping titles already seen in
// the run. The resolve phase visits each detail page to find the downloadable
// file link. Progress is recorded in a core.ScrapeCursor so that a Supervisor
// can replace a lost session and resume where the traversal stopped.
//
// Missing fields never fail an item and a missing "next" control ends the
// listing normally. Only session-level failures, wrapped in ErrSessionLost,
// escape the traversal.
package scraper
