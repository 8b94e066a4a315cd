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

// Package chunker splits document text into overlapping, sentence-aligned chunks.
//
// Sentences are accumulated into a running chunk until the next sentence would
// push the joined text past MaxChars, at which point the chunk is closed and
// the next one is seeded with the last Overlap sentences of the closed chunk.
// Sentences are never split, so a single sentence longer than MaxChars forms
// a chunk on its own (the budget is soft). Output is deterministic.
//
//	c, err := chunker.New(chunker.WithMaxChars(2000), chunker.WithOverlap(2))
//	chunks := c.Split(documentText)
package chunker
