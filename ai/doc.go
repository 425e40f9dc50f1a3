// Copyright 2025 DBA Web Design
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


// Package ai provides abstractions for the AI services consumed by the
// ingestion pipeline.
//
// The pipeline depends on four services, each defined as an interface so the
// core stages can be tested without network access:
//
//   - TextGenerator: role-tagged message completion, used for chunk, section,
//     and document summaries
//   - Embedder: batch text embedding with positional result indices
//   - Transcriber: speech-to-text for audio sources
//   - TranscriptFetcher: caption-track retrieval for hosted videos
//
// Provider aggregates all four for convenient initialization and teardown.
//
// # Implementation Packages
//
//   - ai/openai: production implementation over OpenAI-compatible APIs
//   - ai/youtube: caption-track fetch client for video sources
//   - ai/mock: deterministic test doubles with function-field injection
//
// Public constructors in the implementation packages return the interface
// types to enforce abstraction; the mocks return concrete types so tests can
// inject behavior and assert on call counts.
package ai
