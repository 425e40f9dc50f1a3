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

// Package pipeline orchestrates document processing end to end.
//
// Each entry point claims the document with a conditional status transition,
// so two invocations racing on the same document resolve to one winner and
// one "already being processed" result. Entry points never return a Go
// error: every failure is converted to a structured StageError, recorded on
// the document, and reported in the Result.
//
// Stages communicate only through the persisted stores. Extraction writes
// its text to the blob store, chunking reads it back, and summarization
// re-derives pending work from chunk status, which makes every stage safe to
// re-run in isolation.
package pipeline
