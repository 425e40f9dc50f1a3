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


// Package storage provides the storage abstraction layer for the ingestion
// pipeline.
//
// This package defines repository interfaces that decouple storage
// implementation from pipeline logic, so different backends (SQLite,
// in-memory, etc.) can be used interchangeably.
//
// # Constructor Return Type Pattern
//
// Backend packages follow a strict "return interface" pattern for public
// constructors to enforce abstraction:
//
//	docs, err := sqlite.NewDocumentRepository(store)  // returns storage.DocumentRepository
//
// Internal package constructors may return concrete types since they are
// only used within the implementation package.
//
// # Architecture
//
// The storage layer follows the Repository pattern:
//
//   - DocumentRepository: document records and their status lifecycle
//   - ChunkRepository: chunk rows, embeddings, and similarity search
//   - SummaryRepository: document-level summary rows
//   - BlobStore: raw uploaded source bytes in per-organization buckets
//
// # Claim Semantics
//
// DocumentRepository.ClaimDocument is the concurrency gate of the pipeline.
// It performs a conditional status transition in a single statement, matching
// both the status and the updated_at revision the caller observed; exactly
// one of several concurrent invocations succeeds, the rest receive
// ErrAlreadyClaimed and must stop without touching the document. Because the
// winning claim always advances the revision, a claim that leaves the status
// unchanged (re-running one stage) still excludes concurrent claimants.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support.
package storage
