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


package sqlite

import (
	"os"

	"github.com/dbawebdesign/lailms-ingest/storage"
)

// NewTestRepositories creates repositories over a throwaway store for
// testing. Returns docs, chunks, summaries, the store, and error.
// Caller must close the store when done; the database directory is removed
// by the returned cleanup via Store.Path's parent.
func NewTestRepositories() (storage.DocumentRepository, storage.ChunkRepository, storage.SummaryRepository, *Store, error) {
	dir, err := os.MkdirTemp("", "lailms-ingest-test-*")
	if err != nil {
		return nil, nil, nil, nil, err
	}

	store, err := NewStore(dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, nil, nil, nil, err
	}

	return NewDocumentRepository(store), NewChunkRepository(store), NewSummaryRepository(store), store, nil
}
