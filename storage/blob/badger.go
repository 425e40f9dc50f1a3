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


package blob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/dbawebdesign/lailms-ingest/storage"
)

// LocalStore is a BadgerDB-backed blob store for single-node deployments and
// tests. Objects are keyed bucket-first so a bucket's contents stay adjacent
// on disk.
type LocalStore struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ storage.BlobStore = (*LocalStore)(nil)

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenLocalStore opens a BadgerDB blob store at the specified path.
// Creates the directory if it doesn't exist. An in-memory store holds blobs
// only for the lifetime of the process.
func OpenLocalStore(filePath string, inMemory bool) (*LocalStore, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(filePath, 0755); err != nil {
					return nil, err
				}
				info, err = os.Stat(filePath)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", filePath)
		}
		opts = badger.DefaultOptions(filePath)
	}

	opts.Logger = &badgerLoggerAdapter{logger: slog.Default()}
	// Uploads are already-compressed media more often than not.
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &LocalStore{
		db:     db,
		logger: slog.Default().With("component", "blob-local"),
	}, nil
}

// Close closes the underlying database.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

func objectKey(bucket, path string) []byte {
	return []byte(bucket + "/" + path)
}

// Download retrieves the blob at bucket/path.
func (s *LocalStore) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get(objectKey(bucket, path))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: blob %s/%s", storage.ErrNotFound, bucket, path)
	}
	if err != nil {
		return nil, fmt.Errorf("downloading blob %s/%s: %w", bucket, path, err)
	}
	return data, nil
}

// Upload stores a blob at bucket/path, overwriting any existing object.
// The content type is not persisted; callers record it on the document.
func (s *LocalStore) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *badger.Txn) error {
		return tx.Set(objectKey(bucket, path), data)
	})
	if err != nil {
		return fmt.Errorf("uploading blob %s/%s: %w", bucket, path, err)
	}

	s.logger.Debug("stored blob", "bucket", bucket, "path", path, "bytes", len(data))
	return nil
}
