package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dbawebdesign/lailms-ingest/core"
	"github.com/dbawebdesign/lailms-ingest/storage"
)

// documentRepository implements storage.DocumentRepository over a Store.
type documentRepository struct {
	store *Store
}

var _ storage.DocumentRepository = (*documentRepository)(nil)

// NewDocumentRepository creates a document repository backed by the store.
// Returns the storage.DocumentRepository interface to allow different
// implementations.
func NewDocumentRepository(store *Store) storage.DocumentRepository {
	return &documentRepository{store: store}
}

const documentColumns = "id, org_id, storage_path, media_type, source_url, status, metadata, created_at, updated_at"

func (r *documentRepository) InsertDocument(ctx context.Context, doc *core.Document) error {
	if err := core.ValidateDocument(doc); err != nil {
		return err
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	metadata, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return err
	}

	_, err = r.store.db.ExecContext(ctx,
		"INSERT INTO documents ("+documentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		doc.ID, doc.OrgID, doc.StoragePath, doc.MediaType, doc.SourceURL,
		string(doc.Status), metadata, doc.CreatedAt.UnixMilli(), doc.UpdatedAt.UnixMilli())
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: document %s", storage.ErrDuplicateKey, doc.ID)
	}
	if err != nil {
		return fmt.Errorf("inserting document %s: %w", doc.ID, err)
	}
	return nil
}

func (r *documentRepository) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	row := r.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}
	return doc, nil
}

func (r *documentRepository) UpdateDocument(ctx context.Context, id string, patch storage.DocumentPatch) (*core.Document, error) {
	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning update for document %s: %w", id, err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", id, err)
	}

	if patch.Status != nil {
		doc.Status = *patch.Status
	}
	// Merge patch keys into the stored metadata so stage history written by
	// earlier updates is never lost.
	if len(patch.Metadata) > 0 {
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]string, len(patch.Metadata))
		}
		for k, v := range patch.Metadata {
			doc.Metadata[k] = v
		}
	}
	doc.UpdatedAt = time.Now()

	metadata, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE documents SET status = ?, metadata = ?, updated_at = ? WHERE id = ?",
		string(doc.Status), metadata, doc.UpdatedAt.UnixMilli(), id)
	if err != nil {
		return nil, fmt.Errorf("updating document %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing update for document %s: %w", id, err)
	}
	return doc, nil
}

func (r *documentRepository) ClaimDocument(ctx context.Context, id string, from, to core.DocumentStatus, observed time.Time) error {
	if !core.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, from, to)
	}

	// Single conditional statement matching both the status and the revision
	// the caller read. The winning claim always moves updated_at forward, so
	// even a claim that keeps the status (a stage re-run) invalidates every
	// other claimant holding the same snapshot.
	now := time.Now().UnixMilli()
	if now <= observed.UnixMilli() {
		now = observed.UnixMilli() + 1
	}
	res, err := r.store.db.ExecContext(ctx,
		"UPDATE documents SET status = ?, updated_at = ? WHERE id = ? AND status = ? AND updated_at = ?",
		string(to), now, id, string(from), observed.UnixMilli())
	if err != nil {
		return fmt.Errorf("claiming document %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claiming document %s: %w", id, err)
	}
	if affected > 0 {
		return nil
	}

	var current string
	row := r.store.db.QueryRowContext(ctx, "SELECT status FROM documents WHERE id = ?", id)
	if err := row.Scan(&current); errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: document %s", storage.ErrNotFound, id)
	} else if err != nil {
		return fmt.Errorf("claiming document %s: %w", id, err)
	}
	return fmt.Errorf("%w: document %s is %s, claim expected %s as of %s",
		storage.ErrAlreadyClaimed, id, current, from, observed.UTC().Format(time.RFC3339Nano))
}

func (r *documentRepository) Close() error {
	return nil
}

// scannable covers *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanDocument(row scannable) (*core.Document, error) {
	var (
		doc       core.Document
		status    string
		metadata  string
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&doc.ID, &doc.OrgID, &doc.StoragePath, &doc.MediaType,
		&doc.SourceURL, &status, &metadata, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	doc.Status = core.DocumentStatus(status)
	doc.CreatedAt = time.UnixMilli(createdAt)
	doc.UpdatedAt = time.UnixMilli(updatedAt)

	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("%w: document metadata: %w", storage.ErrSerializationFailed, err)
		}
	}
	return &doc, nil
}

func marshalMetadata(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	bs, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("%w: document metadata: %w", storage.ErrSerializationFailed, err)
	}
	return string(bs), nil
}
