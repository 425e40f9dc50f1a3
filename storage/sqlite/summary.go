package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dbawebdesign/lailms-ingest/core"
	"github.com/dbawebdesign/lailms-ingest/storage"
)

// summaryRepository implements storage.SummaryRepository over a Store.
type summaryRepository struct {
	store *Store
}

var _ storage.SummaryRepository = (*summaryRepository)(nil)

// NewSummaryRepository creates a summary repository backed by the store.
// Returns the storage.SummaryRepository interface to allow different
// implementations.
func NewSummaryRepository(store *Store) storage.SummaryRepository {
	return &summaryRepository{store: store}
}

func (r *summaryRepository) UpsertSummary(ctx context.Context, summary *core.DocumentSummary) error {
	if summary.DocumentID == "" {
		return core.ErrMissingDocumentID
	}
	if summary.Level == "" {
		summary.Level = core.SummaryLevelDocument
	}

	now := time.Now()
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = now
	}
	summary.UpdatedAt = now

	// Re-running the document stage overwrites the previous rollup in place.
	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO document_summaries (document_id, level, summary, status, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (document_id, level) DO UPDATE SET
			summary = excluded.summary,
			status = excluded.status,
			model = excluded.model,
			updated_at = excluded.updated_at`,
		summary.DocumentID, summary.Level, summary.Summary, string(summary.Status),
		summary.Model, summary.CreatedAt.UnixMilli(), summary.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upserting summary for document %s: %w", summary.DocumentID, err)
	}
	return nil
}

func (r *summaryRepository) GetSummary(ctx context.Context, documentID, level string) (*core.DocumentSummary, error) {
	if level == "" {
		level = core.SummaryLevelDocument
	}

	var (
		summary   core.DocumentSummary
		status    string
		createdAt int64
		updatedAt int64
	)
	row := r.store.db.QueryRowContext(ctx, `
		SELECT document_id, level, summary, status, model, created_at, updated_at
		FROM document_summaries WHERE document_id = ? AND level = ?`,
		documentID, level)
	err := row.Scan(&summary.DocumentID, &summary.Level, &summary.Summary,
		&status, &summary.Model, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: summary %s/%s", storage.ErrNotFound, documentID, level)
	}
	if err != nil {
		return nil, fmt.Errorf("getting summary for document %s: %w", documentID, err)
	}

	summary.Status = core.SummaryStatus(status)
	summary.CreatedAt = time.UnixMilli(createdAt)
	summary.UpdatedAt = time.UnixMilli(updatedAt)
	return &summary, nil
}

func (r *summaryRepository) Close() error {
	return nil
}
