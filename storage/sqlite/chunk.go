package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dbawebdesign/lailms-ingest/core"
	"github.com/dbawebdesign/lailms-ingest/storage"
)

// chunkRepository implements storage.ChunkRepository over a Store.
type chunkRepository struct {
	store *Store
}

var _ storage.ChunkRepository = (*chunkRepository)(nil)

// NewChunkRepository creates a chunk repository backed by the store.
// Returns the storage.ChunkRepository interface to allow different
// implementations.
func NewChunkRepository(store *Store) storage.ChunkRepository {
	return &chunkRepository{store: store}
}

const chunkColumns = "id, document_id, chunk_index, content, token_count, section_id, citation_key, " +
	"embedding, truncated, summary_text, summary_status, section_summary_text, section_summary_status, " +
	"created_at, updated_at"

func (r *chunkRepository) InsertChunks(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return err
		}
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning chunk insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks ("+chunkColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, chunk := range chunks {
		if chunk.CreatedAt.IsZero() {
			chunk.CreatedAt = now
		}
		chunk.UpdatedAt = now

		var embedding any
		if chunk.Embedding != nil {
			embedding = storage.MarshalVector(chunk.Embedding)
		}

		_, err := stmt.ExecContext(ctx,
			chunk.ID, chunk.DocumentID, chunk.Index, chunk.Content, chunk.TokenCount,
			chunk.SectionID, chunk.CitationKey, embedding, chunk.Truncated,
			chunk.SummaryText, string(chunk.SummaryStatus),
			chunk.SectionSummaryText, string(chunk.SectionSummaryStatus),
			chunk.CreatedAt.UnixMilli(), chunk.UpdatedAt.UnixMilli())
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: chunk %d of document %s", storage.ErrDuplicateKey, chunk.Index, chunk.DocumentID)
		}
		if err != nil {
			return fmt.Errorf("inserting chunk %d of document %s: %w", chunk.Index, chunk.DocumentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunk insert: %w", err)
	}
	return nil
}

func (r *chunkRepository) GetChunks(ctx context.Context, documentID string, filter storage.ChunkFilter) ([]*core.Chunk, error) {
	query := "SELECT " + chunkColumns + " FROM chunks WHERE document_id = ?"
	args := []any{documentID}

	if filter.SummaryStatus != nil {
		query += " AND summary_status = ?"
		args = append(args, string(*filter.SummaryStatus))
	}
	if filter.SectionSummaryStatus != nil {
		query += " AND section_summary_status = ?"
		args = append(args, string(*filter.SectionSummaryStatus))
	}
	if filter.SectionID != nil {
		query += " AND section_id = ?"
		args = append(args, *filter.SectionID)
	}
	if filter.MissingEmbedding {
		query += " AND embedding IS NULL"
	}
	query += " ORDER BY chunk_index"

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks of document %s: %w", documentID, err)
	}
	defer rows.Close()

	var chunks []*core.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning chunk of document %s: %w", documentID, err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks of document %s: %w", documentID, err)
	}
	return chunks, nil
}

func (r *chunkRepository) UpdateChunks(ctx context.Context, ids []string, patch storage.ChunkPatch) error {
	if len(ids) == 0 {
		return nil
	}

	var sets []string
	var args []any
	if patch.SummaryText != nil {
		sets = append(sets, "summary_text = ?")
		args = append(args, *patch.SummaryText)
	}
	if patch.SummaryStatus != nil {
		sets = append(sets, "summary_status = ?")
		args = append(args, string(*patch.SummaryStatus))
	}
	if patch.SectionSummaryText != nil {
		sets = append(sets, "section_summary_text = ?")
		args = append(args, *patch.SectionSummaryText)
	}
	if patch.SectionSummaryStatus != nil {
		sets = append(sets, "section_summary_status = ?")
		args = append(args, string(*patch.SectionSummaryStatus))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UnixMilli())

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	for _, id := range ids {
		args = append(args, id)
	}

	// One statement flips the whole set atomically.
	query := "UPDATE chunks SET " + strings.Join(sets, ", ") + " WHERE id IN (" + placeholders + ")"
	if _, err := r.store.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("updating %d chunks: %w", len(ids), err)
	}
	return nil
}

func (r *chunkRepository) SetEmbedding(ctx context.Context, id string, vector []float32, truncated bool) error {
	var embedding any
	if vector != nil {
		embedding = storage.MarshalVector(vector)
	}

	res, err := r.store.db.ExecContext(ctx,
		"UPDATE chunks SET embedding = ?, truncated = ?, updated_at = ? WHERE id = ?",
		embedding, truncated, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("setting embedding for chunk %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting embedding for chunk %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: chunk %s", storage.ErrNotFound, id)
	}
	return nil
}

func (r *chunkRepository) FindSimilar(ctx context.Context, documentID string, vector []float32, minScore float32, limit int) ([]*storage.ChunkMatch, error) {
	rows, err := r.store.db.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE document_id = ? AND embedding IS NOT NULL",
		documentID)
	if err != nil {
		return nil, fmt.Errorf("querying embedded chunks of document %s: %w", documentID, err)
	}
	defer rows.Close()

	var matches []*storage.ChunkMatch
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning chunk of document %s: %w", documentID, err)
		}
		if len(chunk.Embedding) == 0 {
			continue
		}

		// Dot product equals cosine similarity for normalized vectors.
		score := storage.DotProduct(vector, chunk.Embedding)
		if score >= minScore {
			matches = append(matches, &storage.ChunkMatch{Chunk: chunk, Score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks of document %s: %w", documentID, err)
	}

	slices.SortFunc(matches, func(a, b *storage.ChunkMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (r *chunkRepository) Close() error {
	return nil
}

func scanChunk(row scannable) (*core.Chunk, error) {
	var (
		chunk                core.Chunk
		embedding            sql.Null[[]byte]
		summaryStatus        string
		sectionSummaryStatus string
		createdAt            int64
		updatedAt            int64
	)
	err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Content,
		&chunk.TokenCount, &chunk.SectionID, &chunk.CitationKey,
		&embedding, &chunk.Truncated, &chunk.SummaryText, &summaryStatus,
		&chunk.SectionSummaryText, &sectionSummaryStatus, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	chunk.SummaryStatus = core.SummaryStatus(summaryStatus)
	chunk.SectionSummaryStatus = core.SummaryStatus(sectionSummaryStatus)
	chunk.CreatedAt = time.UnixMilli(createdAt)
	chunk.UpdatedAt = time.UnixMilli(updatedAt)

	if embedding.Valid {
		chunk.Embedding, err = storage.UnmarshalVector(embedding.V)
		if err != nil {
			return nil, err
		}
	}
	return &chunk, nil
}
