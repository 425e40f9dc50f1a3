package embed

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/dbawebdesign/lailms-ingest/ai"
	"github.com/dbawebdesign/lailms-ingest/chunk"
	"github.com/dbawebdesign/lailms-ingest/core"
	"github.com/dbawebdesign/lailms-ingest/storage"
)

const (
	defaultMaxBatchChunks = 100
	defaultMaxBatchTokens = 20000
	defaultMaxChunkTokens = 8192
	defaultMaxRetries     = 3
	defaultRetryBaseDelay = time.Second
	defaultBatchPause     = 200 * time.Millisecond
)

// Option configures a Processor.
type Option func(*Processor)

// WithBatchLimits sets the per-request chunk-count and token ceilings.
func WithBatchLimits(maxChunks, maxTokens int) Option {
	return func(p *Processor) {
		if maxChunks > 0 {
			p.maxBatchChunks = maxChunks
		}
		if maxTokens > 0 {
			p.maxBatchTokens = maxTokens
		}
	}
}

// WithMaxChunkTokens sets the per-chunk token ceiling; longer chunks are
// truncated to fit.
func WithMaxChunkTokens(tokens int) Option {
	return func(p *Processor) {
		if tokens > 0 {
			p.maxChunkTokens = tokens
		}
	}
}

// WithRetry sets the per-batch retry policy.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(p *Processor) {
		if maxRetries > 0 {
			p.maxRetries = maxRetries
		}
		if baseDelay > 0 {
			p.retryBaseDelay = baseDelay
		}
	}
}

// WithBatchPause sets the pause between consecutive batch requests.
func WithBatchPause(pause time.Duration) Option {
	return func(p *Processor) {
		if pause >= 0 {
			p.batchPause = pause
		}
	}
}

// WithProgress sets a callback invoked after each persisted chunk.
func WithProgress(fn func(current, total int)) Option {
	return func(p *Processor) {
		p.progress = fn
	}
}

// Result reports what one embedding run did.
type Result struct {
	Total     int
	Embedded  int
	Failed    int
	Truncated int
}

// Processor embeds a document's chunks in token-budgeted batches. A batch
// that exhausts its retries degrades to null embeddings for its chunks
// instead of blocking the rest of the document.
type Processor struct {
	chunks   storage.ChunkRepository
	embedder ai.Embedder

	maxBatchChunks int
	maxBatchTokens int
	maxChunkTokens int
	maxRetries     int
	retryBaseDelay time.Duration
	batchPause     time.Duration
	progress       func(current, total int)
	logger         *slog.Logger
}

// NewProcessor creates an embedding processor over the chunk repository and
// embedding service.
func NewProcessor(chunks storage.ChunkRepository, embedder ai.Embedder, opts ...Option) *Processor {
	p := &Processor{
		chunks:         chunks,
		embedder:       embedder,
		maxBatchChunks: defaultMaxBatchChunks,
		maxBatchTokens: defaultMaxBatchTokens,
		maxChunkTokens: defaultMaxChunkTokens,
		maxRetries:     defaultMaxRetries,
		retryBaseDelay: defaultRetryBaseDelay,
		batchPause:     defaultBatchPause,
		logger:         slog.Default().With("component", "embed"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process embeds every chunk of the document that has no stored embedding
// yet. Returns per-run counts; a nil error with Result.Failed > 0 means the
// run degraded rather than failed.
func (p *Processor) Process(ctx context.Context, documentID string) (*Result, error) {
	pending, err := p.chunks.GetChunks(ctx, documentID, storage.ChunkFilter{MissingEmbedding: true})
	if err != nil {
		return nil, fmt.Errorf("loading chunks of document %s: %w", documentID, err)
	}

	result := &Result{Total: len(pending)}
	if len(pending) == 0 {
		return result, nil
	}

	var done int
	for batchIdx, batch := range p.batches(pending) {
		if batchIdx > 0 && p.batchPause > 0 {
			// Pause between batches to respect downstream rate limits.
			timer := time.NewTimer(p.batchPause)
			select {
			case <-ctx.Done():
				timer.Stop()
				return result, ctx.Err()
			case <-timer.C:
			}
		}

		if err := p.processBatch(ctx, batch, result); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			// The batch degraded to null embeddings; siblings continue.
			p.logger.Warn("embedding batch degraded",
				"document", documentID, "batch", batchIdx, "size", len(batch), "err", err)
		}

		done += len(batch)
		if p.progress != nil {
			p.progress(done, len(pending))
		}
	}

	p.logger.Info("embedding run finished", "document", documentID,
		"total", result.Total, "embedded", result.Embedded,
		"failed", result.Failed, "truncated", result.Truncated)
	return result, nil
}

// batches groups chunks respecting both the chunk-count and the token
// ceiling. A single over-budget chunk still forms its own batch; truncation
// happens at request time.
func (p *Processor) batches(chunks []*core.Chunk) [][]*core.Chunk {
	var out [][]*core.Chunk
	var current []*core.Chunk
	var currentTokens int

	for _, c := range chunks {
		tokens := min(c.TokenCount, p.maxChunkTokens)
		if len(current) > 0 &&
			(len(current) >= p.maxBatchChunks || currentTokens+tokens > p.maxBatchTokens) {
			out = append(out, current)
			current = nil
			currentTokens = 0
		}
		current = append(current, c)
		currentTokens += tokens
	}
	if len(current) > 0 {
		out = append(out, current)
	}
	return out
}

func (p *Processor) processBatch(ctx context.Context, batch []*core.Chunk, result *Result) error {
	texts := make([]string, len(batch))
	truncated := make([]bool, len(batch))
	for i, c := range batch {
		text, wasCut := p.truncate(c.Content)
		texts[i] = text
		truncated[i] = wasCut
	}

	var embeddings []ai.IndexedEmbedding
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if len(embeddings) != len(texts) {
			return fmt.Errorf("%w: sent %d, got %d", ErrEmbeddingCountMismatch, len(texts), len(embeddings))
		}
		return nil
	}, p.maxRetries, p.retryBaseDelay)

	if err != nil {
		// Exhausted retries: persist null embeddings so the document is not
		// blocked; a later re-run picks these chunks up again.
		for _, c := range batch {
			if err := p.chunks.SetEmbedding(ctx, c.ID, nil, false); err != nil {
				p.logger.Error("recording failed embedding", "chunk", c.ID, "err", err)
			}
			result.Failed++
		}
		return err
	}

	// The service may answer out of order; resort by the request's
	// positional index before zipping back onto the batch.
	slices.SortFunc(embeddings, func(a, b ai.IndexedEmbedding) int {
		return a.Index - b.Index
	})
	for _, e := range embeddings {
		if e.Index < 0 || e.Index >= len(batch) {
			// The response cannot be trusted; degrade the whole batch the
			// same way an exhausted retry does so the counts stay honest.
			for _, c := range batch {
				if serr := p.chunks.SetEmbedding(ctx, c.ID, nil, false); serr != nil {
					p.logger.Error("recording failed embedding", "chunk", c.ID, "err", serr)
				}
				result.Failed++
			}
			return fmt.Errorf("%w: index %d in batch of %d", ErrEmbeddingIndexOutOfRange, e.Index, len(batch))
		}
	}

	for _, e := range embeddings {
		c := batch[e.Index]
		vector := storage.NormalizeVector(e.Vector)
		if err := p.chunks.SetEmbedding(ctx, c.ID, vector, truncated[e.Index]); err != nil {
			result.Failed++
			p.logger.Error("persisting embedding", "chunk", c.ID, "err", err)
			continue
		}
		result.Embedded++
		if truncated[e.Index] {
			result.Truncated++
		}
	}
	return nil
}

// truncate cuts text to the per-chunk token ceiling at a rune boundary,
// searching the cut point by binary search over byte length.
func (p *Processor) truncate(text string) (string, bool) {
	if chunk.TokenCount(text) <= p.maxChunkTokens {
		return text, false
	}

	lo, hi := 0, len(text)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		for mid > lo && mid < len(text) && !utf8.RuneStart(text[mid]) {
			mid--
		}
		if mid == lo {
			break
		}
		if chunk.TokenCount(text[:mid]) <= p.maxChunkTokens {
			lo = mid
		} else {
			hi = mid - 1
			for hi > lo && !utf8.RuneStart(text[hi]) {
				hi--
			}
		}
	}
	return text[:lo], true
}
