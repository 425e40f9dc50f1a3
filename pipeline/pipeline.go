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

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"

	"github.com/panjf2000/ants/v2"

	"github.com/dbawebdesign/lailms-ingest/ai"
	"github.com/dbawebdesign/lailms-ingest/chunk"
	"github.com/dbawebdesign/lailms-ingest/core"
	"github.com/dbawebdesign/lailms-ingest/embed"
	"github.com/dbawebdesign/lailms-ingest/extract"
	"github.com/dbawebdesign/lailms-ingest/storage"
	"github.com/dbawebdesign/lailms-ingest/summarize"
)

// Result is what every pipeline entry point returns. Entry points never
// return a Go error: failures are recorded on the document and reported here
// with Success false and a structured Error.
type Result struct {
	Success    bool
	DocumentID string
	Message    string
	Error      *core.StageError
}

// Pipeline orchestrates the processing of registered documents: extraction,
// chunking, embedding, and hierarchical summarization. Stages communicate
// only through the persisted stores, so any stage can be re-run on its own.
type Pipeline struct {
	docs      storage.DocumentRepository
	chunks    storage.ChunkRepository
	summaries storage.SummaryRepository
	blobs     storage.BlobStore
	registry  *extract.Registry

	chunker    *chunk.Chunker
	embedder   *embed.Processor
	summarizer *summarize.Summarizer
	tracker    *Tracker
	sink       ProgressSink
	pool       *ants.Pool
	logger     *slog.Logger

	chunkOpts     []chunk.Option
	embedOpts     []embed.Option
	summarizeOpts []summarize.Option
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for asynchronous processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithProgressSink sets the sink receiving stage checkpoints. Default logs
// at debug level.
func WithProgressSink(sink ProgressSink) Option {
	return func(p *Pipeline) error {
		if sink != nil {
			p.sink = sink
		}
		return nil
	}
}

// WithChunkerOptions forwards options to the chunking stage.
func WithChunkerOptions(opts ...chunk.Option) Option {
	return func(p *Pipeline) error {
		p.chunkOpts = append(p.chunkOpts, opts...)
		return nil
	}
}

// WithEmbedOptions forwards options to the embedding stage.
func WithEmbedOptions(opts ...embed.Option) Option {
	return func(p *Pipeline) error {
		p.embedOpts = append(p.embedOpts, opts...)
		return nil
	}
}

// WithSummarizeOptions forwards options to the summarization stage.
func WithSummarizeOptions(opts ...summarize.Option) Option {
	return func(p *Pipeline) error {
		p.summarizeOpts = append(p.summarizeOpts, opts...)
		return nil
	}
}

// New creates a pipeline over the stores, extractor registry, and AI
// provider.
func New(
	docs storage.DocumentRepository,
	chunks storage.ChunkRepository,
	summaries storage.SummaryRepository,
	blobs storage.BlobStore,
	registry *extract.Registry,
	provider ai.Provider,
	opts ...Option,
) (*Pipeline, error) {
	if docs == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if summaries == nil {
		return nil, ErrSummaryRepositoryRequired
	}
	if blobs == nil {
		return nil, ErrBlobStoreRequired
	}
	if registry == nil {
		return nil, ErrRegistryRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		docs:      docs,
		chunks:    chunks,
		summaries: summaries,
		blobs:     blobs,
		registry:  registry,
		pool:      pool,
		logger:    slog.Default().With("component", "pipeline"),
	}
	p.tracker = NewTracker(docs)
	p.sink = NewLogSink(p.logger)

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	// Build stages after options so progress callbacks see the final sink.
	chunkOpts := append([]chunk.Option{chunk.WithProgress(func(current, total int) {
		p.sink.Report(StageChunk, current, total)
	})}, p.chunkOpts...)
	p.chunker = chunk.New(chunkOpts...)

	embedOpts := append([]embed.Option{embed.WithProgress(func(current, total int) {
		p.sink.Report(StageEmbed, current, total)
	})}, p.embedOpts...)
	p.embedder = embed.NewProcessor(chunks, provider.Embedder(), embedOpts...)

	summarizeOpts := append([]summarize.Option{summarize.WithProgress(func(current, total int) {
		p.sink.Report(StageSummarize, current, total)
	})}, p.summarizeOpts...)
	p.summarizer = summarize.New(docs, chunks, summaries, provider.Generator(), summarizeOpts...)

	return p, nil
}

// Release releases the worker pool. The pipeline should not be used after
// calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// Submit dispatches ProcessDocument for the document onto the worker pool.
// The outcome is logged; callers observe it by polling the document status.
func (p *Pipeline) Submit(documentID string) error {
	return p.pool.Submit(func() {
		result := p.ProcessDocument(context.Background(), documentID)
		if !result.Success {
			p.logger.Error("async processing failed",
				"document", documentID, "message", result.Message)
		}
	})
}

// ProcessDocument runs the whole pipeline for one document: extract, chunk,
// embed, summarize, finalize.
func (p *Pipeline) ProcessDocument(ctx context.Context, documentID string) Result {
	return p.execute(ctx, documentID, core.StatusProcessing, func(ctx context.Context, doc *core.Document) (string, error) {
		text, err := p.extractStage(ctx, doc)
		if err != nil {
			return "", err
		}
		if err := p.chunkStage(ctx, doc, text); err != nil {
			return "", err
		}
		embedFailed, err := p.embedStage(ctx, doc)
		if err != nil {
			return "", err
		}
		return p.summarizeStage(ctx, doc, embedFailed)
	})
}

// RunExtraction runs only the extraction stage, leaving the document ready
// for chunking.
func (p *Pipeline) RunExtraction(ctx context.Context, documentID string) Result {
	return p.execute(ctx, documentID, core.StatusProcessing, func(ctx context.Context, doc *core.Document) (string, error) {
		if _, err := p.extractStage(ctx, doc); err != nil {
			return "", err
		}
		return "extraction complete", nil
	})
}

// RunChunking runs only the chunking stage over previously extracted text.
func (p *Pipeline) RunChunking(ctx context.Context, documentID string) Result {
	return p.execute(ctx, documentID, core.StatusChunking, func(ctx context.Context, doc *core.Document) (string, error) {
		if err := p.chunkStage(ctx, doc, ""); err != nil {
			return "", err
		}
		return "chunking complete", nil
	})
}

// RunEmbedding runs only the embedding stage over chunks without a stored
// embedding.
func (p *Pipeline) RunEmbedding(ctx context.Context, documentID string) Result {
	return p.execute(ctx, documentID, core.StatusChunking, func(ctx context.Context, doc *core.Document) (string, error) {
		failed, err := p.embedStage(ctx, doc)
		if err != nil {
			return "", err
		}
		if failed > 0 {
			return fmt.Sprintf("embedding complete, %d chunks degraded", failed), nil
		}
		return "embedding complete", nil
	})
}

// RunSummarization runs the three summary levels and finalizes the document.
func (p *Pipeline) RunSummarization(ctx context.Context, documentID string) Result {
	return p.execute(ctx, documentID, core.StatusSummarizingChunks, func(ctx context.Context, doc *core.Document) (string, error) {
		var embedFailed int
		if doc.Metadata["embed_error"] != "" {
			embedFailed = 1
		}
		return p.summarizeStage(ctx, doc, embedFailed)
	})
}

// stageFn is the body of one entry point, run under the boundary catch.
type stageFn func(ctx context.Context, doc *core.Document) (string, error)

// execute is the shared entry-point boundary: load the document, claim it
// via a conditional status transition, run the stage body, and convert any
// failure, panic included, into a recorded StageError and a Result.
func (p *Pipeline) execute(ctx context.Context, documentID string, to core.DocumentStatus, fn stageFn) (result Result) {
	result = Result{DocumentID: documentID}

	doc, err := p.docs.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			result.Message = "document not found"
		} else {
			result.Message = err.Error()
		}
		return result
	}

	if doc.Status.IsTerminal() {
		result.Success = true
		result.Message = "document already finished processing"
		return result
	}

	// Re-running a later stage must not move the status backwards; the claim
	// then keeps the current status and the updated_at lease alone excludes
	// concurrent invocations holding the same snapshot.
	claimTo := to
	if !core.CanTransition(doc.Status, to) {
		claimTo = doc.Status
	}
	if err := p.docs.ClaimDocument(ctx, documentID, doc.Status, claimTo, doc.UpdatedAt); err != nil {
		if errors.Is(err, storage.ErrAlreadyClaimed) {
			result.Success = true
			result.Message = "document is already being processed"
			return result
		}
		result.Message = err.Error()
		return result
	}
	doc.Status = claimTo

	defer func() {
		if r := recover(); r != nil {
			stageErr := core.NewStageError(core.ErrCodeInternal,
				fmt.Sprintf("panic: %v", r),
				"Something went wrong while processing this document.",
				"Try processing the document again.")
			if ferr := p.tracker.Fail(ctx, documentID, core.StatusError, stageErr); ferr != nil {
				p.logger.Error("recording panic", "document", documentID, "err", ferr)
			}
			result = Result{
				DocumentID: documentID,
				Message:    stageErr.UserMessage,
				Error:      stageErr,
			}
		}
	}()

	message, err := fn(ctx, doc)
	if err != nil {
		stageErr := toStageError(err)
		if ferr := p.tracker.Fail(ctx, documentID, failStatus(stageErr.Code), stageErr); ferr != nil {
			p.logger.Error("recording stage failure", "document", documentID, "err", ferr)
		}
		result.Message = stageErr.UserMessage
		result.Error = stageErr
		return result
	}

	result.Success = true
	result.Message = message
	return result
}

// extractedPath is the blob key holding a document's extracted text, written
// by the extraction stage and read by the chunking stage.
func extractedPath(documentID string) string {
	return "extracted/" + documentID + ".txt"
}

func (p *Pipeline) extractStage(ctx context.Context, doc *core.Document) (string, error) {
	if err := p.tracker.Advance(ctx, doc.ID, core.StatusProcessing, StageExtract,
		StagePercent(StageExtract, 0, 1), nil); err != nil {
		return "", err
	}

	src := &extract.Source{Document: doc}
	if doc.SourceURL == "" && doc.StoragePath != "" {
		data, err := p.blobs.Download(ctx, storage.UploadBucket(doc.OrgID), doc.StoragePath)
		if err != nil {
			return "", core.NewStageError(core.ErrCodeMissingSource,
				fmt.Sprintf("downloading %s: %v", doc.StoragePath, err),
				"The uploaded file could not be found.",
				"Upload the file again.")
		}
		src.Data = data
	}

	result, kind, err := p.registry.Extract(ctx, src)
	if err != nil {
		return "", err
	}

	bucket := storage.UploadBucket(doc.OrgID)
	if err := p.blobs.Upload(ctx, bucket, extractedPath(doc.ID),
		[]byte(result.Text), "text/plain; charset=utf-8"); err != nil {
		return "", fmt.Errorf("storing extracted text: %w", err)
	}

	md := map[string]string{
		"source_kind":     string(kind),
		"extracted_path":  extractedPath(doc.ID),
		"extracted_chars": strconv.Itoa(len(result.Text)),
	}
	for k, v := range result.Metadata {
		md[k] = v
	}
	p.sink.Report(StageExtract, 1, 1)
	return result.Text, p.tracker.Advance(ctx, doc.ID, core.StatusProcessing,
		StageExtract, StagePercent(StageExtract, 1, 1), md)
}

func (p *Pipeline) chunkStage(ctx context.Context, doc *core.Document, text string) error {
	if err := p.tracker.Advance(ctx, doc.ID, core.StatusChunking, StageChunk,
		StagePercent(StageChunk, 0, 1), nil); err != nil {
		return err
	}

	if text == "" {
		data, err := p.blobs.Download(ctx, storage.UploadBucket(doc.OrgID), extractedPath(doc.ID))
		if err != nil {
			return core.NewStageError(core.ErrCodeMissingSource,
				fmt.Sprintf("loading extracted text: %v", err),
				"This document has no extracted text yet.",
				"Run extraction before chunking.")
		}
		text = string(data)
	}

	rows := p.chunker.Split(doc.ID, text)
	if len(rows) == 0 {
		return core.NewStageError(core.ErrCodeNoChunks,
			"extracted text produced no chunks",
			"The document contained no usable text.",
			"Check that the document has readable content.")
	}

	if err := p.chunks.InsertChunks(ctx, rows); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			p.logger.Info("document already chunked", "document", doc.ID)
		} else {
			return fmt.Errorf("storing chunks: %w", err)
		}
	}

	return p.tracker.Advance(ctx, doc.ID, core.StatusChunking, StageChunk,
		StagePercent(StageChunk, 1, 1),
		map[string]string{"chunk_count": strconv.Itoa(len(rows))})
}

func (p *Pipeline) embedStage(ctx context.Context, doc *core.Document) (int, error) {
	if err := p.tracker.Advance(ctx, doc.ID, core.StatusChunking, StageEmbed,
		StagePercent(StageEmbed, 0, 1), nil); err != nil {
		return 0, err
	}

	result, err := p.embedder.Process(ctx, doc.ID)
	if err != nil {
		return 0, fmt.Errorf("embedding chunks: %w", err)
	}

	md := map[string]string{"embedded_count": strconv.Itoa(result.Embedded)}
	if result.Failed > 0 {
		md["embed_error"] = fmt.Sprintf("%d chunks failed embedding", result.Failed)
	}
	return result.Failed, p.tracker.Advance(ctx, doc.ID, core.StatusChunking,
		StageEmbed, StagePercent(StageEmbed, 1, 1), md)
}

func (p *Pipeline) summarizeStage(ctx context.Context, doc *core.Document, embedFailed int) (string, error) {
	if err := p.tracker.Advance(ctx, doc.ID, core.StatusSummarizingChunks, StageSummarize,
		StagePercent(StageSummarize, 0, 10), nil); err != nil {
		return "", err
	}

	chunkResult, err := p.summarizer.SummarizeChunks(ctx, doc.ID)
	if err != nil {
		return "", fmt.Errorf("summarizing chunks: %w", err)
	}
	sectionResult, err := p.summarizer.SummarizeSections(ctx, doc.ID)
	if err != nil {
		return "", fmt.Errorf("summarizing sections: %w", err)
	}

	if err := p.tracker.Advance(ctx, doc.ID, core.StatusSummarizingDocument, StageSummarize,
		StagePercent(StageSummarize, 9, 10), nil); err != nil {
		return "", err
	}

	docResult, err := p.summarizer.SummarizeDocument(ctx, doc.ID)
	if err != nil {
		return "", fmt.Errorf("finalizing document summary: %w", err)
	}

	if !docResult.Written {
		// Not fatal: the document is recorded as processing_failed with an
		// explanation, and the invocation still reports success.
		stageErr := core.NewStageError(core.ErrCodeNoSummaries,
			"no usable chunk or section summaries",
			"This document had no content that could be summarized.",
			"Check that the document contains readable text.")
		if ferr := p.tracker.Fail(ctx, doc.ID, core.StatusProcessingFailed, stageErr); ferr != nil {
			p.logger.Error("recording empty summarization", "document", doc.ID, "err", ferr)
		}
		return docResult.Message, nil
	}

	degraded := embedFailed > 0 || chunkResult.Failed > 0 || sectionResult.Failed > 0
	final := core.StatusCompleted
	message := "document processed"
	if degraded {
		final = core.StatusCompletedWithErrors
		message = "document processed with errors"
	}
	if err := p.tracker.Advance(ctx, doc.ID, final, StageSummarize,
		StagePercent(StageSummarize, 1, 1), nil); err != nil {
		return "", err
	}
	return message, nil
}

// failStatus picks the terminal status for a failure: content-shaped and
// finalization failures are final, everything else is retryable.
func failStatus(code string) core.DocumentStatus {
	switch code {
	case core.ErrCodeNoChunks, core.ErrCodeNoSummaries,
		core.ErrCodeContentUnusable, core.ErrCodeSummaryFailed:
		return core.StatusProcessingFailed
	}
	return core.StatusError
}

// toStageError converts any stage failure into the structured form recorded
// on the document.
func toStageError(err error) *core.StageError {
	var ee *extract.Error
	if errors.As(err, &ee) {
		return ee.StageError()
	}
	var se *core.StageError
	if errors.As(err, &se) {
		return se
	}
	return core.NewStageError(core.ErrCodeInternal, err.Error(),
		"Something went wrong while processing this document.",
		"Try processing the document again.")
}
