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

// Package ingest wires the document ingestion pipeline into one service:
// SQLite-backed document, chunk, and summary stores, a local or S3 blob
// store, the extractor registry, and an OpenAI-compatible AI provider.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"time"

	"github.com/dbawebdesign/lailms-ingest/ai"
	"github.com/dbawebdesign/lailms-ingest/ai/openai"
	"github.com/dbawebdesign/lailms-ingest/ai/youtube"
	"github.com/dbawebdesign/lailms-ingest/core"
	"github.com/dbawebdesign/lailms-ingest/extract"
	"github.com/dbawebdesign/lailms-ingest/pipeline"
	"github.com/dbawebdesign/lailms-ingest/storage"
	"github.com/dbawebdesign/lailms-ingest/storage/blob"
	"github.com/dbawebdesign/lailms-ingest/storage/sqlite"
)

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	aiConfig     *ai.Config
	provider     ai.Provider
	s3           *blob.S3Options
	pipelineOpts []pipeline.Option
}

// WithAIConfig sets the configuration for the OpenAI-compatible services.
func WithAIConfig(cfg *ai.Config) ServiceOption {
	return func(o *serviceOptions) {
		if cfg != nil {
			o.aiConfig = cfg
		}
	}
}

// WithProvider injects a pre-built AI provider, replacing the default
// OpenAI-compatible one. Used by tests and embedders with custom transports.
func WithProvider(provider ai.Provider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithS3 stores blobs in S3 instead of the local store.
func WithS3(opts blob.S3Options) ServiceOption {
	return func(o *serviceOptions) {
		o.s3 = &opts
	}
}

// WithPipelineOptions forwards options to the processing pipeline.
func WithPipelineOptions(opts ...pipeline.Option) ServiceOption {
	return func(o *serviceOptions) {
		o.pipelineOpts = append(o.pipelineOpts, opts...)
	}
}

// Service is the top-level handle: document registration, processing, and
// status polling over one set of stores.
type Service struct {
	store     *sqlite.Store
	docs      storage.DocumentRepository
	chunks    storage.ChunkRepository
	summaries storage.SummaryRepository
	blobs     storage.BlobStore
	blobStore *blob.LocalStore // nil when blobs are in S3
	provider  ai.Provider
	pipeline  *pipeline.Pipeline
	logger    *slog.Logger
}

// NewService opens the stores under dataDir and wires the pipeline. An empty
// blobDir keeps blobs in memory, which suits tests and one-shot CLI runs.
func NewService(dataDir, blobDir string, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return nil, err
	}
	docs := sqlite.NewDocumentRepository(store)
	chunks := sqlite.NewChunkRepository(store)
	summaries := sqlite.NewSummaryRepository(store)

	var blobs storage.BlobStore
	var localBlobs *blob.LocalStore
	if options.s3 != nil {
		blobs, err = blob.NewS3Store(*options.s3)
		if err != nil {
			store.Close()
			return nil, err
		}
	} else {
		localBlobs, err = blob.OpenLocalStore(blobDir, blobDir == "")
		if err != nil {
			store.Close()
			return nil, err
		}
		blobs = localBlobs
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			if localBlobs != nil {
				localBlobs.Close()
			}
			store.Close()
			return nil, err
		}
	}

	registry := extract.NewRegistry(
		extract.NewTextExtractor(),
		extract.NewPDFExtractor(),
		extract.NewWebExtractor(),
		extract.NewVideoExtractor(youtube.NewClient(nil)),
		extract.NewAudioExtractor(provider.Transcriber()),
	)

	p, err := pipeline.New(docs, chunks, summaries, blobs, registry, provider, options.pipelineOpts...)
	if err != nil {
		provider.Close()
		if localBlobs != nil {
			localBlobs.Close()
		}
		store.Close()
		return nil, err
	}

	return &Service{
		store:     store,
		docs:      docs,
		chunks:    chunks,
		summaries: summaries,
		blobs:     blobs,
		blobStore: localBlobs,
		provider:  provider,
		pipeline:  p,
		logger:    slog.Default().With("component", "ingest"),
	}, nil
}

// Close releases the pipeline pool, the AI provider, and the stores.
func (s *Service) Close() error {
	s.pipeline.Release()
	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}
	if s.blobStore != nil {
		if err := s.blobStore.Close(); err != nil {
			s.logger.Error("error closing blob store", "err", err)
		}
	}
	return s.store.Close()
}

// RegisterFile uploads file bytes and creates a queued document for them.
func (s *Service) RegisterFile(ctx context.Context, orgID, filename string, data []byte, mediaType string) (*core.Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("registering %s: empty file", filename)
	}

	doc := &core.Document{
		ID:        core.NewID(),
		OrgID:     orgID,
		MediaType: mediaType,
		Status:    core.StatusQueued,
	}
	doc.StoragePath = path.Join("uploads", doc.ID, filename)

	if err := s.blobs.Upload(ctx, storage.UploadBucket(orgID), doc.StoragePath, data, mediaType); err != nil {
		return nil, fmt.Errorf("uploading %s: %w", filename, err)
	}
	if err := s.docs.InsertDocument(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("file registered", "document", doc.ID, "path", doc.StoragePath, "bytes", len(data))
	return doc, nil
}

// RegisterURL creates a queued document for a web page or hosted video.
func (s *Service) RegisterURL(ctx context.Context, orgID, rawURL string) (*core.Document, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("registering url: empty url")
	}

	doc := &core.Document{
		ID:        core.NewID(),
		OrgID:     orgID,
		SourceURL: rawURL,
		Status:    core.StatusQueued,
	}
	if err := s.docs.InsertDocument(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("url registered", "document", doc.ID, "url", rawURL)
	return doc, nil
}

// Process runs the whole pipeline synchronously for one document.
func (s *Service) Process(ctx context.Context, documentID string) pipeline.Result {
	return s.pipeline.ProcessDocument(ctx, documentID)
}

// Submit dispatches processing onto the pipeline's worker pool.
func (s *Service) Submit(documentID string) error {
	return s.pipeline.Submit(documentID)
}

// Pipeline exposes the underlying pipeline for per-stage runs.
func (s *Service) Pipeline() *pipeline.Pipeline {
	return s.pipeline
}

// DocumentStatus is the polling view of one document: where it is, how far
// along, and what went wrong last.
type DocumentStatus struct {
	DocumentID string
	Status     core.DocumentStatus
	Stage      string
	Percent    int
	LastError  *core.StageError
	UpdatedAt  time.Time
}

// Status reports the current stage, progress percentage, and last recorded
// error of a document.
func (s *Service) Status(ctx context.Context, documentID string) (*DocumentStatus, error) {
	doc, err := s.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	status := &DocumentStatus{
		DocumentID: doc.ID,
		Status:     doc.Status,
		Stage:      doc.Metadata["processing_stage"],
		UpdatedAt:  doc.UpdatedAt,
	}
	if pct, err := strconv.Atoi(doc.Metadata["processing_progress"]); err == nil {
		status.Percent = pct
	}
	if raw := doc.Metadata["last_error"]; raw != "" {
		status.LastError = core.StageErrorFromJSON(raw)
	}
	return status, nil
}

// Summary returns the stored document-level summary.
func (s *Service) Summary(ctx context.Context, documentID string) (*core.DocumentSummary, error) {
	return s.summaries.GetSummary(ctx, documentID, core.SummaryLevelDocument)
}

// Search ranks a document's chunks against a free-text query by cosine
// similarity over the stored embeddings.
func (s *Service) Search(ctx context.Context, documentID, query string, limit int) ([]*storage.ChunkMatch, error) {
	embeddings, err := s.provider.Embedder().EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("embedding query: expected 1 vector, got %d", len(embeddings))
	}
	vector := storage.NormalizeVector(embeddings[0].Vector)
	return s.chunks.FindSimilar(ctx, documentID, vector, 0, limit)
}
