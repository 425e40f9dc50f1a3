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

package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dbawebdesign/lailms-ingest/ai"
	"github.com/dbawebdesign/lailms-ingest/core"
	"github.com/dbawebdesign/lailms-ingest/storage"
)

const (
	defaultChunkBatchSize = 10
	defaultBatchPause     = 200 * time.Millisecond

	chunkSummaryTokens    = 256
	sectionSummaryTokens  = 384
	documentSummaryTokens = 512

	// Sectionless chunk summaries are grouped into pseudo-sections of this
	// many chunks for the document-level rollup.
	pseudoSectionSize = 5
)

// NoContentMessage is reported when document-level finalization finds no
// usable chunk or section summaries.
const NoContentMessage = "no content to summarize"

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithChunkBatchSize sets how many chunks are summarized per batch call.
func WithChunkBatchSize(n int) Option {
	return func(s *Summarizer) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithBatchPause sets the pause between consecutive batch calls.
func WithBatchPause(pause time.Duration) Option {
	return func(s *Summarizer) {
		if pause >= 0 {
			s.batchPause = pause
		}
	}
}

// WithProgress sets a callback invoked after each summarized entity.
func WithProgress(fn func(current, total int)) Option {
	return func(s *Summarizer) {
		s.progress = fn
	}
}

// Result reports what one chunk-level or section-level pass did.
type Result struct {
	Total     int
	Completed int
	Failed    int
}

// DocumentResult reports the outcome of document-level finalization. Written
// is false when there was nothing to summarize; Message then explains why.
type DocumentResult struct {
	Written bool
	Summary string
	Message string
}

// Summarizer produces the three-level summary hierarchy for a document:
// per-chunk, per-section, and one document rollup. Each level re-derives its
// work from persisted chunk status, so a pass can be re-run after a partial
// failure and only touches what is still pending.
type Summarizer struct {
	docs      storage.DocumentRepository
	chunks    storage.ChunkRepository
	summaries storage.SummaryRepository
	generator ai.TextGenerator

	batchSize  int
	batchPause time.Duration
	progress   func(current, total int)
	logger     *slog.Logger
}

// New creates a summarizer over the repositories and text generator.
func New(docs storage.DocumentRepository, chunks storage.ChunkRepository, summaries storage.SummaryRepository, generator ai.TextGenerator, opts ...Option) *Summarizer {
	s := &Summarizer{
		docs:       docs,
		chunks:     chunks,
		summaries:  summaries,
		generator:  generator,
		batchSize:  defaultChunkBatchSize,
		batchPause: defaultBatchPause,
		logger:     slog.Default().With("component", "summarize"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SummarizeChunks writes a short summary onto every chunk of the document
// whose summary is still pending. Chunks are summarized in positional
// batches; a batch whose reply cannot be parsed degrades to one call per
// chunk, and a chunk that still fails is marked errored without blocking its
// siblings.
func (s *Summarizer) SummarizeChunks(ctx context.Context, documentID string) (*Result, error) {
	status := core.SummaryPending
	pending, err := s.chunks.GetChunks(ctx, documentID, storage.ChunkFilter{SummaryStatus: &status})
	if err != nil {
		return nil, fmt.Errorf("loading chunks of document %s: %w", documentID, err)
	}

	result := &Result{Total: len(pending)}
	if len(pending) == 0 {
		return result, nil
	}

	var done int
	for batchIdx := 0; batchIdx*s.batchSize < len(pending); batchIdx++ {
		if batchIdx > 0 && s.batchPause > 0 {
			timer := time.NewTimer(s.batchPause)
			select {
			case <-ctx.Done():
				timer.Stop()
				return result, ctx.Err()
			case <-timer.C:
			}
		}

		batch := pending[batchIdx*s.batchSize : min((batchIdx+1)*s.batchSize, len(pending))]
		if err := s.summarizeBatch(ctx, batch, result); err != nil {
			return result, err
		}

		done += len(batch)
		if s.progress != nil {
			s.progress(done, len(pending))
		}
	}

	s.logger.Info("chunk summarization finished", "document", documentID,
		"total", result.Total, "completed", result.Completed, "failed", result.Failed)
	return result, nil
}

// summarizeBatch runs the three-tier protocol for one batch: a positional
// batch call parsed by marker, a line-oriented parse of the same reply, and
// finally one call per chunk for anything still missing.
func (s *Summarizer) summarizeBatch(ctx context.Context, batch []*core.Chunk, result *Result) error {
	parsed := s.batchSummaries(ctx, batch)

	for i, c := range batch {
		text, ok := parsed[i+1]
		if !ok {
			var err error
			text, err = s.generate(ctx, chunkPrompt(c.Content), chunkSummaryTokens)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn("chunk summary failed", "chunk", c.ID, "index", c.Index, "err", err)
				s.setChunkStatus(ctx, c.ID, core.SummaryError)
				result.Failed++
				continue
			}
		}
		if err := s.setChunkSummary(ctx, c.ID, text); err != nil {
			s.logger.Error("persisting chunk summary", "chunk", c.ID, "err", err)
			result.Failed++
			continue
		}
		result.Completed++
	}
	return nil
}

// batchSummaries attempts the batch call and both parses. A nil or partial
// map sends the remaining chunks down the individual path.
func (s *Summarizer) batchSummaries(ctx context.Context, batch []*core.Chunk) map[int]string {
	if len(batch) < 2 {
		return nil
	}

	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}
	response, err := s.generate(ctx, batchPrompt(texts), chunkSummaryTokens*len(batch))
	if err != nil {
		s.logger.Warn("batch summary call failed, degrading to individual calls",
			"size", len(batch), "err", err)
		return nil
	}

	parsed := parseBatchResponse(response, len(batch))
	if len(parsed) == 0 {
		parsed = parseByLines(response, len(batch))
	}
	if len(parsed) < len(batch) {
		s.logger.Warn("batch summary reply incomplete",
			"size", len(batch), "parsed", len(parsed))
	}
	return parsed
}

// SummarizeSections writes one summary onto every chunk of each section that
// is ready: all chunks of the section summarized, at least one still waiting
// for its section summary. A failed section flips all its chunks to errored
// as a set; other sections are unaffected.
func (s *Summarizer) SummarizeSections(ctx context.Context, documentID string) (*Result, error) {
	all, err := s.chunks.GetChunks(ctx, documentID, storage.ChunkFilter{})
	if err != nil {
		return nil, fmt.Errorf("loading chunks of document %s: %w", documentID, err)
	}

	var order []string
	groups := make(map[string][]*core.Chunk)
	for _, c := range all {
		if c.SectionID == "" {
			continue
		}
		if _, seen := groups[c.SectionID]; !seen {
			order = append(order, c.SectionID)
		}
		groups[c.SectionID] = append(groups[c.SectionID], c)
	}

	result := &Result{}
	for _, sectionID := range order {
		members := groups[sectionID]
		if !sectionReady(members) {
			continue
		}
		result.Total++

		var b strings.Builder
		ids := make([]string, len(members))
		for i, c := range members {
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(c.Content)
			ids[i] = c.ID
		}

		summary, err := s.generate(ctx, sectionPrompt(sectionID, b.String()), sectionSummaryTokens)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			s.logger.Warn("section summary failed", "document", documentID,
				"section", sectionID, "err", err)
			errored := core.SummaryError
			if uerr := s.chunks.UpdateChunks(ctx, ids, storage.ChunkPatch{SectionSummaryStatus: &errored}); uerr != nil {
				s.logger.Error("marking section errored", "section", sectionID, "err", uerr)
			}
			result.Failed++
			continue
		}

		completed := core.SummaryCompleted
		if err := s.chunks.UpdateChunks(ctx, ids, storage.ChunkPatch{
			SectionSummaryText:   &summary,
			SectionSummaryStatus: &completed,
		}); err != nil {
			s.logger.Error("persisting section summary", "section", sectionID, "err", err)
			result.Failed++
			continue
		}
		result.Completed++
		if s.progress != nil {
			s.progress(result.Completed+result.Failed, len(order))
		}
	}

	s.logger.Info("section summarization finished", "document", documentID,
		"sections", result.Total, "completed", result.Completed, "failed", result.Failed)
	return result, nil
}

// sectionReady gates section summarization: every sibling chunk must be
// summarized, and at least one must still be waiting for the section summary.
func sectionReady(members []*core.Chunk) bool {
	var pending bool
	for _, c := range members {
		if c.SummaryStatus != core.SummaryCompleted {
			return false
		}
		if c.SectionSummaryStatus == core.SummaryPending {
			pending = true
		}
	}
	return pending
}

// SummarizeDocument produces the single document rollup from one summary per
// distinct section, with chunk summaries grouped into pseudo-sections for
// chunks that have no section. Finding nothing usable is not an error: the
// document is marked processing_failed with an explanatory message and no
// summary row is written.
func (s *Summarizer) SummarizeDocument(ctx context.Context, documentID string) (*DocumentResult, error) {
	all, err := s.chunks.GetChunks(ctx, documentID, storage.ChunkFilter{})
	if err != nil {
		return nil, fmt.Errorf("loading chunks of document %s: %w", documentID, err)
	}

	parts := collectParts(all)
	if len(parts) == 0 {
		if err := s.failDocument(ctx, documentID, NoContentMessage); err != nil {
			return nil, err
		}
		s.logger.Warn("document has no usable summaries", "document", documentID)
		return &DocumentResult{Message: NoContentMessage}, nil
	}

	summary, err := s.generate(ctx, documentPrompt(parts), documentSummaryTokens)
	if err != nil {
		if ferr := s.failDocument(ctx, documentID, err.Error()); ferr != nil {
			s.logger.Error("recording finalization failure", "document", documentID, "err", ferr)
		}
		return nil, core.NewStageError(core.ErrCodeSummaryFailed,
			fmt.Sprintf("generating document summary: %v", err),
			"The document summary could not be generated.",
			"Run summarization for this document again.")
	}

	if err := s.summaries.UpsertSummary(ctx, &core.DocumentSummary{
		DocumentID: documentID,
		Level:      core.SummaryLevelDocument,
		Summary:    summary,
		Status:     core.SummaryCompleted,
		Model:      s.generator.Model(),
	}); err != nil {
		if ferr := s.failDocument(ctx, documentID, err.Error()); ferr != nil {
			s.logger.Error("recording finalization failure", "document", documentID, "err", ferr)
		}
		return nil, core.NewStageError(core.ErrCodeSummaryFailed,
			fmt.Sprintf("storing document summary: %v", err),
			"The document summary could not be saved.",
			"Run summarization for this document again.")
	}

	s.logger.Info("document summary written", "document", documentID, "parts", len(parts))
	return &DocumentResult{Written: true, Summary: summary}, nil
}

// collectParts assembles the document-level input: the section summary of
// each distinct section, in chunk order, plus pseudo-sections built from the
// chunk summaries of sectionless chunks.
func collectParts(chunks []*core.Chunk) []string {
	var parts []string
	seen := make(map[string]bool)
	var orphaned []string

	for _, c := range chunks {
		if c.SectionID != "" {
			if c.SectionSummaryStatus == core.SummaryCompleted && c.SectionSummaryText != "" && !seen[c.SectionID] {
				seen[c.SectionID] = true
				parts = append(parts, fmt.Sprintf("%s: %s", c.SectionID, c.SectionSummaryText))
			}
			continue
		}
		if c.SummaryStatus == core.SummaryCompleted && c.SummaryText != "" {
			orphaned = append(orphaned, c.SummaryText)
		}
	}

	for start := 0; start < len(orphaned); start += pseudoSectionSize {
		group := orphaned[start:min(start+pseudoSectionSize, len(orphaned))]
		parts = append(parts, strings.Join(group, " "))
	}
	return parts
}

func (s *Summarizer) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	messages := []ai.Message{
		ai.SystemMessage(batchSystemPrompt),
		ai.UserMessage(prompt),
	}
	response, err := s.generator.Generate(ctx, messages, maxTokens)
	if err != nil {
		return "", err
	}
	response = strings.TrimSpace(response)
	if response == "" {
		return "", fmt.Errorf("model returned an empty summary")
	}
	return response, nil
}

func (s *Summarizer) setChunkSummary(ctx context.Context, id, text string) error {
	completed := core.SummaryCompleted
	return s.chunks.UpdateChunks(ctx, []string{id}, storage.ChunkPatch{
		SummaryText:   &text,
		SummaryStatus: &completed,
	})
}

func (s *Summarizer) setChunkStatus(ctx context.Context, id string, status core.SummaryStatus) {
	if err := s.chunks.UpdateChunks(ctx, []string{id}, storage.ChunkPatch{SummaryStatus: &status}); err != nil {
		s.logger.Error("updating chunk summary status", "chunk", id, "err", err)
	}
}

func (s *Summarizer) failDocument(ctx context.Context, documentID, reason string) error {
	failed := core.StatusProcessingFailed
	_, err := s.docs.UpdateDocument(ctx, documentID, storage.DocumentPatch{
		Status:   &failed,
		Metadata: map[string]string{"summary_error": reason},
	})
	return err
}
