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


// Package mock provides deterministic test doubles for the ai service
// interfaces. Behavior is injected via function fields; when a field is nil
// the mock falls back to a deterministic default so tests stay reproducible
// without any external service.
package mock

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/dbawebdesign/lailms-ingest/ai"
)

// Generator is a test double for ai.TextGenerator.
type Generator struct {
	// GenerateFunc is called by Generate if set.
	GenerateFunc func(ctx context.Context, messages []ai.Message, maxTokens int) (string, error)

	mu        sync.Mutex
	callCount int
}

// NewGenerator creates a mock generator with default deterministic behavior.
// Returns the concrete type to allow test assertions.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate returns a short deterministic summary of the last user message
// unless GenerateFunc is set.
func (g *Generator) Generate(ctx context.Context, messages []ai.Message, maxTokens int) (string, error) {
	g.mu.Lock()
	g.callCount++
	g.mu.Unlock()

	if g.GenerateFunc != nil {
		return g.GenerateFunc(ctx, messages, maxTokens)
	}

	var last string
	for _, msg := range messages {
		if msg.Role == ai.RoleUser {
			last = msg.Content
		}
	}
	if len(last) > 40 {
		last = last[:40]
	}
	return "Summary of: " + last, nil
}

// Model returns a fixed identifier.
func (g *Generator) Model() string {
	return "mock-generator"
}

// CallCount returns the number of Generate calls made.
func (g *Generator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.callCount
}

// Embedder is a test double for ai.Embedder.
type Embedder struct {
	// EmbedBatchFunc is called by EmbedBatch if set.
	EmbedBatchFunc func(ctx context.Context, texts []string) ([]ai.IndexedEmbedding, error)

	// Dimension of the deterministic default vectors.
	Dimension int

	mu        sync.Mutex
	callCount int
}

// NewEmbedder creates a mock embedder with default deterministic behavior.
// Returns the concrete type to allow test assertions.
func NewEmbedder() *Embedder {
	return &Embedder{Dimension: 384}
}

// EmbedBatch generates deterministic vectors from text hashes unless
// EmbedBatchFunc is set.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]ai.IndexedEmbedding, error) {
	e.mu.Lock()
	e.callCount++
	e.mu.Unlock()

	if e.EmbedBatchFunc != nil {
		return e.EmbedBatchFunc(ctx, texts)
	}

	dim := e.Dimension
	if dim <= 0 {
		dim = 384
	}
	results := make([]ai.IndexedEmbedding, len(texts))
	for i, text := range texts {
		results[i] = ai.IndexedEmbedding{Index: i, Vector: DeterministicVector(text, dim)}
	}
	return results, nil
}

// CallCount returns the number of EmbedBatch calls made.
func (e *Embedder) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callCount
}

// Transcriber is a test double for ai.Transcriber.
type Transcriber struct {
	// TranscribeFunc is called by Transcribe if set.
	TranscribeFunc func(ctx context.Context, audio []byte, mediaType string) (string, error)
}

// NewTranscriber creates a mock transcriber. Returns the concrete type to
// allow behavior injection.
func NewTranscriber() *Transcriber {
	return &Transcriber{}
}

// Transcribe returns a fixed transcript unless TranscribeFunc is set.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, mediaType string) (string, error) {
	if t.TranscribeFunc != nil {
		return t.TranscribeFunc(ctx, audio, mediaType)
	}
	return "mock transcript", nil
}

// TranscriptFetcher is a test double for ai.TranscriptFetcher.
type TranscriptFetcher struct {
	// FetchFunc is called by Fetch if set.
	FetchFunc func(ctx context.Context, videoURL, language string) ([]ai.CaptionSegment, error)
}

// NewTranscriptFetcher creates a mock caption fetcher. Returns the concrete
// type to allow behavior injection.
func NewTranscriptFetcher() *TranscriptFetcher {
	return &TranscriptFetcher{}
}

// Fetch returns two fixed segments unless FetchFunc is set.
func (f *TranscriptFetcher) Fetch(ctx context.Context, videoURL, language string) ([]ai.CaptionSegment, error) {
	if f.FetchFunc != nil {
		return f.FetchFunc(ctx, videoURL, language)
	}
	return []ai.CaptionSegment{
		{Start: 0, Text: "first caption"},
		{Start: 30 * time.Second, Text: "second caption"},
	}, nil
}

// Provider aggregates the mocks behind the ai.Provider interface.
type Provider struct {
	generator   *Generator
	embedder    *Embedder
	transcriber *Transcriber
	transcripts *TranscriptFetcher
}

var _ ai.Provider = (*Provider)(nil)

// NewProvider creates a provider over fresh mocks.
func NewProvider() *Provider {
	return &Provider{
		generator:   NewGenerator(),
		embedder:    NewEmbedder(),
		transcriber: NewTranscriber(),
		transcripts: NewTranscriptFetcher(),
	}
}

// Generator returns the mock generator (interface form).
func (p *Provider) Generator() ai.TextGenerator { return p.generator }

// Embedder returns the mock embedder (interface form).
func (p *Provider) Embedder() ai.Embedder { return p.embedder }

// Transcriber returns the mock transcriber (interface form).
func (p *Provider) Transcriber() ai.Transcriber { return p.transcriber }

// Transcripts returns the mock caption fetcher (interface form).
func (p *Provider) Transcripts() ai.TranscriptFetcher { return p.transcripts }

// Close is a no-op.
func (p *Provider) Close() error { return nil }

// MockGenerator exposes the concrete generator for assertions.
func (p *Provider) MockGenerator() *Generator { return p.generator }

// MockEmbedder exposes the concrete embedder for assertions.
func (p *Provider) MockEmbedder() *Embedder { return p.embedder }

// MockTranscriber exposes the concrete transcriber for behavior injection.
func (p *Provider) MockTranscriber() *Transcriber { return p.transcriber }

// MockTranscripts exposes the concrete caption fetcher for behavior injection.
func (p *Provider) MockTranscripts() *TranscriptFetcher { return p.transcripts }

// DeterministicVector creates a deterministic embedding vector from text.
// It uses FNV hashing so the same text always produces the same vector.
func DeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000) / 1000.0
	}
	return vector
}
