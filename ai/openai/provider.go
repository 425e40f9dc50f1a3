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


package openai

import (
	"github.com/dbawebdesign/lailms-ingest/ai"
	"github.com/dbawebdesign/lailms-ingest/ai/youtube"
)

// Provider aggregates the OpenAI-compatible AI services plus the caption
// fetch client behind the ai.Provider interface.
type Provider struct {
	generator   *Generator
	embedder    *Embedder
	transcriber *Transcriber
	transcripts ai.TranscriptFetcher
}

var _ ai.Provider = (*Provider)(nil)

// NewProvider creates all services from one configuration. Services share
// the configuration but hold independent clients, so closing the provider is
// the only lifecycle concern.
//
// Returns ai.Provider interface to enforce abstraction.
func NewProvider(config *ai.Config) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	generator, err := newGenerator(config)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	transcriber, err := newTranscriber(config)
	if err != nil {
		return nil, err
	}

	return &Provider{
		generator:   generator,
		embedder:    embedder,
		transcriber: transcriber,
		transcripts: youtube.NewClient(nil),
	}, nil
}

// Generator returns the text-generation service.
func (p *Provider) Generator() ai.TextGenerator {
	return p.generator
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Transcriber returns the speech-to-text service.
func (p *Provider) Transcriber() ai.Transcriber {
	return p.transcriber
}

// Transcripts returns the video caption-track service.
func (p *Provider) Transcripts() ai.TranscriptFetcher {
	return p.transcripts
}

// Close releases resources held by the provider. The underlying HTTP clients
// hold no persistent connections that require explicit shutdown.
func (p *Provider) Close() error {
	return nil
}
