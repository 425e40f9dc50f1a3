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


package ai

import (
	"errors"
	"strings"
)

// Config holds configuration for AI service providers. Every key a component
// needs is enumerated here and passed in at construction; components never
// read the process environment themselves.
type Config struct {
	// LLMHost is the base URL for the text-generation service API.
	// Example: "http://localhost:11434/v1" for a local OpenAI-compatible server
	LLMHost string

	// EmbeddingHost is the base URL for the embedding service API.
	EmbeddingHost string

	// SpeechHost is the base URL for the speech-to-text service API.
	SpeechHost string

	// LLMModel is the model identifier used for summarization.
	// Example: "qwen2.5:3b", "gpt-4o-mini"
	LLMModel string

	// EmbeddingModel is the model identifier used for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// SpeechModel is the model identifier used for audio transcription.
	// Example: "whisper-1"
	SpeechModel string

	// APIKey authenticates against the services. "none" works for local
	// OpenAI-compatible servers that don't require authentication.
	APIKey string
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithHost sets the LLM, embedding, and speech hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.LLMHost = host
		c.EmbeddingHost = host
		c.SpeechHost = host
	}
}

// WithLLMHost sets the text-generation service host URL.
func WithLLMHost(host string) ConfigOption {
	return func(c *Config) {
		c.LLMHost = host
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithSpeechHost sets the speech-to-text service host URL.
func WithSpeechHost(host string) ConfigOption {
	return func(c *Config) {
		c.SpeechHost = host
	}
}

// WithLLMModel sets the summarization model identifier.
func WithLLMModel(model string) ConfigOption {
	return func(c *Config) {
		c.LLMModel = model
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithSpeechModel sets the transcription model identifier.
func WithSpeechModel(model string) ConfigOption {
	return func(c *Config) {
		c.SpeechModel = model
	}
}

// WithAPIKey sets the service credential.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// DefaultConfig returns a Config with sensible defaults for local
// OpenAI-compatible services.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		LLMHost:        defaultHost,
		EmbeddingHost:  defaultHost,
		SpeechHost:     defaultHost,
		LLMModel:       "qwen2.5:3b",
		EmbeddingModel: "embeddinggemma",
		SpeechModel:    "whisper-1",
		APIKey:         "none",
	}
}

// NewConfig creates a Config with the default values and applies the
// provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("text-embedding-3-small"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form. It adds the
// /v1 suffix to hosts if missing, which is required by most OpenAI-compatible
// APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.LLMHost = normalizeHost(c.LLMHost)
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.SpeechHost = normalizeHost(c.SpeechHost)
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete. It
// normalizes the configuration first.
func (c *Config) Validate() error {
	c.Normalize()

	if c.LLMHost == "" {
		return errors.New("ai config: LLMHost is required")
	}
	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.SpeechHost == "" {
		return errors.New("ai config: SpeechHost is required")
	}
	if c.LLMModel == "" {
		return errors.New("ai config: LLMModel is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.SpeechModel == "" {
		return errors.New("ai config: SpeechModel is required")
	}
	return nil
}
