package embed

import "errors"

var (
	// ErrInvalidMaxAttempts indicates a non-positive retry attempt count.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrEmbeddingCountMismatch indicates the embedding service returned a
	// different number of vectors than texts sent.
	ErrEmbeddingCountMismatch = errors.New("embedding count mismatch")

	// ErrEmbeddingIndexOutOfRange indicates the embedding service returned a
	// positional index outside the request batch.
	ErrEmbeddingIndexOutOfRange = errors.New("embedding index out of range")
)
