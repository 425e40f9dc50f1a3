package pipeline

import "errors"

var (
	ErrDocumentRepositoryRequired = errors.New("document repository is required")
	ErrChunkRepositoryRequired    = errors.New("chunk repository is required")
	ErrSummaryRepositoryRequired  = errors.New("summary repository is required")
	ErrBlobStoreRequired          = errors.New("blob store is required")
	ErrRegistryRequired           = errors.New("extractor registry is required")
	ErrProviderRequired           = errors.New("ai provider is required")
)
