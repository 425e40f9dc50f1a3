// Package embed turns chunk text into fixed-dimension vectors.
//
// Chunks are batched under both a count and a token ceiling, single
// over-budget chunks are truncated to a safe prefix and flagged, and batch
// responses are resorted by positional index before being zipped back onto
// the chunks. Transient batch failures retry with exponential backoff and
// jitter; an exhausted batch persists null embeddings and the run continues,
// so one bad batch never blocks a document.
package embed
