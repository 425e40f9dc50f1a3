// Package sqlite provides SQLite-backed implementations of the storage
// repositories.
//
// A single Store owns the database connection; repository wrappers returned
// by NewDocumentRepository, NewChunkRepository, and NewSummaryRepository
// share it. The database runs in WAL mode so pipeline workers can read while
// a stage writes.
//
// Embedding vectors are stored as MUS-encoded blobs in the chunks table and
// similarity search is a full scan over one document's embedded chunks,
// which stays cheap because documents top out at a few thousand chunks.
package sqlite
