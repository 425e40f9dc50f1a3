// Package chunk splits extracted text into bounded, overlapping windows.
//
// The splitter is marker-driven: [PAGE n] markers from PDF extraction
// trigger page-aware splitting (section "Page n"), [TIME hh:mm:ss] markers
// from video transcripts trigger timestamp-aware splitting (section
// "Time hh:mm:ss"), and everything else is windowed over the flat text with
// "Part n" fallback sections. Window cuts prefer paragraph, then sentence,
// then word boundaries.
//
// Splitting is deterministic aside from generated chunk ids: indices,
// sections, and contents are a pure function of the input text and the
// chunker configuration.
package chunk
