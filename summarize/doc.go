// Package summarize builds the three-level summary hierarchy of a document.
//
// Chunk summaries come first, requested in positional batches with a marker
// protocol and two fallbacks (line-oriented parse, then individual calls) so
// a misbehaving model can never silently drop a chunk. Section summaries are
// gated on every sibling chunk being summarized and are written onto all
// siblings as one atomic set. The document rollup synthesizes one input per
// section, grouping sectionless chunk summaries into pseudo-sections, and is
// upserted as the single document-level summary row.
//
// Every pass re-derives its work from persisted status, so re-running a pass
// after a partial failure only touches what is still pending.
package summarize
