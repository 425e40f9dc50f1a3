// Package extract converts raw sources into plain text.
//
// One Extractor implementation exists per source kind (PDF, web page, video,
// audio, text), selected by Detect from the document's source URL and
// declared media type and dispatched through a Registry. Extractors return
// sanitized text plus light metadata; failures are classified *Error values
// carrying a user-facing explanation and suggested next steps.
//
// Structural markers survive extraction so the chunker can split along them:
// PDF pages are prefixed with [PAGE n] and caption segments with
// [TIME hh:mm:ss].
package extract
