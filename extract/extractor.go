package extract

import (
	"context"
	"fmt"

	"github.com/dbawebdesign/lailms-ingest/core"
)

// Source is the input to an extraction: the document record plus the raw
// bytes of its upload, when the source kind has one. URL-backed kinds (web,
// video) carry no Data.
type Source struct {
	Document *core.Document
	Data     []byte
}

// Result is the output of an extraction: sanitized plain text plus light
// metadata recorded onto the document (detected type, page counts,
// truncation notes).
type Result struct {
	Text     string
	Metadata map[string]string
}

// Extractor converts one kind of raw source into plain text. Implementations
// are stateless and safe for concurrent use.
type Extractor interface {
	// Kind identifies the source kind this extractor handles.
	Kind() core.SourceKind

	// Extract produces the text of the source. The returned text is already
	// sanitized. Errors are *Error values classified for the user.
	Extract(ctx context.Context, src *Source) (*Result, error)
}

// Registry maps source kinds to their extractor.
type Registry struct {
	extractors map[core.SourceKind]Extractor
}

// NewRegistry creates a registry over the given extractors. Later entries
// with a duplicate kind replace earlier ones.
func NewRegistry(extractors ...Extractor) *Registry {
	r := &Registry{extractors: make(map[core.SourceKind]Extractor, len(extractors))}
	for _, e := range extractors {
		r.extractors[e.Kind()] = e
	}
	return r
}

// Register adds or replaces the extractor for its kind.
func (r *Registry) Register(e Extractor) {
	r.extractors[e.Kind()] = e
}

// For returns the extractor for a source kind.
func (r *Registry) For(kind core.SourceKind) (Extractor, error) {
	e, ok := r.extractors[kind]
	if !ok {
		return nil, &Error{
			Code:        core.ErrCodeUnsupportedType,
			Message:     fmt.Sprintf("no extractor registered for source kind %q", kind),
			UserMessage: "This file type is not supported.",
			Actions:     []string{"Upload a PDF, text document, audio file, or link to a web page or video."},
		}
	}
	return e, nil
}

// Extract detects the document's source kind and runs the matching
// extractor.
func (r *Registry) Extract(ctx context.Context, src *Source) (*Result, core.SourceKind, error) {
	kind, err := Detect(src.Document)
	if err != nil {
		return nil, "", err
	}
	e, err := r.For(kind)
	if err != nil {
		return nil, kind, err
	}
	result, err := e.Extract(ctx, src)
	if err != nil {
		return nil, kind, err
	}
	return result, kind, nil
}
