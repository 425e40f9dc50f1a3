package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dbawebdesign/lailms-ingest/core"
)

const (
	// minUsableLength is the minimum sanitized length accepted from a
	// best-effort binary decode.
	minUsableLength = 50

	// minLetterRatio is the minimum share of letters in the decoded text.
	// Binary structure decoded as text sits far below this.
	minLetterRatio = 0.30
)

// TextExtractor decodes plain-text and word-processor uploads. Valid UTF-8
// passes through; anything else takes a best-effort byte decode with a
// quality gate so binary garbage is rejected instead of stored.
type TextExtractor struct{}

var _ Extractor = (*TextExtractor)(nil)

// NewTextExtractor creates the text extractor.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) Kind() core.SourceKind {
	return core.SourceKindText
}

func (e *TextExtractor) Extract(ctx context.Context, src *Source) (*Result, error) {
	if len(src.Data) == 0 {
		return nil, missingSourceError("uploaded content")
	}

	var text string
	wasUTF8 := utf8.Valid(src.Data)
	if wasUTF8 {
		text = string(src.Data)
	} else {
		// Latin-1 decode never fails; each byte maps to one rune. The
		// quality gate below decides whether the result is prose.
		runes := make([]rune, len(src.Data))
		for i, b := range src.Data {
			runes[i] = rune(b)
		}
		text = string(runes)
	}

	text = Sanitize(text)

	if !wasUTF8 || isBinaryMediaType(src.Document) {
		if err := qualityGate(text); err != nil {
			return nil, err
		}
	}
	if text == "" {
		return nil, unusableContentError("decoded document contains no text")
	}

	return &Result{
		Text: text,
		Metadata: map[string]string{
			"extracted_bytes": fmt.Sprintf("%d", len(text)),
		},
	}, nil
}

func isBinaryMediaType(doc *core.Document) bool {
	if doc == nil {
		return false
	}
	mediaType := strings.ToLower(doc.MediaType)
	return strings.HasPrefix(mediaType, "application/") &&
		mediaType != "application/json" && mediaType != "application/xml"
}

// qualityGate rejects decoded text that does not look like prose.
func qualityGate(text string) error {
	if len(text) < minUsableLength {
		return unusableContentError(fmt.Sprintf("decoded text too short (%d chars)", len(text)))
	}

	var letters, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if total == 0 || float64(letters)/float64(total) < minLetterRatio {
		return unusableContentError(fmt.Sprintf("decoded text is %d%% letters, likely binary structure",
			int(100*float64(letters)/float64(max(total, 1)))))
	}
	return nil
}
