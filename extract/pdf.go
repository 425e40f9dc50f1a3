package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/dbawebdesign/lailms-ingest/core"
)

// PageMarker prefixes each page's text in the extracted output. The chunker
// recognizes it for page-aware splitting.
const PageMarker = "[PAGE %d]"

const (
	defaultSampleThreshold = 250
	defaultMaxSampledPages = 200
	defaultWallClockBudget = 90 * time.Second
	defaultByteBudget      = 2 << 20

	sampleHeadPages   = 25
	sampleTailPages   = 15
	sampleMiddlePages = 20
)

// PDFOption configures the PDF extractor.
type PDFOption func(*PDFExtractor)

// WithSampleThreshold sets the page count above which sampling kicks in.
func WithSampleThreshold(pages int) PDFOption {
	return func(e *PDFExtractor) {
		if pages > 0 {
			e.sampleThreshold = pages
		}
	}
}

// WithMaxSampledPages caps how many pages a sampled extraction processes.
func WithMaxSampledPages(pages int) PDFOption {
	return func(e *PDFExtractor) {
		if pages > 0 {
			e.maxSampledPages = pages
		}
	}
}

// WithPDFBudgets sets the wall-clock and accumulated-text byte ceilings
// checked inside the page loop.
func WithPDFBudgets(wallClock time.Duration, maxBytes int) PDFOption {
	return func(e *PDFExtractor) {
		if wallClock > 0 {
			e.wallClockBudget = wallClock
		}
		if maxBytes > 0 {
			e.byteBudget = maxBytes
		}
	}
}

// WithPDFProgress sets a callback invoked after each processed page.
func WithPDFProgress(fn func(current, total int)) PDFOption {
	return func(e *PDFExtractor) {
		e.progress = fn
	}
}

// PDFExtractor extracts text page by page. Very large documents are sampled
// deterministically instead of read in full, and both a wall-clock and a
// byte budget bound the page loop; on breach extraction stops early and
// keeps the partial text.
type PDFExtractor struct {
	sampleThreshold int
	maxSampledPages int
	wallClockBudget time.Duration
	byteBudget      int
	progress        func(current, total int)
	logger          *slog.Logger
}

var _ Extractor = (*PDFExtractor)(nil)

// NewPDFExtractor creates a PDF extractor with default budgets.
func NewPDFExtractor(opts ...PDFOption) *PDFExtractor {
	e := &PDFExtractor{
		sampleThreshold: defaultSampleThreshold,
		maxSampledPages: defaultMaxSampledPages,
		wallClockBudget: defaultWallClockBudget,
		byteBudget:      defaultByteBudget,
		logger:          slog.Default().With("component", "extract-pdf"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *PDFExtractor) Kind() core.SourceKind {
	return core.SourceKindPDF
}

func (e *PDFExtractor) Extract(ctx context.Context, src *Source) (*Result, error) {
	if len(src.Data) == 0 {
		return nil, missingSourceError("uploaded content")
	}

	reader, err := pdf.NewReader(bytes.NewReader(src.Data), int64(len(src.Data)))
	if err != nil {
		return nil, unusableContentError(fmt.Sprintf("parsing pdf: %v", err))
	}

	totalPages := reader.NumPage()
	if totalPages == 0 {
		return nil, unusableContentError("pdf has no pages")
	}

	pages := e.selectPages(src.Document.ID, totalPages)
	sampled := len(pages) < totalPages

	metadata := map[string]string{
		"pdf_pages": fmt.Sprintf("%d", totalPages),
	}
	if sampled {
		metadata["pdf_sampled_pages"] = fmt.Sprintf("%d", len(pages))
	}

	deadline := time.Now().Add(e.wallClockBudget)
	var b strings.Builder
	var processed, empty int

	for i, pageNum := range pages {
		if err := ctx.Err(); err != nil {
			break
		}
		// Budget breaches keep what was extracted so far.
		if time.Now().After(deadline) {
			metadata["pdf_truncated"] = "wall_clock_budget"
			e.logger.Warn("pdf extraction hit wall-clock budget",
				"document", src.Document.ID, "processed", processed, "of", len(pages))
			break
		}
		if b.Len() > e.byteBudget {
			metadata["pdf_truncated"] = "byte_budget"
			e.logger.Warn("pdf extraction hit byte budget",
				"document", src.Document.ID, "processed", processed, "of", len(pages))
			break
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			empty++
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page is not fatal; the rest of the
			// document still counts.
			empty++
			continue
		}
		text = Sanitize(text)
		if text == "" {
			empty++
			continue
		}

		fmt.Fprintf(&b, PageMarker+"\n%s\n\n", pageNum, text)
		processed++
		if e.progress != nil {
			e.progress(i+1, len(pages))
		}
	}

	if processed == 0 {
		if empty == len(pages) {
			return nil, unusableContentError("no extractable text in any page, pdf may be scanned images")
		}
		return nil, unusableContentError("no extractable text in pdf")
	}

	metadata["pdf_extracted_pages"] = fmt.Sprintf("%d", processed)
	return &Result{Text: strings.TrimSpace(b.String()), Metadata: metadata}, nil
}

// selectPages returns the 1-based page numbers to extract, in ascending
// order. Documents at or under the sampling threshold are read in full.
// Above it, a deterministic sample weighted toward the beginning, middle,
// and end is chosen, seeded by the document id so re-runs extract the same
// pages.
func (e *PDFExtractor) selectPages(documentID string, totalPages int) []int {
	if totalPages <= e.sampleThreshold {
		pages := make([]int, totalPages)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages
	}

	picked := make(map[int]struct{})
	add := func(page int) {
		if page >= 1 && page <= totalPages && len(picked) < e.maxSampledPages {
			picked[page] = struct{}{}
		}
	}

	for i := 1; i <= sampleHeadPages; i++ {
		add(i)
	}
	for i := totalPages - sampleTailPages + 1; i <= totalPages; i++ {
		add(i)
	}
	mid := totalPages / 2
	for i := mid - sampleMiddlePages/2; i < mid+sampleMiddlePages/2; i++ {
		add(i)
	}

	rng := rand.New(rand.NewSource(int64(core.IDFromContent(documentID))))
	for len(picked) < e.maxSampledPages && len(picked) < totalPages {
		add(rng.Intn(totalPages) + 1)
	}

	pages := make([]int, 0, len(picked))
	for page := range picked {
		pages = append(pages, page)
	}
	slices.Sort(pages)
	return pages
}
