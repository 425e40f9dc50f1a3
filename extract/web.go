package extract

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dbawebdesign/lailms-ingest/core"
)

const (
	defaultAttemptTimeout = 15 * time.Second

	// minContainerLength is the minimum text length a semantic container or
	// structured-data field must yield before it is accepted.
	minContainerLength = 200

	maxWebBodyBytes = 8 << 20
)

// headerProfile is one fetch attempt's request headers. Profiles go from a
// full browser impersonation down to a plain client, because some sites
// block the former and some the latter.
type headerProfile struct {
	name    string
	headers map[string]string
}

var fetchProfiles = []headerProfile{
	{
		name: "browser",
		headers: map[string]string{
			"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		},
	},
	{
		name: "minimal",
		headers: map[string]string{
			"User-Agent": "Mozilla/5.0 (compatible; lailms-ingest/1.0)",
			"Accept":     "text/html",
		},
	},
	{
		name:    "plain",
		headers: map[string]string{},
	},
}

var boilerplatePattern = regexp.MustCompile(`(?i)\b(nav|menu|footer|header|sidebar|cookie|banner|advert|promo|subscribe|signup|comment)`)

// WebExtractor fetches a page and extracts its readable text. Fetching walks
// the header profiles until one succeeds; parsing prefers structured data
// and semantic containers and degrades to a scored-paragraph heuristic, then
// to raw text.
type WebExtractor struct {
	client         *http.Client
	attemptTimeout time.Duration
	logger         *slog.Logger
}

var _ Extractor = (*WebExtractor)(nil)

// WebOption configures the web extractor.
type WebOption func(*WebExtractor)

// WithHTTPClient sets the HTTP client used for fetches.
func WithHTTPClient(client *http.Client) WebOption {
	return func(e *WebExtractor) {
		if client != nil {
			e.client = client
		}
	}
}

// WithAttemptTimeout sets the per-attempt fetch timeout.
func WithAttemptTimeout(timeout time.Duration) WebOption {
	return func(e *WebExtractor) {
		if timeout > 0 {
			e.attemptTimeout = timeout
		}
	}
}

// NewWebExtractor creates a web page extractor.
func NewWebExtractor(opts ...WebOption) *WebExtractor {
	e := &WebExtractor{
		client:         &http.Client{},
		attemptTimeout: defaultAttemptTimeout,
		logger:         slog.Default().With("component", "extract-web"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *WebExtractor) Kind() core.SourceKind {
	return core.SourceKindWeb
}

func (e *WebExtractor) Extract(ctx context.Context, src *Source) (*Result, error) {
	pageURL := src.Document.SourceURL
	if pageURL == "" {
		return nil, missingSourceError("source URL")
	}

	doc, method, err := e.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	text, parseMethod := extractReadableText(doc)
	text = Sanitize(text)
	if text == "" {
		return nil, unusableContentError(fmt.Sprintf("page %s yielded no readable text", pageURL))
	}

	return &Result{
		Text: text,
		Metadata: map[string]string{
			"web_fetch_profile": method,
			"web_parse_method":  parseMethod,
			"web_title":         strings.TrimSpace(doc.Find("title").First().Text()),
		},
	}, nil
}

// fetch walks the header profiles until one returns a parseable page.
// Exhausting all profiles yields one aggregated error classified by the
// dominant failure cause.
func (e *WebExtractor) fetch(ctx context.Context, pageURL string) (*goquery.Document, string, error) {
	var failures []string
	classCount := make(map[string]int)
	lastClass := core.ErrCodeFetchServerError

	for _, profile := range fetchProfiles {
		doc, err := e.fetchOnce(ctx, pageURL, profile)
		if err == nil {
			return doc, profile.name, nil
		}

		class := classifyFetchError(err)
		classCount[class]++
		lastClass = class
		failures = append(failures, fmt.Sprintf("%s: %v", profile.name, err))
		e.logger.Debug("fetch attempt failed", "url", pageURL, "profile", profile.name, "err", err)

		if err := ctx.Err(); err != nil {
			break
		}
	}

	// The dominant class across attempts names the aggregated error; ties
	// fall to the last attempt's class.
	class := lastClass
	for c, n := range classCount {
		if n > classCount[class] {
			class = c
		}
	}

	userMessage, actions := fetchErrorAdvice(class)
	return nil, "", &Error{
		Code:        class,
		Message:     fmt.Sprintf("all fetch attempts for %s failed: %s", pageURL, strings.Join(failures, "; ")),
		UserMessage: userMessage,
		Actions:     actions,
	}
}

func (e *WebExtractor) fetchOnce(ctx context.Context, pageURL string, profile headerProfile) (*goquery.Document, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range profile.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{status: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxWebBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	return doc, nil
}

type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http status %d", e.status)
}

func classifyFetchError(err error) string {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.status == http.StatusUnauthorized || statusErr.status == http.StatusForbidden:
			return core.ErrCodeFetchBlocked
		case statusErr.status == http.StatusNotFound || statusErr.status == http.StatusGone:
			return core.ErrCodeFetchNotFound
		case statusErr.status >= 500:
			return core.ErrCodeFetchServerError
		case statusErr.status == http.StatusTooManyRequests:
			return core.ErrCodeFetchBlocked
		}
		return core.ErrCodeFetchServerError
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return core.ErrCodeFetchTLS
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return core.ErrCodeFetchTLS
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return core.ErrCodeFetchTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return core.ErrCodeFetchTimeout
	}

	return core.ErrCodeInternal
}

func fetchErrorAdvice(class string) (string, []string) {
	switch class {
	case core.ErrCodeFetchBlocked:
		return "The website is blocking automated access.", []string{
			"Copy the page text into a document and upload that instead.",
			"Try a different page covering the same content.",
		}
	case core.ErrCodeFetchNotFound:
		return "The page could not be found.", []string{
			"Check the URL for typos.",
			"The page may have been removed; try a different link.",
		}
	case core.ErrCodeFetchTimeout:
		return "The website took too long to respond.", []string{
			"Try again in a few minutes.",
			"If the problem persists, upload the content as a file instead.",
		}
	case core.ErrCodeFetchTLS:
		return "The website's security certificate could not be verified.", []string{
			"Check that the URL is correct.",
			"Try the http version of the page or upload the content as a file.",
		}
	case core.ErrCodeFetchServerError:
		return "The website reported an error.", []string{
			"Try again later.",
		}
	}
	return "The page could not be fetched.", []string{"Check the URL and try again."}
}

// extractReadableText walks the parse preference ladder and reports which
// rung produced the text.
func extractReadableText(doc *goquery.Document) (string, string) {
	if text := structuredDataText(doc); len(text) >= minContainerLength {
		return text, "json-ld"
	}
	if text := metaDescriptionText(doc); len(text) >= minContainerLength {
		return text, "meta"
	}
	if text := semanticContainerText(doc); len(text) >= minContainerLength {
		return text, "container"
	}
	if text := scoredParagraphText(doc); len(text) >= minContainerLength {
		return text, "scored-paragraphs"
	}
	return bodyText(doc), "body"
}

// structuredDataText pulls articleBody fields out of JSON-LD script blocks.
func structuredDataText(doc *goquery.Document) string {
	var bodies []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var payload any
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return
		}
		collectArticleBodies(payload, &bodies)
	})
	return strings.Join(bodies, "\n\n")
}

func collectArticleBodies(node any, out *[]string) {
	switch v := node.(type) {
	case map[string]any:
		if body, ok := v["articleBody"].(string); ok && strings.TrimSpace(body) != "" {
			*out = append(*out, strings.TrimSpace(body))
		}
		for _, child := range v {
			collectArticleBodies(child, out)
		}
	case []any:
		for _, child := range v {
			collectArticleBodies(child, out)
		}
	}
}

func metaDescriptionText(doc *goquery.Document) string {
	var parts []string
	if og, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		parts = append(parts, og)
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		parts = append(parts, desc)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

func semanticContainerText(doc *goquery.Document) string {
	for _, selector := range []string{"article", "main", `[role="main"]`} {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		sel.Find("script, style, nav, footer, aside").Remove()
		if text := strings.TrimSpace(sel.Text()); len(text) >= minContainerLength {
			return text
		}
	}
	return ""
}

// scoredParagraphText keeps paragraphs that score well on length and
// sentence count and are not boilerplate or link farms.
func scoredParagraphText(doc *goquery.Document) string {
	var kept []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if len(text) < 40 {
			return
		}

		// Link-dense paragraphs are navigation, not content.
		linkLen := 0
		p.Find("a").Each(func(_ int, a *goquery.Selection) {
			linkLen += len(strings.TrimSpace(a.Text()))
		})
		if float64(linkLen) > 0.5*float64(len(text)) {
			return
		}

		score := len(text) + 20*strings.Count(text, ". ")
		for ancestor := p.Parent(); ancestor.Length() > 0; ancestor = ancestor.Parent() {
			class, _ := ancestor.Attr("class")
			id, _ := ancestor.Attr("id")
			if boilerplatePattern.MatchString(class) || boilerplatePattern.MatchString(id) {
				score -= 200
				break
			}
		}
		if score >= 60 {
			kept = append(kept, text)
		}
	})
	return strings.Join(kept, "\n\n")
}

func bodyText(doc *goquery.Document) string {
	body := doc.Find("body")
	body.Find("script, style, noscript").Remove()
	return strings.TrimSpace(body.Text())
}
