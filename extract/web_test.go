package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbawebdesign/lailms-ingest/core"
)

func webSource(url string) *Source {
	return &Source{Document: &core.Document{ID: core.NewID(), SourceURL: url}}
}

func serveHTML(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func longParagraph(n int) string {
	return strings.Repeat("This sentence carries real article content for the reader. ", n)
}

func TestWebExtractSemanticContainer(t *testing.T) {
	body := longParagraph(8)
	server := serveHTML(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head><title>Article Title</title></head>
<body><nav>Home | About | Contact</nav>
<article><p>%s</p></article>
<footer>Copyright</footer></body></html>`, body)
	})

	e := NewWebExtractor()
	result, err := e.Extract(context.Background(), webSource(server.URL))
	require.NoError(t, err)
	assert.Contains(t, result.Text, "real article content")
	assert.NotContains(t, result.Text, "Home | About")
	assert.Equal(t, "container", result.Metadata["web_parse_method"])
	assert.Equal(t, "Article Title", result.Metadata["web_title"])
}

func TestWebExtractJSONLD(t *testing.T) {
	body := longParagraph(8)
	server := serveHTML(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head>
<script type="application/ld+json">{"@type":"Article","articleBody":%q}</script>
</head><body><p>short</p></body></html>`, body)
	})

	e := NewWebExtractor()
	result, err := e.Extract(context.Background(), webSource(server.URL))
	require.NoError(t, err)
	assert.Equal(t, "json-ld", result.Metadata["web_parse_method"])
	assert.Contains(t, result.Text, "real article content")
}

func TestWebExtractScoredParagraphs(t *testing.T) {
	content := longParagraph(4)
	server := serveHTML(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
<div class="cookie-banner"><p>%s</p></div>
<div><p>%s</p><p>%s</p></div>
</body></html>`, strings.Repeat("We value your privacy. ", 3), content, content)
	})

	e := NewWebExtractor()
	result, err := e.Extract(context.Background(), webSource(server.URL))
	require.NoError(t, err)
	assert.Equal(t, "scored-paragraphs", result.Metadata["web_parse_method"])
	assert.Contains(t, result.Text, "real article content")
	assert.NotContains(t, result.Text, "value your privacy")
}

func TestWebExtractAllProfilesBlocked(t *testing.T) {
	var attempts int
	server := serveHTML(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	})

	e := NewWebExtractor()
	_, err := e.Extract(context.Background(), webSource(server.URL))

	var extractErr *Error
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, core.ErrCodeFetchBlocked, extractErr.Code)
	assert.Contains(t, extractErr.UserMessage, "blocking automated access")
	assert.Equal(t, len(fetchProfiles), attempts, "every profile gets one attempt")
}

func TestWebExtractNotFound(t *testing.T) {
	server := serveHTML(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	e := NewWebExtractor()
	_, err := e.Extract(context.Background(), webSource(server.URL))

	var extractErr *Error
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, core.ErrCodeFetchNotFound, extractErr.Code)
}

func TestWebExtractMissingURL(t *testing.T) {
	e := NewWebExtractor()

	_, err := e.Extract(context.Background(), &Source{Document: &core.Document{ID: "d"}})
	var extractErr *Error
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, core.ErrCodeMissingSource, extractErr.Code)
}

func TestClassifyFetchError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"forbidden", &httpStatusError{status: 403}, core.ErrCodeFetchBlocked},
		{"unauthorized", &httpStatusError{status: 401}, core.ErrCodeFetchBlocked},
		{"rate limited", &httpStatusError{status: 429}, core.ErrCodeFetchBlocked},
		{"not found", &httpStatusError{status: 404}, core.ErrCodeFetchNotFound},
		{"gone", &httpStatusError{status: 410}, core.ErrCodeFetchNotFound},
		{"server error", &httpStatusError{status: 502}, core.ErrCodeFetchServerError},
		{"deadline", context.DeadlineExceeded, core.ErrCodeFetchTimeout},
		{"other", fmt.Errorf("connection refused"), core.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyFetchError(tt.err))
		})
	}
}
