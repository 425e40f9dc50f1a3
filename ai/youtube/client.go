package youtube

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dbawebdesign/lailms-ingest/ai"
)

const (
	timedTextEndpoint = "https://video.google.com/timedtext"
	fetchTimeout      = 15 * time.Second
)

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=)([\w-]{11})`),
	regexp.MustCompile(`(?:youtu\.be/)([\w-]{11})`),
	regexp.MustCompile(`(?:youtube\.com/embed/)([\w-]{11})`),
	regexp.MustCompile(`(?:youtube\.com/shorts/)([\w-]{11})`),
}

// Client fetches existing caption tracks for hosted videos via the timedtext
// endpoint. It implements ai.TranscriptFetcher.
type Client struct {
	httpClient *http.Client
	endpoint   string
	logger     *slog.Logger
}

var _ ai.TranscriptFetcher = (*Client)(nil)

// NewClient creates a caption fetch client. A nil httpClient uses a default
// with a 15 second timeout.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: fetchTimeout}
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   timedTextEndpoint,
		logger:     slog.Default().With("component", "youtube-transcripts"),
	}
}

// VideoID extracts the video identifier from a watch URL. Returns an empty
// string when the URL does not match a recognized hosting pattern.
func VideoID(videoURL string) string {
	for _, pattern := range videoIDPatterns {
		if m := pattern.FindStringSubmatch(videoURL); m != nil {
			return m[1]
		}
	}
	return ""
}

// IsVideoURL reports whether the URL matches a recognized video hosting
// pattern.
func IsVideoURL(rawURL string) bool {
	return VideoID(rawURL) != ""
}

// timedTextDoc mirrors the XML payload of the timedtext endpoint.
type timedTextDoc struct {
	XMLName xml.Name       `xml:"transcript"`
	Texts   []timedTextRow `xml:"text"`
}

type timedTextRow struct {
	Start string `xml:"start,attr"`
	Dur   string `xml:"dur,attr"`
	Body  string `xml:",chardata"`
}

// Fetch retrieves the caption track for the video in the given language.
// An empty language requests the default track. Failures are returned as
// *ai.TranscriptError classified by cause.
func (c *Client) Fetch(ctx context.Context, videoURL, language string) ([]ai.CaptionSegment, error) {
	videoID := VideoID(videoURL)
	if videoID == "" {
		return nil, &ai.TranscriptError{Kind: ai.TranscriptNotFound,
			Message: fmt.Sprintf("unrecognized video URL %q", videoURL)}
	}

	query := url.Values{"v": {videoID}}
	if language != "" {
		query.Set("lang", language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, &ai.TranscriptError{Kind: ai.TranscriptUnknown, Message: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ai.TranscriptError{Kind: ai.TranscriptUnknown, Message: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, &ai.TranscriptError{Kind: ai.TranscriptPrivate,
			Message: fmt.Sprintf("caption request for %s denied with status %d", videoID, resp.StatusCode)}
	case resp.StatusCode == http.StatusNotFound:
		return nil, &ai.TranscriptError{Kind: ai.TranscriptNotFound,
			Message: fmt.Sprintf("video %s not found", videoID)}
	case resp.StatusCode != http.StatusOK:
		return nil, &ai.TranscriptError{Kind: ai.TranscriptUnknown,
			Message: fmt.Sprintf("caption request for %s returned status %d", videoID, resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &ai.TranscriptError{Kind: ai.TranscriptUnknown, Message: err.Error()}
	}

	if strings.Contains(string(body), "not available in your country") {
		return nil, &ai.TranscriptError{Kind: ai.TranscriptRegion,
			Message: fmt.Sprintf("video %s is region restricted", videoID)}
	}

	// The endpoint answers 200 with an empty body when captions are
	// disabled for the video.
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, &ai.TranscriptError{Kind: ai.TranscriptDisabled,
			Message: fmt.Sprintf("no caption track for video %s (lang=%q)", videoID, language)}
	}

	var doc timedTextDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, &ai.TranscriptError{Kind: ai.TranscriptUnknown,
			Message: fmt.Sprintf("malformed caption payload for %s: %v", videoID, err)}
	}

	segments := make([]ai.CaptionSegment, 0, len(doc.Texts))
	for _, row := range doc.Texts {
		text := strings.TrimSpace(html.UnescapeString(row.Body))
		if text == "" {
			continue
		}
		start, _ := strconv.ParseFloat(row.Start, 64)
		segments = append(segments, ai.CaptionSegment{
			Start: time.Duration(start * float64(time.Second)),
			Text:  text,
		})
	}

	if len(segments) == 0 {
		return nil, &ai.TranscriptError{Kind: ai.TranscriptDisabled,
			Message: fmt.Sprintf("caption track for video %s is empty", videoID)}
	}

	c.logger.Debug("fetched caption track", "video", videoID, "lang", language, "segments", len(segments))
	return segments, nil
}
