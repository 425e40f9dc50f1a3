package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dbawebdesign/lailms-ingest/ai/youtube"
	"github.com/dbawebdesign/lailms-ingest/core"
)

var vimeoPattern = regexp.MustCompile(`vimeo\.com/\d+`)

// textLikeTypes are declared media types decoded as text directly or via the
// best-effort binary path.
var textLikeTypes = []string{
	"text/",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.oasis.opendocument.text",
	"application/rtf",
	"application/json",
	"application/xml",
}

// IsVideoURL reports whether the URL matches a recognized video hosting
// pattern.
func IsVideoURL(rawURL string) bool {
	return youtube.IsVideoURL(rawURL) || vimeoPattern.MatchString(rawURL)
}

// Detect selects the extraction strategy for a document from its source URL
// and declared media type. URL patterns win over media types because
// URL-backed documents often carry a generic declared type.
func Detect(doc *core.Document) (core.SourceKind, error) {
	if doc == nil {
		return "", missingSourceError("record")
	}

	if doc.SourceURL != "" {
		if IsVideoURL(doc.SourceURL) {
			return core.SourceKindVideo, nil
		}
		if strings.HasPrefix(doc.SourceURL, "http://") || strings.HasPrefix(doc.SourceURL, "https://") {
			return core.SourceKindWeb, nil
		}
	}

	mediaType := strings.ToLower(strings.TrimSpace(doc.MediaType))
	switch {
	case mediaType == "application/pdf":
		return core.SourceKindPDF, nil
	case strings.HasPrefix(mediaType, "audio/"):
		return core.SourceKindAudio, nil
	}
	for _, prefix := range textLikeTypes {
		if strings.HasPrefix(mediaType, prefix) {
			return core.SourceKindText, nil
		}
	}

	return "", &Error{
		Code:        core.ErrCodeUnsupportedType,
		Message:     fmt.Sprintf("unsupported media type %q (url %q)", doc.MediaType, doc.SourceURL),
		UserMessage: "This file type is not supported.",
		Actions:     []string{"Upload a PDF, text document, audio file, or link to a web page or video."},
	}
}
