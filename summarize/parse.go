package summarize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	chunkMarkerPattern = regexp.MustCompile(`(?m)^\s*===\s*CHUNK\s+(\d+)\s*===\s*$`)
	lineNumberPattern  = regexp.MustCompile(`(?i)^\s*(?:(?:chunk|passage)\s+)?(\d+)\s*[).:\-]\s*`)
)

// parseBatchResponse splits a batch reply along its positional chunk markers.
// The result maps 1-based marker numbers to summary text; numbers outside
// [1, n], duplicates, and empty blocks are dropped. An empty map means the
// model ignored the format and the caller should fall back.
func parseBatchResponse(response string, n int) map[int]string {
	markers := chunkMarkerPattern.FindAllStringSubmatchIndex(response, -1)
	out := make(map[int]string, len(markers))
	for i, m := range markers {
		num, err := strconv.Atoi(response[m[2]:m[3]])
		if err != nil || num < 1 || num > n {
			continue
		}
		end := len(response)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		text := strings.TrimSpace(response[m[1]:end])
		if text == "" {
			continue
		}
		if _, dup := out[num]; dup {
			continue
		}
		out[num] = text
	}
	return out
}

// parseByLines is the degraded parse for a reply without markers: one
// non-empty line per chunk, leading enumerations like "1." or "Chunk 2:"
// stripped. Returns nil unless the line count matches exactly, since a
// mismatch gives no safe way to assign summaries to chunks.
func parseByLines(response string, n int) map[int]string {
	var lines []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, lineNumberPattern.ReplaceAllString(line, ""))
	}
	if len(lines) != n {
		return nil
	}
	out := make(map[int]string, n)
	for i, line := range lines {
		if line == "" {
			return nil
		}
		out[i+1] = line
	}
	return out
}
