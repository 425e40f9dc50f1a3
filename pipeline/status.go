// Copyright 2025 DBA Web Design
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dbawebdesign/lailms-ingest/core"
	"github.com/dbawebdesign/lailms-ingest/storage"
)

// Stage names recorded into document metadata and reported to the progress
// sink.
const (
	StageExtract   = "extract"
	StageChunk     = "chunk"
	StageEmbed     = "embed"
	StageSummarize = "summarize"
)

// stageBands maps each stage onto its slice of the document-wide percentage
// scale. Registration occupies 0-10; the stages split the rest.
var stageBands = map[string]struct{ lo, hi int }{
	StageExtract:   {10, 30},
	StageChunk:     {30, 60},
	StageEmbed:     {60, 80},
	StageSummarize: {80, 100},
}

// StagePercent maps stage-internal completion onto the document-wide
// percentage scale using the stage's weight band.
func StagePercent(stage string, current, total int) int {
	band, ok := stageBands[stage]
	if !ok {
		return 0
	}
	if total <= 0 || current >= total {
		return band.hi
	}
	if current < 0 {
		current = 0
	}
	return band.lo + (band.hi-band.lo)*current/total
}

const maxErrorHistory = 10

// Tracker is the single writer of document status and progress metadata.
// Every write merges into the stored metadata map, so a concurrent reader
// never observes previously recorded history disappearing.
type Tracker struct {
	docs   storage.DocumentRepository
	logger *slog.Logger
}

// NewTracker creates a tracker over the document repository.
func NewTracker(docs storage.DocumentRepository) *Tracker {
	return &Tracker{
		docs:   docs,
		logger: slog.Default().With("component", "pipeline"),
	}
}

// Advance records a status transition plus the current stage and
// document-wide percentage. Extra entries are merged into the metadata map
// alongside the progress keys.
func (t *Tracker) Advance(ctx context.Context, documentID string, status core.DocumentStatus, stage string, percent int, extra map[string]string) error {
	md := map[string]string{
		"processing_stage":    stage,
		"processing_progress": strconv.Itoa(percent),
	}
	for k, v := range extra {
		md[k] = v
	}
	_, err := t.docs.UpdateDocument(ctx, documentID, storage.DocumentPatch{
		Status:   &status,
		Metadata: md,
	})
	if err != nil {
		return fmt.Errorf("advancing document %s to %s: %w", documentID, status, err)
	}
	t.logger.Debug("document advanced", "document", documentID,
		"status", status, "stage", stage, "percent", percent)
	return nil
}

// Fail records a stage failure: the document moves to the given status, the
// structured error is stored under last_error, and a bounded history of past
// errors is kept under error_history.
func (t *Tracker) Fail(ctx context.Context, documentID string, status core.DocumentStatus, stageErr *core.StageError) error {
	history := []json.RawMessage{json.RawMessage(stageErr.JSON())}
	if doc, err := t.docs.GetDocument(ctx, documentID); err == nil {
		if prev := doc.Metadata["error_history"]; prev != "" {
			var past []json.RawMessage
			if err := json.Unmarshal([]byte(prev), &past); err == nil {
				history = append(past, history...)
			}
		}
	}
	if len(history) > maxErrorHistory {
		history = history[len(history)-maxErrorHistory:]
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		historyJSON = []byte("[]")
	}

	_, err = t.docs.UpdateDocument(ctx, documentID, storage.DocumentPatch{
		Status: &status,
		Metadata: map[string]string{
			"last_error":    stageErr.JSON(),
			"error_history": string(historyJSON),
		},
	})
	if err != nil {
		return fmt.Errorf("recording failure of document %s: %w", documentID, err)
	}
	t.logger.Warn("document failed", "document", documentID,
		"status", status, "code", stageErr.Code, "err", stageErr.Message)
	return nil
}
