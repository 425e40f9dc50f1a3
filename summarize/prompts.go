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

package summarize

import (
	"fmt"
	"strings"
)

const chunkMarkerFormat = "=== CHUNK %d ==="

const batchSystemPrompt = `You summarize educational material. Summaries are factual, concise, and
written in plain prose. Never invent information that is not in the source
text. Do not include any preamble, explanation, greeting, or acknowledgment.`

const batchPromptTemplate = `You will receive %d numbered passages. Write a factual summary of 2-3
sentences for every passage.

Answer using exactly this format, one block per passage, in the same order:

=== CHUNK 1 ===
<summary of passage 1>
=== CHUNK 2 ===
<summary of passage 2>

Rules:
- Emit exactly one block per passage, nothing before the first marker and
  nothing after the last summary.
- Keep each summary self-contained; do not refer to other passages.
- If a passage has no summarizable content, write "No content." for it.

Passages:

%s`

// batchPrompt builds the positional batch request for a set of chunk texts.
func batchPrompt(texts []string) string {
	var b strings.Builder
	for i, text := range texts {
		fmt.Fprintf(&b, chunkMarkerFormat+"\n%s\n\n", i+1, text)
	}
	return fmt.Sprintf(batchPromptTemplate, len(texts), b.String())
}

const chunkPromptTemplate = `Summarize the following passage in 2-3 factual sentences. Answer with the
summary only, no preamble.

%s`

func chunkPrompt(text string) string {
	return fmt.Sprintf(chunkPromptTemplate, text)
}

const sectionPromptTemplate = `The following passages all belong to the same part of one document (%s).
Write one concise summary of 3-4 sentences covering the whole part. Answer
with the summary only, no preamble.

%s`

func sectionPrompt(sectionID, text string) string {
	return fmt.Sprintf(sectionPromptTemplate, sectionID, text)
}

const documentPromptTemplate = `The following are summaries of the parts of one document, in order. Write a
4-5 sentence overview of the whole document. Answer with the overview only,
no preamble.

%s`

func documentPrompt(parts []string) string {
	return fmt.Sprintf(documentPromptTemplate, strings.Join(parts, "\n\n"))
}
