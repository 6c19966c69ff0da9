// Package selection builds the word-selection prompt, parses the model's
// answer and re-attaches transcript timing to the chosen words.
package selection

import (
	"fmt"
	"strings"

	"github.com/forPelevin/wordsplice/internal/types"
)

const DefaultSpans = 5

// BuildPrompt lists every token as "index: word" and asks for about spans
// word spans that read as a new, clearly silly sentence.
func BuildPrompt(tokens []types.Token, spans int) string {
	if spans <= 0 {
		spans = DefaultSpans
	}
	var b strings.Builder
	b.WriteString("We are making a light-hearted, obviously edited parody remix of a video by re-ordering words the speaker actually said (\"sentence mixing\").\n")
	b.WriteString("Below is the transcript as numbered words, one per line, in the form `index: word`.\n\n")
	fmt.Fprintf(&b, "Choose about %d spans. A span is one or more words, consecutive in the transcript when possible. ", spans)
	b.WriteString("Played in the order you return them, the spans must form a new sentence that differs from anything the speaker said.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Use only words from the list. Copy each word's index and text exactly as listed.\n")
	b.WriteString("- Return spans in playback order; words inside a span in playback order.\n")
	b.WriteString("- Keep it absurd and harmless. Do not construct admissions of crimes, accusations against real people, threats, slurs, sexual content, or anything that could be mistaken for a genuine statement by the speaker.\n")
	b.WriteString(`- Return strictly valid JSON (no markdown, no code fences) shaped like {"spans":[{"words":[{"index":1,"text":"word"}]}]}.`)
	b.WriteString("\n\nTranscript:\n")
	for _, t := range tokens {
		fmt.Fprintf(&b, "%d: %s\n", t.Index, t.Text)
	}
	return b.String()
}

// RetryPrompt repeats prompt with a stricter output instruction after the
// previous answer failed to parse.
func RetryPrompt(prompt string, cause error) string {
	return prompt + fmt.Sprintf(
		"\nYour previous reply could not be used (%v). Reply with one JSON object of the form "+
			`{"spans":[{"words":[{"index":<int>,"text":"<word>"}]}]}`+
			" and nothing else: no prose, no markdown, no code fences.\n", cause)
}

// Schema is the JSON schema handed to providers that support constrained
// output.
func Schema() map[string]any {
	word := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"index": map[string]any{"type": "integer"},
			"text":  map[string]any{"type": "string"},
		},
		"required":             []string{"index", "text"},
		"additionalProperties": false,
	}
	span := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"words": map[string]any{"type": "array", "items": word},
		},
		"required":             []string{"words"},
		"additionalProperties": false,
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"spans": map[string]any{"type": "array", "items": span},
		},
		"required":             []string{"spans"},
		"additionalProperties": false,
	}
}
