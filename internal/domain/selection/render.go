package selection

import (
	"fmt"
	"strings"

	"github.com/forPelevin/wordsplice/internal/types"
)

// Sentence joins the picked words in playback order.
func Sentence(timed []types.TimedPick) string {
	words := make([]string, 0, len(timed))
	for _, p := range timed {
		words = append(words, p.Text)
	}
	return strings.Join(words, " ")
}

// RenderText is the human-readable selection listing written next to the
// JSON files.
func RenderText(timed []types.TimedPick) string {
	var b strings.Builder
	for i, p := range timed {
		fmt.Fprintf(&b, "%d. [span %d] #%d %s (%.2fs - %.2fs)\n", i+1, p.Span, p.Index, p.Text, p.Start, p.End)
	}
	if len(timed) > 0 {
		fmt.Fprintf(&b, "\nRemix: %s\n", Sentence(timed))
	}
	return b.String()
}
