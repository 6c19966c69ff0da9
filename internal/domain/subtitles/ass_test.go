package subtitles

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/forPelevin/wordsplice/internal/types"
)

func TestRenderRemixASS_PlacesCutsBackToBack(t *testing.T) {
	ranges := []types.Range{
		{Start: 0.0, End: 1.0, Text: "I love"},
		{Start: 2.0, End: 2.5, Text: "dogs"},
		{Start: 1.5, End: 2.0, Text: "not"},
	}
	ass := RenderRemixASS(ranges, "remix of abc")

	if !strings.Contains(ass, "Title: remix of abc") {
		t.Fatalf("missing title:\n%s", ass)
	}
	want := "Dialogue: 0,0:00:00.00,0:00:02.00,Remix,,0,0,0,,{\\k100}I love {\\k50}dogs {\\k50}not \n"
	if !strings.Contains(ass, want) {
		t.Fatalf("unexpected events:\n%s", ass)
	}
}

func TestRenderRemixASS_WrapsLongLines(t *testing.T) {
	var ranges []types.Range
	for i := 0; i < 12; i++ {
		at := float64(i)
		ranges = append(ranges, types.Range{Start: at, End: at + 0.5, Text: "word"})
	}
	ass := RenderRemixASS(ranges, "")
	assert.Equal(t, 2, strings.Count(ass, "Dialogue:"))
	assert.Contains(t, ass, "Title: wordsplice remix")
	assert.Contains(t, ass, "Dialogue: 0,0:00:04.00,0:00:06.00,")
}

func TestRenderRemixASS_EmptyHasNoEvents(t *testing.T) {
	ass := RenderRemixASS(nil, "x")
	assert.Contains(t, ass, "[Events]")
	assert.NotContains(t, ass, "Dialogue:")
}

func TestSanitizeASS_EscapesOverrideBlocks(t *testing.T) {
	assert.Equal(t, "(\\\\b1)bold", sanitizeASS("{\\b1}bold"))
}

func TestAssTime_Format(t *testing.T) {
	got := assTime(61*time.Second + 234*time.Millisecond)
	if got != "0:01:01.23" {
		t.Fatalf("unexpected assTime: %s", got)
	}
}
