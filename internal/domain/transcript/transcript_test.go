package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forPelevin/wordsplice/internal/types"
)

func TestFromScribe_KeepsWordsInOrder(t *testing.T) {
	resp := ScribeResponse{
		LanguageCode: "en",
		Text:         " I love cats (laughs) ",
		Words: []ScribeWord{
			{Text: "I", Start: 0, End: 0.5, Type: "word"},
			{Text: " ", Start: 0.5, End: 0.5, Type: "spacing"},
			{Text: "love", Start: 0.5, End: 1.0, Type: "word"},
			{Text: "(laughs)", Start: 1.0, End: 1.2, Type: "audio_event"},
			{Text: " cats ", Start: 1.2, End: 1.5, Type: "word"},
			{Text: "  ", Start: 1.5, End: 1.6, Type: "word"},
		},
	}

	tr := FromScribe(resp)
	assert.Equal(t, "en", tr.LanguageCode)
	assert.Equal(t, "I love cats (laughs)", tr.Text)
	require.Len(t, tr.Tokens, 3)
	assert.Equal(t, types.Token{Index: 1, Text: "I", Start: 0, End: 0.5}, tr.Tokens[0])
	assert.Equal(t, types.Token{Index: 2, Text: "love", Start: 0.5, End: 1.0}, tr.Tokens[1])
	assert.Equal(t, types.Token{Index: 3, Text: "cats", Start: 1.2, End: 1.5}, tr.Tokens[2])
}

func TestFromScribe_NoWords(t *testing.T) {
	tr := FromScribe(ScribeResponse{Text: "only text"})
	assert.Empty(t, tr.Tokens)
	assert.Equal(t, "only text", tr.Text)
}

func TestCheckOrdering(t *testing.T) {
	ok := []types.Token{
		{Index: 1, Start: 0, End: 0.5},
		{Index: 2, Start: 0.5, End: 1.0},
		{Index: 3, Start: 1.2, End: 1.2},
	}
	assert.Empty(t, CheckOrdering(ok))

	bad := []types.Token{
		{Index: 1, Start: 0, End: 0.7},
		{Index: 2, Start: 0.5, End: 0.4},
	}
	v := CheckOrdering(bad)
	require.Len(t, v, 2)
	assert.Equal(t, 1, v[0].Index)
	assert.Contains(t, v[0].String(), "overlaps next start")
	assert.Equal(t, 2, v[1].Index)
	assert.Contains(t, v[1].Reason, "after end")
}

func TestRenderText(t *testing.T) {
	got := RenderText([]types.Token{{Index: 1, Text: "hi", Start: 0, End: 0.25}, {Index: 2, Text: "there", Start: 0.25, End: 1}})
	assert.Equal(t, "[0.00s - 0.25s] hi\n[0.25s - 1.00s] there\n", got)
}

func TestParseJSON3(t *testing.T) {
	raw := []byte(`{"wireMagic":"pb3","events":[
		{"tStartMs":0,"dDurationMs":5000,"id":1,"wpWinPosId":1},
		{"tStartMs":120,"dDurationMs":3000,"segs":[{"utf8":"hello"},{"utf8":" world","tOffsetMs":400}]},
		{"tStartMs":2000,"dDurationMs":10,"aAppend":1,"segs":[{"utf8":"\n"}]},
		{"tStartMs":2500,"dDurationMs":2000,"segs":[{"utf8":"second  line"}]}
	]}`)
	caps, err := ParseJSON3(raw)
	require.NoError(t, err)
	require.Len(t, caps, 2)
	assert.Equal(t, types.Caption{Text: "hello world", Start: 0.12, Duration: 3}, caps[0])
	assert.Equal(t, "second line", caps[1].Text)

	_, err = ParseJSON3([]byte("<xml/>"))
	assert.Error(t, err)
}

func TestClampCaptions(t *testing.T) {
	in := []types.Caption{
		{Text: "a", Start: 0, Duration: 3},
		{Text: "b", Start: 2, Duration: 1},
		{Text: "c", Start: 2.05, Duration: 1},
		{Text: "d", Start: 5, Duration: 1},
	}
	out := ClampCaptions(in)
	assert.InDelta(t, 2.0, out[0].Duration, 1e-9)
	assert.InDelta(t, 0.1, out[1].Duration, 1e-9)
	assert.InDelta(t, 1.0, out[2].Duration, 1e-9)
	assert.InDelta(t, 1.0, out[3].Duration, 1e-9)
	assert.InDelta(t, 3.0, in[0].Duration, 1e-9, "input must not be mutated")

	assert.Equal(t, "[0.00s - 2.00s] a\n", RenderCaptions(out[:1]))
}

func TestWords(t *testing.T) {
	assert.Equal(t, "I love cats", Words([]types.Token{{Text: "I"}, {Text: "love"}, {Text: "cats"}}))
	assert.Empty(t, Words(nil))
}

func TestMergeChunks_SplitsOverlapAtMidpoint(t *testing.T) {
	chunks := []Chunk{
		{Offset: 0, Tokens: []types.Token{
			{Text: "one", Start: 1, End: 2},
			{Text: "two", Start: 8, End: 9},
			{Text: "three", Start: 9.5, End: 9.75},
		}},
		// Overlaps the first window by 2s: "two" is heard again at 8-9.
		{Offset: 8, Tokens: []types.Token{
			{Text: "two", Start: 0, End: 1},
			{Text: "three", Start: 1.5, End: 1.75},
			{Text: "four", Start: 3, End: 3.5},
		}},
	}

	got := MergeChunks(chunks, 2)
	require.Len(t, got, 4)
	assert.Equal(t, types.Token{Index: 1, Text: "one", Start: 1, End: 2}, got[0])
	assert.Equal(t, types.Token{Index: 2, Text: "two", Start: 8, End: 9}, got[1])
	assert.Equal(t, types.Token{Index: 3, Text: "three", Start: 9.5, End: 9.75}, got[2])
	assert.Equal(t, types.Token{Index: 4, Text: "four", Start: 11, End: 11.5}, got[3])
}

func TestMergeChunks_Empty(t *testing.T) {
	assert.Empty(t, MergeChunks(nil, 5))
}
