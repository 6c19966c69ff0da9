// Package splice turns timed picks into the audio ranges that get cut and
// joined.
package splice

import (
	"fmt"
	"strings"

	"github.com/forPelevin/wordsplice/internal/types"
)

// Plan keeps picks in playback order, one range per pick. With mergeGap > 0,
// a range is folded into the previous one when it starts at most mergeGap
// seconds after the previous end (never before it).
func Plan(timed []types.TimedPick, mergeGap float64) []types.Range {
	out := make([]types.Range, 0, len(timed))
	for _, p := range timed {
		r := types.Range{Start: p.Start, End: p.End, Text: p.Text}
		if mergeGap > 0 && len(out) > 0 {
			last := &out[len(out)-1]
			gap := r.Start - last.End
			if gap >= 0 && gap <= mergeGap {
				last.End = r.End
				last.Text = strings.TrimSpace(last.Text + " " + r.Text)
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// Expected is the output duration the cuts add up to. Zero-length and
// inverted ranges count as zero.
func Expected(ranges []types.Range) float64 {
	var total float64
	for _, r := range ranges {
		if d := r.Duration(); d > 0 {
			total += d
		}
	}
	return total
}

// Deviation reports whether actual differs from expected by more than
// tolerance seconds.
func Deviation(expected, actual, tolerance float64) (float64, bool) {
	diff := actual - expected
	if diff < 0 {
		diff = -diff
	}
	return diff, diff > tolerance
}

// SegmentName is the temp file name of the n-th cut (0-based).
func SegmentName(n int) string {
	return fmt.Sprintf("segment_%03d.mp3", n)
}

// Comment is the metadata tag written into every spliced file.
func Comment(source string) string {
	if strings.TrimSpace(source) == "" {
		return "wordsplice: synthetic remix, words re-ordered from the original audio"
	}
	return fmt.Sprintf("wordsplice: synthetic remix of %s, words re-ordered from the original audio", source)
}
