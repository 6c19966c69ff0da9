package selection

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/forPelevin/wordsplice/internal/types"
)

// Policy decides what happens to a picked word that matches no token.
type Policy string

const (
	PolicyFail     Policy = "fail"
	PolicyDropWord Policy = "drop-word"
	PolicyDropSpan Policy = "drop-span"
)

var ErrUnmatched = errors.New("selected word not found in transcript")

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyFail, nil
	case PolicyFail, PolicyDropWord, PolicyDropSpan:
		return p, nil
	default:
		return "", fmt.Errorf("unknown unmatched policy %q (want fail, drop-word or drop-span)", s)
	}
}

// Attach copies timing from tokens onto picks. A pick resolves to, in
// order: the token at its index when the text agrees and the token is
// unused; the earliest unused token with the same text; the earliest token
// with the same text even if already used. Texts are compared after
// Normalize. Picks that resolve to nothing are handled by policy and
// returned as dropped.
func Attach(tokens []types.Token, picks []types.Pick, policy Policy) ([]types.TimedPick, []types.Pick, error) {
	if len(tokens) == 0 {
		return nil, nil, ErrEmptyTranscript
	}
	if policy == "" {
		policy = PolicyFail
	}

	m := newMatcher(tokens)
	var (
		out     []types.TimedPick
		dropped []types.Pick
	)
	for _, span := range groupBySpan(picks) {
		tentative := m.fork()
		var timed []types.TimedPick
		var missing []types.Pick
		for _, p := range span {
			pos, ok := tentative.resolve(p)
			if !ok {
				missing = append(missing, p)
				continue
			}
			t := tokens[pos]
			timed = append(timed, types.TimedPick{Span: p.Span, Index: t.Index, Text: t.Text, Start: t.Start, End: t.End})
		}

		if len(missing) > 0 {
			switch policy {
			case PolicyFail:
				p := missing[0]
				return nil, nil, fmt.Errorf("%w: span %d word %q (index %d)", ErrUnmatched, p.Span, p.Text, p.Index)
			case PolicyDropSpan:
				dropped = append(dropped, span...)
				continue
			case PolicyDropWord:
				dropped = append(dropped, missing...)
			}
		}
		m = tentative
		out = append(out, timed...)
	}

	if len(out) == 0 {
		return nil, dropped, ErrNoSelection
	}
	return out, dropped, nil
}

// Normalize composes s to NFC, lower-cases it and trims surrounding
// punctuation, quotes and space. A token that is punctuation only is kept lower-cased as is.
func Normalize(s string) string {
	s = strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
	t := strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r)
	})
	if t == "" {
		return s
	}
	return t
}

type matcher struct {
	tokens  []types.Token
	byIndex map[int]int
	byText  map[string][]int
	used    map[int]bool
}

func newMatcher(tokens []types.Token) *matcher {
	m := &matcher{
		tokens:  tokens,
		byIndex: make(map[int]int, len(tokens)),
		byText:  make(map[string][]int),
		used:    make(map[int]bool),
	}
	for i, t := range tokens {
		m.byIndex[t.Index] = i
		k := Normalize(t.Text)
		m.byText[k] = append(m.byText[k], i)
	}
	return m
}

func (m *matcher) fork() *matcher {
	used := make(map[int]bool, len(m.used))
	for k, v := range m.used {
		used[k] = v
	}
	return &matcher{tokens: m.tokens, byIndex: m.byIndex, byText: m.byText, used: used}
}

func (m *matcher) resolve(p types.Pick) (int, bool) {
	key := Normalize(p.Text)
	if pos, ok := m.byIndex[p.Index]; ok && !m.used[pos] && Normalize(m.tokens[pos].Text) == key {
		m.used[pos] = true
		return pos, true
	}
	same := m.byText[key]
	for _, pos := range same {
		if !m.used[pos] {
			m.used[pos] = true
			return pos, true
		}
	}
	if len(same) > 0 {
		return same[0], true
	}
	return 0, false
}

// groupBySpan keeps picks in order and splits them where Span changes.
func groupBySpan(picks []types.Pick) [][]types.Pick {
	var out [][]types.Pick
	for i, p := range picks {
		if i == 0 || p.Span != picks[i-1].Span {
			out = append(out, nil)
		}
		out[len(out)-1] = append(out[len(out)-1], p)
	}
	return out
}
