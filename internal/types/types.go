package types

// Token is a single transcribed word. Index is 1-based speech order.
type Token struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (t Token) Duration() float64 { return t.End - t.Start }

type Transcript struct {
	LanguageCode string  `json:"language_code,omitempty"`
	Text         string  `json:"text,omitempty"`
	Tokens       []Token `json:"tokens"`
}

// Caption is a coarse platform-provided caption line.
type Caption struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Pick is one word chosen by the language model. Span is 1-based.
type Pick struct {
	Span  int    `json:"span"`
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// TimedPick is a Pick whose timing was re-attached from the source transcript.
type TimedPick struct {
	Span  int     `json:"span"`
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Range is one cut handed to the audio tool, in seconds.
type Range struct {
	Start float64
	End   float64
	Text  string
}

func (r Range) Duration() float64 { return r.End - r.Start }
