package media

import "testing"

func TestVideoID(t *testing.T) {
	tests := map[string]string{
		"dQw4w9WgXcQ": "dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s": "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ?si=abc":               "dQw4w9WgXcQ",
		"https://m.youtube.com/shorts/abcdEFGhijk":          "abcdEFGhijk",
		"https://www.youtube.com/embed/abcdEFGhijk/":        "abcdEFGhijk",
		"https://vimeo.com/12345":                           "https-vimeo-com-12345",
		"  My Cool.Video  ":                                 "my-cool-video",
		"___":                                               "input",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := VideoID(in); got != want {
				t.Fatalf("VideoID(%q) = %q, want %q", in, got, want)
			}
		})
	}
}

func TestSourceURL(t *testing.T) {
	if got := SourceURL("dQw4w9WgXcQ"); got != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Fatalf("SourceURL(id) = %q", got)
	}
	in := "https://youtu.be/dQw4w9WgXcQ"
	if got := SourceURL(in); got != in {
		t.Fatalf("SourceURL(url) = %q", got)
	}
}

func TestNormalizePathSegment(t *testing.T) {
	tests := map[string]string{
		"  My Cool.Video  ": "my-cool-video",
		"___":               "",
		"abc123":            "abc123",
		"Name (v2)!":        "name-v2",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := normalizePathSegment(in); got != want {
				t.Fatalf("normalizePathSegment(%q) = %q, want %q", in, got, want)
			}
		})
	}
}
