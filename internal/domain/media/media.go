package media

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

var reBareID = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// VideoID derives the identifier used to name every artifact of a run.
// YouTube URLs yield the platform id; other input is reduced to a safe path
// segment.
func VideoID(input string) string {
	s := strings.TrimSpace(input)
	if reBareID.MatchString(s) {
		return s
	}
	if id := youtubeID(s); id != "" {
		return id
	}
	if id := normalizePathSegment(s); id != "" {
		return id
	}
	return "input"
}

// SourceURL turns a bare video id into a watch URL and leaves URLs alone.
func SourceURL(input string) string {
	s := strings.TrimSpace(input)
	if reBareID.MatchString(s) {
		return "https://www.youtube.com/watch?v=" + s
	}
	return s
}

func youtubeID(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	path := strings.Trim(u.Path, "/")

	switch host {
	case "youtu.be":
		return firstSegment(path)
	case "youtube.com", "music.youtube.com":
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		for _, prefix := range []string{"shorts/", "embed/", "live/", "v/"} {
			if strings.HasPrefix(path, prefix) {
				return firstSegment(strings.TrimPrefix(path, prefix))
			}
		}
	}
	return ""
}

func firstSegment(p string) string {
	if i := strings.Index(p, "/"); i >= 0 {
		p = p[:i]
	}
	return p
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
