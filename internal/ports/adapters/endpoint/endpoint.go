package endpoint

import (
	"fmt"
	"net/url"
	"strings"
)

// Guard describes one remote service: its default base URL and the hosts a
// user-supplied override may point to.
type Guard struct {
	// Name is used in error messages, e.g. "OPENROUTER_BASE_URL".
	Name         string
	DefaultURL   string
	DefaultHosts []string
}

var (
	ElevenLabs = Guard{
		Name:         "ELEVENLABS_BASE_URL",
		DefaultURL:   "https://api.elevenlabs.io",
		DefaultHosts: []string{"api.elevenlabs.io", "api.us.elevenlabs.io", "api.eu.residency.elevenlabs.io"},
	}
	Gemini = Guard{
		Name:         "GEMINI_BASE_URL",
		DefaultURL:   "https://generativelanguage.googleapis.com",
		DefaultHosts: []string{"generativelanguage.googleapis.com"},
	}
	OpenRouter = Guard{
		Name:         "OPENROUTER_BASE_URL",
		DefaultURL:   "https://openrouter.ai",
		DefaultHosts: []string{"openrouter.ai", "api.openrouter.ai"},
	}
)

func (g Guard) Normalize(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = g.DefaultURL
	}
	return strings.TrimRight(baseURL, "/")
}

// Validate accepts only absolute https URLs without userinfo, query or
// fragment whose host is allow-listed.
func (g Guard) Validate(baseURL string, allowedHosts []string) error {
	baseURL = g.Normalize(baseURL)

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", g.Name, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("invalid %s %q: absolute URL with host is required", g.Name, baseURL)
	}
	if u.User != nil {
		return fmt.Errorf("invalid %s %q: userinfo is not allowed", g.Name, baseURL)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("invalid %s %q: query and fragment are not allowed", g.Name, baseURL)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("invalid %s %q: host is required", g.Name, baseURL)
	}

	switch scheme {
	case "https":
	default:
		return fmt.Errorf("invalid %s %q: https is required", g.Name, baseURL)
	}

	allowed := g.allowed(allowedHosts)
	if _, ok := allowed[host]; !ok {
		return fmt.Errorf("invalid %s %q: host %q is not in the allowed hosts", g.Name, baseURL, host)
	}
	return nil
}

func (g Guard) allowed(allowedHosts []string) map[string]struct{} {
	out := normalizeHosts(allowedHosts)
	if len(out) == 0 {
		return normalizeHosts(g.DefaultHosts)
	}
	return out
}

func normalizeHosts(hosts []string) map[string]struct{} {
	out := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		v := strings.ToLower(strings.TrimSpace(h))
		v = strings.TrimPrefix(v, "http://")
		v = strings.TrimPrefix(v, "https://")
		v = strings.Trim(v, "/")
		if v == "" {
			continue
		}
		if i := strings.Index(v, ":"); i >= 0 {
			v = v[:i]
		}
		out[v] = struct{}{}
	}
	return out
}
