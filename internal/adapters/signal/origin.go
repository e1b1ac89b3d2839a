package signal

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// normalizeOrigin turns an Origin header or config entry into
// scheme://host[:port], lowercased. Anything with a path, query or
// credentials is rejected.
func normalizeOrigin(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return "", false
	}
	if u.Path != "" && u.Path != "/" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	return scheme + "://" + strings.ToLower(u.Host), true
}

// originChecker admits requests without an Origin header (non-browser
// clients), then origins in allowed. With an empty list only same-host
// origins pass, unless allowAll is set.
func originChecker(allowed []string, allowAll bool) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		if a == "*" {
			allowAll = true
			continue
		}
		if n, ok := normalizeOrigin(a); ok {
			set[n] = struct{}{}
		}
	}

	return func(r *http.Request) bool {
		header := r.Header.Get("Origin")
		if header == "" || allowAll {
			return true
		}
		origin, ok := normalizeOrigin(header)
		if !ok {
			log.Warn().Str("module", "signal").Str("origin", header).Msg("malformed origin")
			return false
		}
		if len(set) == 0 {
			return strings.EqualFold(strings.SplitN(origin, "://", 2)[1], r.Host)
		}
		if _, ok := set[origin]; ok {
			return true
		}
		log.Warn().Str("module", "signal").Str("origin", origin).Msg("origin not allowed")
		return false
	}
}
