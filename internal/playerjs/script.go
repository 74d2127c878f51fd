package playerjs

import "regexp"

// Script is one fetched player script: the raw text plus the identity token
// derived from its URL. Scripts are immutable once fetched; derived
// operation sets are cached by ID for the session.
type Script struct {
	ID   string
	Body string
}

var scriptIDPattern = regexp.MustCompile(`/s/player/([A-Za-z0-9_-]+)/`)

// ScriptIDFromURL derives the version/identity token from a player script
// URL or path. It returns the whole input when no token is recognizable, so
// caching degrades to exact-URL keying rather than failing.
func ScriptIDFromURL(url string) string {
	if m := scriptIDPattern.FindStringSubmatch(url); len(m) > 1 {
		return m[1]
	}
	return url
}
