package rewrite

import "strings"

// RewriteURL replaces the first occurrence of search in the part of raw before the first '?'.
// The query string is reattached verbatim. ok is false when the base does not contain search.
func RewriteURL(raw, search, replace string) (string, bool) {
	if search == "" {
		return raw, false
	}

	base, query, hasQuery := strings.Cut(raw, "?")
	if !strings.Contains(base, search) {
		return raw, false
	}

	out := strings.Replace(base, search, replace, 1)
	if hasQuery {
		out += "?" + query
	}
	return out, true
}
