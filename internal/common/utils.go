package common

import "strings"

// ContainsEither reports whether a contains b or b contains a.
// Empty strings never match.
func ContainsEither(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// FirstUsable returns the first value that is non-empty and not one of the
// placeholders, or fallback when none qualifies.
func FirstUsable(values []string, placeholders []string, fallback string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || isPlaceholder(v, placeholders) {
			continue
		}
		return v
	}
	return fallback
}

func isPlaceholder(v string, placeholders []string) bool {
	for _, p := range placeholders {
		if v == p {
			return true
		}
	}
	return false
}
