package anicache

import "strings"

// Match reports whether key matches pattern. '*' matches any run of
// characters, separators included, so "anidb:*" covers every method and
// argument hash under that provider. A pattern without wildcards must equal
// the key exactly.
func Match(pattern, key string) bool {
	if pattern == "*" {
		return true
	}
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == key
	}

	if !strings.HasPrefix(key, parts[0]) {
		return false
	}
	key = key[len(parts[0]):]

	last := len(parts) - 1
	for _, part := range parts[1:last] {
		idx := strings.Index(key, part)
		if idx < 0 {
			return false
		}
		key = key[idx+len(part):]
	}
	return strings.HasSuffix(key, parts[last])
}

// LikePattern rewrites a '*' glob as a SQL LIKE pattern, escaping LIKE
// metacharacters so literal '%' and '_' in keys do not over-match. Meant for
// queries using ESCAPE '\'.
func LikePattern(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '\\', '%', '_':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '*':
			b.WriteByte('%')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
