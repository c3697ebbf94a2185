package frontmatter

import (
	"strings"
	"time"
	"unicode"
)

// Slugify turns a human label into a filename fragment: anything other than
// letters, digits, '-' and '_' becomes '_', runs of '_' collapse, and the
// result is lowercased. An empty result falls back to "task".
func Slugify(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	cleaned := b.String()
	for strings.Contains(cleaned, "__") {
		cleaned = strings.ReplaceAll(cleaned, "__", "_")
	}
	cleaned = strings.ToLower(strings.Trim(cleaned, "_"))
	if cleaned == "" {
		return "task"
	}
	return cleaned
}

// Timestamp formats t as an RFC 3339 UTC timestamp with nanoseconds.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Stamp is Timestamp with ':' and '.' removed so it can live in a filename.
func Stamp(t time.Time) string {
	return strings.NewReplacer(":", "", ".", "").Replace(Timestamp(t))
}

// ParseTimestamp reads a timestamp written by Timestamp or by any other
// RFC 3339 producer ("Z" or numeric offset).
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
