// Package frontmatter reads and writes the key: value header block that
// prefixes every task document in the vault.
package frontmatter

import (
	"sort"
	"strings"
)

const delimiter = "---"

// Parse splits text into its header fields and body.
//
// A document without an opening and closing delimiter line is returned as
// an empty field set plus the untouched text. Header lines without a colon
// are ignored; everything else splits on the first colon.
func Parse(text string) (map[string]string, string) {
	fields := make(map[string]string)

	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(strings.TrimSuffix(normalized, "\n"), "\n")
	if len(lines) < 3 || strings.TrimSpace(lines[0]) != delimiter {
		return fields, text
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delimiter {
			end = i
			break
		}
	}
	if end < 0 {
		return fields, text
	}

	for _, line := range lines[1:end] {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return fields, strings.Join(lines[end+1:], "\n")
}

// Render serialises fields in sorted key order followed by body. Leading
// blank lines of body are dropped and the document ends with one newline.
func Render(fields map[string]string, body string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(delimiter + "\n")
	for _, k := range keys {
		b.WriteString(k + ": " + fields[k] + "\n")
	}
	b.WriteString(delimiter + "\n")
	b.WriteString(strings.TrimLeft(body, "\n"))

	return strings.TrimRight(b.String(), " \t\r\n") + "\n"
}
