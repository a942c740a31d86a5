package ingest

import (
	"strings"
	"unicode"
)

// ParseIDList splits record identifiers separated by commas or whitespace.
// Empty tokens are ignored and repeats keep their first position.
func ParseIDList(text string) []string {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})

	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}
