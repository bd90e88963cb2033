package search

import "strings"

// MaxQueryWords bounds the number of words sent to the full-text index.
const MaxQueryWords = 32

var luceneEscaper = strings.NewReplacer(
	`\`, `\\`,
	"+", `\+`,
	"-", `\-`,
	"&&", `\&&`,
	"||", `\||`,
	"!", `\!`,
	"(", `\(`,
	")", `\)`,
	"{", `\{`,
	"}", `\}`,
	"[", `\[`,
	"]", `\]`,
	"^", `\^`,
	`"`, `\"`,
	"~", `\~`,
	"*", `\*`,
	"?", `\?`,
	":", `\:`,
	"/", `\/`,
)

// SanitizeQuery escapes Lucene reserved syntax and truncates the query to
// MaxQueryWords words. Whitespace runs collapse to single spaces.
func SanitizeQuery(query string) string {
	words := strings.Fields(query)
	if len(words) > MaxQueryWords {
		words = words[:MaxQueryWords]
	}
	return luceneEscaper.Replace(strings.Join(words, " "))
}
