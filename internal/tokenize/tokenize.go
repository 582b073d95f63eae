// Package tokenize implements the tokenizer/preprocessor pipeline:
// normalize → split → fold identifier boundaries → drop stop-words →
// drop short tokens → stem → retain duplicates for BM25 term-frequency
// counting.
package tokenize

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/surgebase/porter2"
	"golang.org/x/text/unicode/norm"
)

// wordRegex matches runs of letters, digits, underscores, and hyphens —
// the split-on-non-alphanumeric step. Underscores and hyphens are kept
// here so splitIdentifier can split snake_case and kebab-case words.
var wordRegex = regexp.MustCompile(`[\p{L}\p{N}_-]+`)

// DefaultStopWords is the closed stop-word list, tuned for source
// code rather than prose.
var DefaultStopWords = map[string]struct{}{
	"var": {}, "let": {}, "const": {}, "func": {}, "function": {}, "def": {},
	"class": {}, "return": {}, "if": {}, "else": {}, "for": {}, "while": {},
	"do": {}, "switch": {}, "case": {}, "break": {}, "continue": {},
	"import": {}, "package": {}, "from": {}, "as": {}, "is": {}, "in": {},
	"of": {}, "to": {}, "the": {}, "a": {}, "an": {}, "and": {}, "or": {},
	"not": {}, "true": {}, "false": {}, "null": {}, "nil": {}, "none": {},
	"this": {}, "self": {}, "data": {}, "result": {}, "value": {},
	"item": {}, "key": {}, "err": {}, "error": {}, "ctx": {}, "tmp": {},
	"new": {}, "public": {}, "private": {}, "static": {}, "void": {},
}

// abbreviations is the closed, one-shot expansion map query
// preprocessing adds. Expansion never recurses: the expanded form is
// never itself looked up in the map again.
var abbreviations = map[string]string{
	"fn":     "function",
	"impl":   "implementation",
	"struct": "structure",
	"param":  "parameter",
	"arg":    "argument",
	"var":    "variable",
	"cfg":    "config",
	"cfg.":   "configuration",
	"pkg":    "package",
	"str":    "string",
	"int":    "integer",
	"bool":   "boolean",
	"repo":   "repository",
	"auth":   "authentication",
	"db":     "database",
	"req":    "request",
	"resp":   "response",
}

// Tokenize runs the full document pipeline: normalize+lowercase, split,
// fold camel/snake/kebab boundaries, drop tokens shorter than 2 bytes,
// drop stop-words, stem, and keep duplicates.
func Tokenize(text string, stopWords map[string]struct{}) []string {
	normalized := strings.ToLower(norm.NFC.String(text))
	words := wordRegex.FindAllString(normalized, -1)

	tokens := make([]string, 0, len(words)*2)
	for _, w := range words {
		for _, sub := range splitIdentifier(w) {
			if len(sub) < 2 {
				continue
			}
			if _, stop := stopWords[sub]; stop {
				continue
			}
			tokens = append(tokens, porter2.Stem(sub))
		}
	}
	return tokens
}

// TokenizeQuery runs the same pipeline and additionally expands
// recognized abbreviations exactly once, before stemming, so that a
// query for "fn" also matches documents containing "function".
func TokenizeQuery(text string, stopWords map[string]struct{}) []string {
	normalized := strings.ToLower(norm.NFC.String(text))
	words := wordRegex.FindAllString(normalized, -1)

	tokens := make([]string, 0, len(words)*2)
	for _, w := range words {
		for _, sub := range splitIdentifier(w) {
			if expanded, ok := abbreviations[sub]; ok {
				sub = expanded
			}
			if len(sub) < 2 {
				continue
			}
			if _, stop := stopWords[sub]; stop {
				continue
			}
			tokens = append(tokens, porter2.Stem(sub))
		}
	}
	return tokens
}

// splitIdentifier folds camelCase, snake_case, and kebab-case boundaries
// within a single already-isolated word, lowercasing each resulting
// piece. Acronym runs ("HTTPHandler") are kept together with a
// lower/upper boundary heuristic.
func splitIdentifier(word string) []string {
	var parts []string
	for _, underscorePart := range strings.Split(word, "_") {
		for _, hyphenPart := range strings.Split(underscorePart, "-") {
			if hyphenPart == "" {
				continue
			}
			parts = append(parts, splitCamelCase(hyphenPart)...)
		}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

func splitCamelCase(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}
