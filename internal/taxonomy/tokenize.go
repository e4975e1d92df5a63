package taxonomy

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopwords are common English terms excluded from tokenization and from
// keyword-overlap scoring.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"that": true, "the": true, "to": true, "was": true, "will": true,
	"with": true, "this": true, "but": true, "they": true, "have": true,
	"had": true, "what": true, "when": true, "where": true, "who": true,
	"which": true, "or": true, "not": true, "no": true, "all": true,
	"can": true, "also": true, "other": true, "been": true, "their": true,
	"more": true, "than": true, "our": true, "we": true, "you": true,
	"your": true,
}

// foldTransformer strips diacritical marks so "café" tokenizes as "cafe".
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalize lowercases text, folds diacritics, and replaces every
// non-alphanumeric rune with a space.
func normalize(text string) string {
	folded, _, err := transform.String(foldTransformer, text)
	if err != nil {
		folded = text
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// Tokenize splits text into normalized lowercase tokens with stopwords
// removed. Tokens shorter than 3 characters are dropped.
func Tokenize(text string) []string {
	fields := strings.Fields(normalize(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 || stopwords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// SignificantTerms returns the distinct significant tokens of text as a set.
func SignificantTerms(text string) map[string]bool {
	terms := make(map[string]bool)
	for _, tok := range Tokenize(text) {
		terms[tok] = true
	}
	return terms
}

// ngrams returns the unigrams and bigrams of the token sequence. Bigrams are
// joined with a single space, matching the vectorizer vocabulary format.
func ngrams(tokens []string) []string {
	out := make([]string, 0, len(tokens)*2)
	out = append(out, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}
