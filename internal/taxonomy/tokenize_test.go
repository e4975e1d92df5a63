package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize_Basic(t *testing.T) {
	tokens := Tokenize("Cloud-based CRM software for small businesses")
	assert.Equal(t, []string{"cloud", "based", "crm", "software", "small", "businesses"}, tokens)
}

func TestTokenize_DropsStopwordsAndShortTokens(t *testing.T) {
	tokens := Tokenize("the AI of it is in a box")
	// "ai", "of", "it", "is", "in", "a" are too short or stopwords.
	assert.Equal(t, []string{"box"}, tokens)
}

func TestTokenize_FoldsDiacritics(t *testing.T) {
	assert.Equal(t, []string{"cafe", "resume"}, Tokenize("café résumé"))
}

func TestTokenize_Empty(t *testing.T) {
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("  !!! ## "))
}

func TestSignificantTerms_Dedupes(t *testing.T) {
	terms := SignificantTerms("software software SOFTWARE platform")
	assert.Len(t, terms, 2)
	assert.True(t, terms["software"])
	assert.True(t, terms["platform"])
}

func TestNgrams_UnigramsAndBigrams(t *testing.T) {
	got := ngrams([]string{"cloud", "hosting", "services"})
	assert.Equal(t, []string{
		"cloud", "hosting", "services",
		"cloud hosting", "hosting services",
	}, got)
}

func TestNgrams_SingleToken(t *testing.T) {
	assert.Equal(t, []string{"cloud"}, ngrams([]string{"cloud"}))
}
