package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/classifier-cli/internal/model"
	"github.com/sells-group/classifier-cli/internal/taxonomy"
)

var scoringEntries = []model.TaxonomyEntry{
	{Sector: "Information Technology", Industry: "Software & Services", SubIndustry: "Cloud Computing", Code: "7372", CodeDescription: "Prepackaged Software"},
	{Sector: "Information Technology", Industry: "Software & Services", SubIndustry: "Enterprise Software", Code: "7371", CodeDescription: "Computer Programming Services"},
	{Sector: "Healthcare", Industry: "Services", SubIndustry: "Clinics", Code: "8011", CodeDescription: "Offices of Physicians"},
}

func buildTestIndex(t *testing.T, embedder taxonomy.Embedder) *taxonomy.Index {
	t.Helper()
	ix, err := taxonomy.BuildIndex(context.Background(), scoringEntries, embedder, nil)
	require.NoError(t, err)
	return ix
}

func TestWeights_NormalizedSumsToOne(t *testing.T) {
	w := Weights{Lexical: 2, Semantic: 1, Keyword: 1, Domain: 0}.Normalized()
	assert.InDelta(t, 1.0, w.Lexical+w.Semantic+w.Keyword+w.Domain, 1e-9)
	assert.InDelta(t, 0.5, w.Lexical, 1e-9)
}

func TestWeights_AllZeroFallsBackToDefaults(t *testing.T) {
	assert.Equal(t, DefaultWeights(), Weights{}.Normalized())
}

func TestWeights_DefaultsAlreadyNormalized(t *testing.T) {
	w := DefaultWeights()
	assert.InDelta(t, 1.0, w.Lexical+w.Semantic+w.Keyword+w.Domain, 1e-9)
}

func TestScore_CompositeBounded(t *testing.T) {
	s := NewScorer(buildTestIndex(t, nil), DefaultWeights())
	q, err := s.NewQuery(context.Background(), model.CompanyText{
		CompanyKey: "acme",
		Body:       "cloud software platform for clinics and physicians",
		Excerpts:   []model.Excerpt{{Label: "title", Text: "Cloud platform", Weight: 2}},
	})
	require.NoError(t, err)

	for i := range scoringEntries {
		c := s.Score(q, i)
		assert.GreaterOrEqual(t, c.Composite, 0.0)
		assert.LessOrEqual(t, c.Composite, 1.0)
		for _, ch := range []float64{c.Lexical, c.Semantic, c.Keyword, c.Domain} {
			assert.GreaterOrEqual(t, ch, 0.0)
			assert.LessOrEqual(t, ch, 1.0)
		}
	}
}

func TestScore_EmptyCompanyTextAllZero(t *testing.T) {
	s := NewScorer(buildTestIndex(t, nil), DefaultWeights())
	q, err := s.NewQuery(context.Background(), model.CompanyText{CompanyKey: "empty"})
	require.NoError(t, err)

	for i := range scoringEntries {
		c := s.Score(q, i)
		assert.Zero(t, c.Composite)
		assert.Zero(t, c.Lexical)
		assert.Zero(t, c.Semantic)
		assert.Zero(t, c.Keyword)
		assert.Zero(t, c.Domain)
	}
}

func TestScore_NoExcerptsDomainZero(t *testing.T) {
	s := NewScorer(buildTestIndex(t, nil), DefaultWeights())
	q, err := s.NewQuery(context.Background(), model.CompanyText{
		CompanyKey: "acme",
		Body:       "cloud computing software",
	})
	require.NoError(t, err)

	for i := range scoringEntries {
		assert.Zero(t, s.Score(q, i).Domain)
	}
}

func TestScore_ExcerptMatchLiftsDomainChannel(t *testing.T) {
	s := NewScorer(buildTestIndex(t, nil), DefaultWeights())

	with, err := s.NewQuery(context.Background(), model.CompanyText{
		CompanyKey: "acme",
		Body:       "we sell widgets",
		Excerpts:   []model.Excerpt{{Label: "title", Text: "Cloud computing software", Weight: 2}},
	})
	require.NoError(t, err)

	c := s.Score(with, 0)
	assert.Greater(t, c.Domain, 0.0)
}

func TestScore_LexiconSignalCountsForDomain(t *testing.T) {
	lex := &taxonomy.Lexicon{Sectors: map[string][]string{
		"Healthcare": {"patient", "clinic"},
	}}
	ix, err := taxonomy.BuildIndex(context.Background(), scoringEntries, nil, lex)
	require.NoError(t, err)
	s := NewScorer(ix, DefaultWeights())

	q, err := s.NewQuery(context.Background(), model.CompanyText{
		CompanyKey: "clinicco",
		Body:       "irrelevant body",
		Excerpts:   []model.Excerpt{{Label: "title", Text: "Patient management for every clinic", Weight: 2}},
	})
	require.NoError(t, err)

	// Both lexicon terms match the excerpt, so the Healthcare entry's domain
	// channel reaches the full lexicon signal.
	assert.GreaterOrEqual(t, s.Score(q, 2).Domain, 1.0-1e-9)
}

func TestScore_KeywordOverlapFraction(t *testing.T) {
	s := NewScorer(buildTestIndex(t, nil), Weights{Keyword: 1})
	q, err := s.NewQuery(context.Background(), model.CompanyText{
		CompanyKey: "acme",
		Body:       "clinics physicians healthcare services offices",
	})
	require.NoError(t, err)

	clinic := s.Score(q, 2)
	cloud := s.Score(q, 0)
	assert.Greater(t, clinic.Keyword, cloud.Keyword)
	assert.Equal(t, clinic.Keyword, clinic.Composite)
}

func TestSpecificity_FavorsSpecificLabels(t *testing.T) {
	generic := model.TaxonomyEntry{SubIndustry: "Software"}
	specific := model.TaxonomyEntry{SubIndustry: "Business and Domestic Software"}
	text := "we build business and domestic software for households"

	assert.Greater(t, Specificity(specific, text), Specificity(generic, text))
}

func TestSpecificity_EmptyLabel(t *testing.T) {
	assert.Zero(t, Specificity(model.TaxonomyEntry{}, "anything"))
}
