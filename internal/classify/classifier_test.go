package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/classifier-cli/internal/model"
)

func newTestClassifier(t *testing.T, gen Generator, marginThreshold float64) *Classifier {
	t.Helper()
	s := NewScorer(buildTestIndex(t, nil), DefaultWeights())
	sel := NewSelector(s, 5, 5, 5, marginThreshold)
	return New(s, sel, NewArbiter(gen, 0))
}

func TestClassify_UnambiguousSkipsArbiter(t *testing.T) {
	gen := &stubGenerator{response: `{"choice": 1, "confidence": 0.9, "reason": "x"}`}
	c := newTestClassifier(t, gen, 0.0001)

	res, err := c.Classify(context.Background(), model.CompanyText{
		CompanyKey: "clinicco",
		Body:       "outpatient clinics and physician offices caring for patients",
	})
	require.NoError(t, err)

	assert.Equal(t, "Clinics", res.SubIndustry)
	assert.Equal(t, "Healthcare", res.Sector)
	assert.Equal(t, "8011", res.Code)
	assert.False(t, res.Arbitrated)
	assert.Empty(t, gen.prompts, "arbiter must not be called above the margin threshold")
	assert.False(t, res.DecidedAt.IsZero())
}

func TestClassify_AmbiguousInvokesArbiter(t *testing.T) {
	gen := &stubGenerator{response: `{"choice": 2, "confidence": 0.7, "reason": "clinical focus"}`}
	c := newTestClassifier(t, gen, 0.99)

	res, err := c.Classify(context.Background(), model.CompanyText{
		CompanyKey: "acme",
		Body:       "cloud software platform for clinics",
	})
	require.NoError(t, err)

	require.NotEmpty(t, gen.prompts)
	assert.True(t, res.Arbitrated)
	assert.Equal(t, "clinical focus", res.ArbiterReason)
	assert.InDelta(t, 0.7, res.Confidence, 1e-9)
}

func TestClassify_ArbiterOutOfRangeFallsBackToMechanicalPick(t *testing.T) {
	gen := &stubGenerator{response: `{"choice": 99, "confidence": 0.9, "reason": "x"}`}
	c := newTestClassifier(t, gen, 0.99)

	company := model.CompanyText{
		CompanyKey: "acme",
		Body:       "cloud software platform for clinics",
	}
	res, err := c.Classify(context.Background(), company)
	require.NoError(t, err)

	// Mechanical winner, computed independently.
	s := NewScorer(buildTestIndex(t, nil), DefaultWeights())
	sel := NewSelector(s, 5, 5, 5, 0.99)
	q, err := s.NewQuery(context.Background(), company)
	require.NoError(t, err)
	sl, err := sel.Select(q)
	require.NoError(t, err)

	assert.False(t, res.Arbitrated)
	assert.Equal(t, sl.Finalists[0].Entry.SubIndustry, res.SubIndustry)
	assert.Contains(t, res.FallbackReason, "choice 99")
}

func TestClassify_EmptyTextErrors(t *testing.T) {
	c := newTestClassifier(t, nil, 0.05)
	_, err := c.Classify(context.Background(), model.CompanyText{CompanyKey: "ghost"})
	assert.ErrorIs(t, err, ErrUnclassifiable)
}

func TestClassify_AlternativesExcludeWinnerSortedDescending(t *testing.T) {
	c := newTestClassifier(t, nil, 0.0001)

	res, err := c.Classify(context.Background(), model.CompanyText{
		CompanyKey: "acme",
		Body:       "cloud software services for information technology and healthcare clinics",
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, len(res.Alternatives), 5)
	for _, alt := range res.Alternatives {
		assert.NotEqual(t, res.SubIndustry, alt.SubIndustry)
	}
	for i := 1; i < len(res.Alternatives); i++ {
		assert.GreaterOrEqual(t, res.Alternatives[i-1].Score, res.Alternatives[i].Score)
	}
}
