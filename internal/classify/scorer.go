package classify

import (
	"context"
	"strings"

	"github.com/sells-group/classifier-cli/internal/model"
	"github.com/sells-group/classifier-cli/internal/taxonomy"
)

// Weights are the channel fusion weights. They are renormalized to sum to 1
// before use, so overriding a subset keeps the composite bounded in [0,1].
// Zeroing Keyword and Domain reproduces a pure retrieval classifier.
type Weights struct {
	Lexical  float64
	Semantic float64
	Keyword  float64
	Domain   float64
}

// DefaultWeights are the tuned production weights.
func DefaultWeights() Weights {
	return Weights{Lexical: 0.35, Semantic: 0.30, Keyword: 0.20, Domain: 0.15}
}

// Normalized returns the weights scaled to sum to 1. All-zero weights fall
// back to the defaults.
func (w Weights) Normalized() Weights {
	sum := w.Lexical + w.Semantic + w.Keyword + w.Domain
	if sum <= 0 {
		return DefaultWeights()
	}
	return Weights{
		Lexical:  w.Lexical / sum,
		Semantic: w.Semantic / sum,
		Keyword:  w.Keyword / sum,
		Domain:   w.Domain / sum,
	}
}

// Scorer computes the four-channel composite score for (company, entry)
// pairs against a built taxonomy index.
type Scorer struct {
	index   *taxonomy.Index
	weights Weights
}

// NewScorer binds a scorer to an index with normalized weights.
func NewScorer(index *taxonomy.Index, weights Weights) *Scorer {
	return &Scorer{index: index, weights: weights.Normalized()}
}

// Query is the per-classification-run precomputation over one company's
// text: TF-IDF vectors, embeddings, and the significant-term set. Building
// it once means scoring each entry is a pure in-memory operation.
type Query struct {
	company model.CompanyText

	terms map[string]bool

	bodyVec taxonomy.Vector
	bodyEmb []float64

	excerptText string
	excerptVec  taxonomy.Vector
	excerptEmb  []float64
}

// NewQuery precomputes the scoring inputs for one company. The only blocking
// work is the embedding calls; with no embedder configured they are skipped
// and the semantic channel scores 0.
func (s *Scorer) NewQuery(ctx context.Context, company model.CompanyText) (*Query, error) {
	q := &Query{
		company:     company,
		terms:       taxonomy.SignificantTerms(company.Body),
		bodyVec:     s.index.Vectorize(company.Body),
		excerptText: company.ExcerptText(),
	}

	var err error
	if q.bodyEmb, err = s.index.Embed(ctx, company.Body); err != nil {
		return nil, err
	}
	if q.excerptText != "" {
		q.excerptVec = s.index.Vectorize(q.excerptText)
		if q.excerptEmb, err = s.index.Embed(ctx, q.excerptText); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// Score produces the Candidate for the i-th index entry. Every channel is
// bounded in [0,1] and the weights sum to 1, so the composite is bounded too.
func (s *Scorer) Score(q *Query, i int) model.Candidate {
	entry := s.index.Entries()[i]

	c := model.Candidate{Entry: entry}
	if q.company.Empty() {
		return c
	}

	c.Lexical = s.index.LexicalSimilarity(q.bodyVec, i)
	c.Semantic = s.index.SemanticSimilarity(q.bodyEmb, i)
	c.Keyword = keywordOverlap(entry.Description(), q.terms)
	c.Domain = s.domainSignal(q, i)

	c.Composite = s.weights.Lexical*c.Lexical +
		s.weights.Semantic*c.Semantic +
		s.weights.Keyword*c.Keyword +
		s.weights.Domain*c.Domain
	return c
}

// keywordOverlap is the fraction of the entry description's significant
// terms found verbatim in the company term set.
func keywordOverlap(description string, companyTerms map[string]bool) float64 {
	labelTerms := taxonomy.SignificantTerms(description)
	if len(labelTerms) == 0 {
		return 0
	}
	matches := 0
	for term := range labelTerms {
		if companyTerms[term] {
			matches++
		}
	}
	return float64(matches) / float64(len(labelTerms))
}

// domainSignal scores the entry against the high-value excerpts only. With
// embeddings available it blends lexical and semantic similarity evenly;
// without them it is purely lexical. The curated keyword lexicon can lift
// the channel when its terms appear in the excerpts. No excerpts means 0.
func (s *Scorer) domainSignal(q *Query, i int) float64 {
	if q.excerptText == "" {
		return 0
	}

	sim := s.index.LexicalSimilarity(q.excerptVec, i)
	if q.excerptEmb != nil {
		sim = 0.5*sim + 0.5*s.index.SemanticSimilarity(q.excerptEmb, i)
	}

	if lex := s.index.Lexicon(); lex != nil {
		entry := s.index.Entries()[i]
		signal := lex.Signal(q.excerptText, entry.Sector, taxonomy.LevelSector)
		if ind := lex.Signal(q.excerptText, entry.Industry, taxonomy.LevelIndustry); ind > signal {
			signal = ind
		}
		if signal > sim {
			sim = signal
		}
	}
	return sim
}

// genericTerms are label words too common to indicate specificity.
var genericTerms = map[string]bool{
	"app": true, "software": true, "service": true, "services": true,
	"development": true, "system": true, "systems": true, "solution": true,
	"solutions": true, "management": true, "platform": true,
	"technology": true, "technologies": true, "product": true, "products": true,
}

// Specificity scores how specific a sub-industry label is relative to the
// company text, used only to break exact composite-score ties in favor of
// narrow labels over catch-alls. Blends label length, the share of
// non-generic label words, and label-word overlap with the company text.
func Specificity(entry model.TaxonomyEntry, companyText string) float64 {
	labelWords := strings.Fields(strings.ToLower(entry.SubIndustry))
	if len(labelWords) == 0 {
		return 0
	}
	textWords := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(companyText)) {
		textWords[w] = true
	}

	lengthScore := float64(len(labelWords)) / 3.0
	if lengthScore > 1 {
		lengthScore = 1
	}

	specific, overlap := 0, 0
	for _, w := range labelWords {
		if !genericTerms[w] {
			specific++
		}
		if textWords[w] {
			overlap++
		}
	}
	n := float64(len(labelWords))
	return 0.4*lengthScore + 0.3*float64(specific)/n + 0.3*float64(overlap)/n
}
