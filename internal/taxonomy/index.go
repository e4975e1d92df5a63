package taxonomy

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/classifier-cli/internal/model"
)

// embedConcurrency bounds parallel embedding calls during index build.
const embedConcurrency = 8

// Embedder produces a dense vector for a text. Implementations wrap an
// embedding API; a nil Embedder disables the semantic channel entirely.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Index holds the taxonomy entries together with their precomputed lexical
// vectors and (optionally) dense embeddings. Entry order is fixed at build
// time: position i in Entries() corresponds to position i in every similarity
// lookup for the lifetime of the index.
type Index struct {
	entries    []model.TaxonomyEntry
	vectorizer *Vectorizer
	vectors    []Vector
	embeddings [][]float64
	lexicon    *Lexicon
	embedder   Embedder
}

// BuildIndex fits the TF-IDF model over the entry descriptions and, when an
// embedder is supplied, embeds every description up front so classification
// requests only pay for embedding the company text.
func BuildIndex(ctx context.Context, entries []model.TaxonomyEntry, embedder Embedder, lexicon *Lexicon) (*Index, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyTaxonomy
	}

	docs := make([]string, len(entries))
	for i, e := range entries {
		docs[i] = e.Description()
	}

	ix := &Index{
		entries:    entries,
		vectorizer: FitVectorizer(docs),
		vectors:    make([]Vector, len(entries)),
		lexicon:    lexicon,
		embedder:   embedder,
	}
	for i, doc := range docs {
		ix.vectors[i] = ix.vectorizer.Transform(doc)
	}

	if embedder != nil {
		ix.embeddings = make([][]float64, len(entries))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(embedConcurrency)
		for i := range docs {
			g.Go(func() error {
				emb, err := embedder.Embed(gctx, docs[i])
				if err != nil {
					return eris.Wrapf(err, "taxonomy: embed entry %s", entries[i].Path())
				}
				ix.embeddings[i] = emb
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	zap.L().Info("taxonomy index built",
		zap.Int("entries", len(entries)),
		zap.Int("vocabulary", len(ix.vectorizer.vocab)),
		zap.Bool("embeddings", embedder != nil))
	return ix, nil
}

// Entries returns the indexed taxonomy in build order. Callers must not
// mutate the returned slice.
func (ix *Index) Entries() []model.TaxonomyEntry { return ix.entries }

// Lexicon returns the domain keyword dictionaries bound at build time.
func (ix *Index) Lexicon() *Lexicon { return ix.lexicon }

// Vectorize maps company text into the fitted TF-IDF space.
func (ix *Index) Vectorize(text string) Vector {
	return ix.vectorizer.Transform(text)
}

// LexicalSimilarity returns the cosine similarity between a company vector
// and the i-th entry's vector.
func (ix *Index) LexicalSimilarity(companyVec Vector, i int) float64 {
	return Cosine(companyVec, ix.vectors[i])
}

// Embed produces the dense embedding for company text, or (nil, nil) when no
// embedder is configured.
func (ix *Index) Embed(ctx context.Context, text string) ([]float64, error) {
	if ix.embedder == nil {
		return nil, nil
	}
	emb, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, eris.Wrap(err, "taxonomy: embed company text")
	}
	return emb, nil
}

// SemanticSimilarity returns the cosine similarity between a company
// embedding and the i-th entry's embedding, clamped to [0,1]. Returns 0 when
// embeddings are unavailable on either side.
func (ix *Index) SemanticSimilarity(companyEmb []float64, i int) float64 {
	if companyEmb == nil || ix.embeddings == nil || ix.embeddings[i] == nil {
		return 0
	}
	return cosineDense(companyEmb, ix.embeddings[i])
}

// TopK returns the indices of the k entries closest to the query under a
// 50/50 blend of lexical and semantic similarity. It is a rough prefilter
// for bounding a search space, not a substitute for full channel scoring.
// Equal blends keep build order, so results are deterministic.
func (ix *Index) TopK(ctx context.Context, text string, k int) ([]int, error) {
	if k <= 0 || len(ix.entries) == 0 {
		return nil, nil
	}

	vec := ix.Vectorize(text)
	emb, err := ix.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	blends := make([]float64, len(ix.entries))
	for i := range ix.entries {
		blends[i] = 0.5*ix.LexicalSimilarity(vec, i) + 0.5*ix.SemanticSimilarity(emb, i)
	}

	order := make([]int, len(ix.entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return blends[order[a]] > blends[order[b]] })

	if k > len(order) {
		k = len(order)
	}
	return order[:k], nil
}

func cosineDense(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
