package taxonomy

import (
	"math"
	"sort"
)

// maxFeatures caps the fitted vocabulary at the most document-frequent terms.
const maxFeatures = 1000

// Vectorizer is a fitted TF-IDF model over a document corpus. Vocabulary
// covers unigrams and bigrams; terms outside the fitted vocabulary are
// silently ignored at query time.
type Vectorizer struct {
	vocab map[string]int // term → column index
	idf   []float64      // per-column inverse document frequency
}

// FitVectorizer builds the vocabulary and IDF weights from the corpus.
func FitVectorizer(docs []string) *Vectorizer {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, term := range ngrams(Tokenize(doc)) {
			if !seen[term] {
				seen[term] = true
				df[term]++
			}
		}
	}

	// Keep the most document-frequent terms; ties broken lexicographically
	// so the fitted vocabulary is deterministic.
	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if df[terms[i]] != df[terms[j]] {
			return df[terms[i]] > df[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > maxFeatures {
		terms = terms[:maxFeatures]
	}
	sort.Strings(terms)

	v := &Vectorizer{vocab: make(map[string]int, len(terms)), idf: make([]float64, len(terms))}
	n := float64(len(docs))
	for i, t := range terms {
		v.vocab[t] = i
		// Smoothed IDF: ln((1+n)/(1+df)) + 1, never zero or negative.
		v.idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}
	return v
}

// Vector is a sparse L2-normalized TF-IDF vector.
type Vector map[int]float64

// Transform vectorizes text with the fitted vocabulary. Unknown terms are
// ignored, never an error. An empty or fully out-of-vocabulary text yields
// an empty vector.
func (v *Vectorizer) Transform(text string) Vector {
	counts := make(map[int]float64)
	for _, term := range ngrams(Tokenize(text)) {
		if col, ok := v.vocab[term]; ok {
			counts[col]++
		}
	}
	var norm float64
	for col, tf := range counts {
		w := tf * v.idf[col]
		counts[col] = w
		norm += w * w
	}
	if norm == 0 {
		return counts
	}
	norm = math.Sqrt(norm)
	for col := range counts {
		counts[col] /= norm
	}
	return counts
}

// Cosine returns the cosine similarity of two normalized sparse vectors,
// clamped to [0,1].
func Cosine(a, b Vector) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for col, w := range a {
		dot += w * b[col]
	}
	if dot < 0 {
		return 0
	}
	if dot > 1 {
		return 1
	}
	return dot
}
