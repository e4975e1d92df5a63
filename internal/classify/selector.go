package classify

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/classifier-cli/internal/model"
)

// Selector narrows the full taxonomy to a final candidate list through three
// progressively specific passes: sectors, industries, then individual
// sub-industry entries. Narrowing is fully deterministic; only arbitration
// introduces external non-determinism.
type Selector struct {
	scorer          *Scorer
	topSectors      int
	topIndustries   int
	topFinalists    int
	marginThreshold float64
}

// NewSelector builds a selector. Non-positive limits fall back to 5 and a
// non-positive margin threshold to 0.05.
func NewSelector(scorer *Scorer, topSectors, topIndustries, topFinalists int, marginThreshold float64) *Selector {
	if topSectors <= 0 {
		topSectors = 5
	}
	if topIndustries <= 0 {
		topIndustries = 5
	}
	if topFinalists <= 0 {
		topFinalists = 5
	}
	if marginThreshold <= 0 {
		marginThreshold = 0.05
	}
	return &Selector{
		scorer:          scorer,
		topSectors:      topSectors,
		topIndustries:   topIndustries,
		topFinalists:    topFinalists,
		marginThreshold: marginThreshold,
	}
}

// Shortlist is the outcome of the three narrowing passes: the ranked finalist
// candidates and the confidence margin between the top two.
type Shortlist struct {
	// Finalists are sorted by composite score descending, at most the
	// configured finalist limit. Never empty on a nil error.
	Finalists []model.Candidate
	// Margin is top1−top2 composite; for a single finalist it equals the
	// top composite.
	Margin float64
	// Ambiguous marks a margin below the threshold, deferring the decision
	// to the arbiter.
	Ambiguous bool
	// Sectors and Industries are the per-pass survivors, exposed for
	// logging and tests.
	Sectors    []string
	Industries []string
}

// Select runs the three narrowing passes over a precomputed query. Returns
// ErrUnclassifiable when every candidate scores 0 and ErrNoSurvivors when a
// pass pathologically eliminates everything.
func (s *Selector) Select(q *Query) (*Shortlist, error) {
	entries := s.scorer.index.Entries()
	candidates := make([]model.Candidate, len(entries))
	best := 0.0
	for i := range entries {
		candidates[i] = s.scorer.Score(q, i)
		if candidates[i].Composite > best {
			best = candidates[i].Composite
		}
	}
	if best == 0 {
		return nil, ErrUnclassifiable
	}

	// Pass 1: rank sectors by the max composite of their member entries.
	sectors := topGroups(candidates, s.topSectors, func(c model.Candidate) string {
		return c.Entry.Sector
	})
	if len(sectors) == 0 {
		return nil, ErrNoSurvivors
	}
	sectorSet := toSet(sectors)

	// Pass 2: rank industries under the surviving sectors.
	var pool []model.Candidate
	for _, c := range candidates {
		if sectorSet[c.Entry.Sector] {
			pool = append(pool, c)
		}
	}
	industries := topGroups(pool, s.topIndustries, func(c model.Candidate) string {
		return c.Entry.Industry
	})
	if len(industries) == 0 {
		return nil, ErrNoSurvivors
	}
	industrySet := toSet(industries)

	// Pass 3: individual entries under the surviving industries, ranked by
	// composite with the specificity tie-break.
	var finalists []model.Candidate
	for _, c := range pool {
		if industrySet[c.Entry.Industry] {
			finalists = append(finalists, c)
		}
	}
	if len(finalists) == 0 {
		return nil, ErrNoSurvivors
	}
	sort.SliceStable(finalists, func(i, j int) bool {
		if finalists[i].Composite != finalists[j].Composite {
			return finalists[i].Composite > finalists[j].Composite
		}
		return Specificity(finalists[i].Entry, q.company.Body) >
			Specificity(finalists[j].Entry, q.company.Body)
	})
	if len(finalists) > s.topFinalists {
		finalists = finalists[:s.topFinalists]
	}

	margin := finalists[0].Composite
	if len(finalists) > 1 {
		margin = finalists[0].Composite - finalists[1].Composite
	}

	sl := &Shortlist{
		Finalists:  finalists,
		Margin:     margin,
		Ambiguous:  margin < s.marginThreshold,
		Sectors:    sectors,
		Industries: industries,
	}
	zap.L().Debug("narrowing complete",
		zap.String("company", q.company.CompanyKey),
		zap.Strings("sectors", sectors),
		zap.Strings("industries", industries),
		zap.String("top", finalists[0].Entry.Path()),
		zap.Float64("margin", margin),
		zap.Bool("ambiguous", sl.Ambiguous))
	return sl, nil
}

// topGroups ranks the distinct values of key(c) by the max composite among
// their candidates and returns up to limit winners. Ties keep the group that
// appears first in candidate order, so ranking is deterministic.
func topGroups(candidates []model.Candidate, limit int, key func(model.Candidate) string) []string {
	scores := make(map[string]float64)
	var order []string
	for _, c := range candidates {
		k := key(c)
		if _, seen := scores[k]; !seen {
			order = append(order, k)
		}
		if c.Composite > scores[k] {
			scores[k] = c.Composite
		}
	}

	rank := make(map[string]int, len(order))
	for i, k := range order {
		rank[k] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		if scores[order[i]] != scores[order[j]] {
			return scores[order[i]] > scores[order[j]]
		}
		return rank[order[i]] < rank[order[j]]
	})
	if len(order) > limit {
		order = order[:limit]
	}
	return order
}

func toSet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}
