package classify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/classifier-cli/internal/model"
)

// Classifier ties scoring, narrowing, and arbitration into one decision per
// company. Safe for concurrent use: the underlying index is read-only and
// all per-run state lives in the query.
type Classifier struct {
	scorer   *Scorer
	selector *Selector
	arbiter  *Arbiter
}

// New assembles the classification engine.
func New(scorer *Scorer, selector *Selector, arbiter *Arbiter) *Classifier {
	return &Classifier{scorer: scorer, selector: selector, arbiter: arbiter}
}

// Classify produces the final decision for one company. Empty text and
// zero-scoring text return ErrUnclassifiable; a pathological narrowing pass
// returns ErrNoSurvivors. Arbiter trouble never fails the run — the
// mechanical top pick is used with the fallback reason recorded.
func (c *Classifier) Classify(ctx context.Context, company model.CompanyText) (*model.ClassificationResult, error) {
	if company.Empty() {
		return nil, ErrUnclassifiable
	}

	q, err := c.scorer.NewQuery(ctx, company)
	if err != nil {
		return nil, err
	}
	shortlist, err := c.selector.Select(q)
	if err != nil {
		return nil, err
	}

	winner := shortlist.Finalists[0]
	result := &model.ClassificationResult{
		CompanyKey: company.CompanyKey,
		Margin:     shortlist.Margin,
		Confidence: winner.Composite,
		DecidedAt:  time.Now().UTC(),
	}

	if shortlist.Ambiguous {
		verdict := c.arbiter.Arbitrate(ctx, company, shortlist.Finalists)
		if verdict.Arbitrated {
			winner = shortlist.Finalists[verdict.Choice]
			result.Arbitrated = true
			result.ArbiterReason = verdict.Reason
			result.Confidence = verdict.Confidence
		} else {
			result.FallbackReason = verdict.FallbackReason
		}
	}

	result.Sector = winner.Entry.Sector
	result.Industry = winner.Entry.Industry
	result.SubIndustry = winner.Entry.SubIndustry
	result.Code = winner.Entry.Code
	for _, f := range shortlist.Finalists {
		if f.Entry.Key() == winner.Entry.Key() {
			continue
		}
		result.Alternatives = append(result.Alternatives, model.Alternative{
			SubIndustry: f.Entry.SubIndustry,
			Score:       f.Composite,
		})
	}

	zap.L().Info("company classified",
		zap.String("company", company.CompanyKey),
		zap.String("sub_industry", result.SubIndustry),
		zap.Float64("confidence", result.Confidence),
		zap.Bool("arbitrated", result.Arbitrated))
	return result, nil
}
