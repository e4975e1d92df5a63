// Package classify implements the multi-signal scoring, hierarchical
// narrowing, and confidence-gated arbitration that turn company text into a
// taxonomy decision.
package classify

import "github.com/rotisserie/eris"

// ErrNoSurvivors indicates a narrowing pass eliminated every candidate. This
// signals a taxonomy data-integrity problem, not a normal unclassifiable
// company, and is surfaced as a hard failure.
var ErrNoSurvivors = eris.New("classify: narrowing pass yielded zero candidates")

// ErrUnclassifiable indicates the company text produced a zero composite
// score for every candidate, so no entry can be picked.
var ErrUnclassifiable = eris.New("classify: company text matches no taxonomy entry")
