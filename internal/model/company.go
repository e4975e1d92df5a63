package model

import (
	"math"
	"strings"
	"time"
)

// Excerpt is a structurally privileged piece of company text (page title,
// meta description, homepage hero copy). Matches found here are rewarded by
// the domain-signal channel.
type Excerpt struct {
	Label  string  `json:"label"`
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

// CompanyText is the aggregated free text for one company, supplied by the
// extraction collaborator.
type CompanyText struct {
	CompanyKey string    `json:"company_key"`
	Body       string    `json:"body"`
	Excerpts   []Excerpt `json:"excerpts,omitempty"`
}

// ExcerptText joins the high-value excerpts into one scoring string. Each
// excerpt is repeated in proportion to its source-quality weight so text
// from privileged locations carries more term frequency in the domain
// channel. Returns "" when no excerpts are available.
func (c CompanyText) ExcerptText() string {
	if len(c.Excerpts) == 0 {
		return ""
	}
	parts := make([]string, 0, len(c.Excerpts))
	for _, e := range c.Excerpts {
		text := strings.TrimSpace(e.Text)
		if text == "" {
			continue
		}
		for i := 0; i < e.repeats(); i++ {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// repeats maps the excerpt's weight onto a repetition count in 1..3, the
// same bounds the source-quality heuristic produces.
func (e Excerpt) repeats() int {
	n := int(math.Round(e.Weight))
	if n < 1 {
		return 1
	}
	if n > 3 {
		return 3
	}
	return n
}

// Empty reports whether there is no usable text at all.
func (c CompanyText) Empty() bool {
	return strings.TrimSpace(c.Body) == "" && c.ExcerptText() == ""
}

// SourceInput identifies one source document contributing to a company's
// text. Name and ModTime feed the cache fingerprint: any addition, removal,
// or modification of a source changes the fingerprint.
type SourceInput struct {
	Name    string    `json:"name"`
	ModTime time.Time `json:"mtime"`
}
