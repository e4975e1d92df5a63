package model

import "strings"

// TaxonomyEntry is one row of the Sector → Industry → Sub-Industry reference
// taxonomy. Entries are loaded once at startup and immutable thereafter; the
// (Sector, Industry, SubIndustry) triple is unique across the dataset.
type TaxonomyEntry struct {
	Sector          string `json:"sector"`
	Industry        string `json:"industry"`
	SubIndustry     string `json:"sub_industry"`
	Code            string `json:"sic_code"`
	CodeDescription string `json:"sic_description,omitempty"`
}

// Key returns the unique identity of the entry.
func (e TaxonomyEntry) Key() string {
	return e.Sector + "|" + e.Industry + "|" + e.SubIndustry
}

// Path renders the full hierarchy for logs and prompts.
func (e TaxonomyEntry) Path() string {
	return e.Sector + " → " + e.Industry + " → " + e.SubIndustry
}

// Description is the canonical matching text for the entry: the sub-industry
// label enriched with its parents and the industry-code description. The code
// description is repeated so its vocabulary carries extra term frequency.
func (e TaxonomyEntry) Description() string {
	parts := []string{e.SubIndustry, e.Industry, e.Sector}
	if e.CodeDescription != "" {
		parts = append(parts, e.CodeDescription, e.CodeDescription)
	}
	return strings.Join(parts, ". ")
}
