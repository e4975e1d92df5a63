package taxonomy

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var lexiconYAML []byte

// LexiconLevel selects which keyword dictionary a domain signal is computed
// against.
type LexiconLevel string

const (
	LevelSector   LexiconLevel = "sector"
	LevelIndustry LexiconLevel = "industry"
)

// Lexicon maps sector and industry labels to curated domain terms. A label
// absent from the lexicon always signals 0; the dictionaries are a precision
// boost, not a coverage requirement.
type Lexicon struct {
	Sectors    map[string][]string `yaml:"sectors"`
	Industries map[string][]string `yaml:"industries"`
}

// DefaultLexicon parses the embedded keyword dictionaries.
func DefaultLexicon() (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(lexiconYAML, &lex); err != nil {
		return nil, eris.Wrap(err, "taxonomy: parse embedded lexicon")
	}
	return &lex, nil
}

// Signal returns the fraction of the label's lexicon terms found in text,
// in [0,1]. Matching is substring containment over normalized text, so
// multi-word terms like "data center" match across token boundaries.
func (l *Lexicon) Signal(text, label string, level LexiconLevel) float64 {
	var terms []string
	switch level {
	case LevelSector:
		terms = l.Sectors[label]
	case LevelIndustry:
		terms = l.Industries[label]
	}
	if len(terms) == 0 {
		return 0
	}

	// Pad with spaces so single-token terms match whole tokens only.
	haystack := " " + collapse(normalize(text)) + " "
	matches := 0
	for _, term := range terms {
		if strings.Contains(haystack, " "+collapse(normalize(term))+" ") {
			matches++
		}
	}
	return float64(matches) / float64(len(terms))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
