// Package taxonomy loads the Sector → Industry → Sub-Industry reference
// dataset and builds the lexical and semantic lookup structures used by the
// classification engine.
package taxonomy

import "github.com/rotisserie/eris"

// ErrEmptyTaxonomy is returned when the reference dataset contains no usable
// entries. Fatal at startup; not recoverable per-request.
var ErrEmptyTaxonomy = eris.New("taxonomy: no entries loaded")
