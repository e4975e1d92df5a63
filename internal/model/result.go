package model

import "time"

// Candidate is one taxonomy entry with its per-channel scores from a single
// scoring pass. Composite is a pure function of the four channel scores and
// is never mutated after creation.
type Candidate struct {
	Entry     TaxonomyEntry `json:"entry"`
	Lexical   float64       `json:"lexical_score"`
	Semantic  float64       `json:"semantic_score"`
	Keyword   float64       `json:"keyword_score"`
	Domain    float64       `json:"domain_score"`
	Composite float64       `json:"composite_score"`
}

// Alternative is a runner-up sub-industry with its composite score.
type Alternative struct {
	SubIndustry string  `json:"sub_industry"`
	Score       float64 `json:"composite_score"`
}

// ClassificationResult is the final decision for one company. Immutable once
// produced; owned by the result cache after creation.
type ClassificationResult struct {
	CompanyKey   string        `json:"company_key"`
	Sector       string        `json:"sector"`
	Industry     string        `json:"industry"`
	SubIndustry  string        `json:"sub_industry"`
	Code         string        `json:"sic_code"`
	Confidence   float64       `json:"confidence"`
	Margin       float64       `json:"margin"`
	Alternatives []Alternative `json:"alternatives,omitempty"`

	// Arbitrated is true when the generative arbiter made the final call.
	// FallbackReason is set when arbitration was attempted but rejected.
	Arbitrated     bool   `json:"arbitrated"`
	ArbiterReason  string `json:"arbiter_reason,omitempty"`
	FallbackReason string `json:"fallback_reason,omitempty"`

	DecidedAt time.Time `json:"decided_at"`
}

// JobStatus is the lifecycle state of a classification job for one company key.
type JobStatus string

const (
	StatusNotStarted JobStatus = "not_started"
	StatusPreparing  JobStatus = "preparing"
	StatusReady      JobStatus = "ready"
	StatusError      JobStatus = "error"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == StatusReady || s == StatusError
}

// CacheEntry is one durable row of the result cache. Writes are whole-row
// replacements; the row is never partially updated.
type CacheEntry struct {
	CompanyKey         string    `json:"company_key"`
	JobID              string    `json:"job_id"`
	ResultJSON         string    `json:"result_json,omitempty"`
	SourcesFingerprint string    `json:"sources_fingerprint"`
	Status             JobStatus `json:"status"`
	ErrorMessage       string    `json:"error_message,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
