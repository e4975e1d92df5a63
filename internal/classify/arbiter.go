package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/classifier-cli/internal/model"
)

// maxPromptText caps how much company text is quoted in the arbiter prompt.
const maxPromptText = 4000

// Generator produces a completion for a prompt. Implementations wrap a
// generative-model API (Anthropic or a local Ollama model).
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Verdict is the arbiter's outcome. When Arbitrated is false the caller must
// use the mechanical top candidate; FallbackReason records why.
type Verdict struct {
	Choice         int // index into the finalist slice
	Confidence     float64
	Reason         string
	Arbitrated     bool
	FallbackReason string
}

// Arbiter breaks near-ties among the top finalists with a generative-model
// judgment. It is a pure function of (company text, finalists) apart from the
// outbound model call, and never selects outside the supplied finalist set.
type Arbiter struct {
	gen     Generator
	timeout time.Duration
}

// NewArbiter wraps a generator. A nil generator disables arbitration: every
// call falls back to the mechanical pick.
func NewArbiter(gen Generator, timeout time.Duration) *Arbiter {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Arbiter{gen: gen, timeout: timeout}
}

// Arbitrate asks the generator to pick one finalist. Any failure — transport,
// timeout, malformed response, out-of-range choice — degrades to a fallback
// verdict rather than an error.
func (a *Arbiter) Arbitrate(ctx context.Context, company model.CompanyText, finalists []model.Candidate) Verdict {
	if a.gen == nil {
		return fallback(company.CompanyKey, "no arbiter provider configured")
	}
	if len(finalists) == 0 {
		return fallback(company.CompanyKey, "empty finalist list")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.gen.Generate(ctx, buildPrompt(company, finalists))
	if err != nil {
		return fallback(company.CompanyKey, "generation failed: "+err.Error())
	}

	var resp struct {
		Choice     int     `json:"choice"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return fallback(company.CompanyKey, "unparsable response: "+err.Error())
	}
	if resp.Choice < 1 || resp.Choice > len(finalists) {
		return fallback(company.CompanyKey, fmt.Sprintf("choice %d outside 1..%d", resp.Choice, len(finalists)))
	}

	conf := resp.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return Verdict{
		Choice:     resp.Choice - 1,
		Confidence: conf,
		Reason:     strings.TrimSpace(resp.Reason),
		Arbitrated: true,
	}
}

func fallback(companyKey, reason string) Verdict {
	zap.L().Warn("arbiter fallback to mechanical pick",
		zap.String("company", companyKey),
		zap.String("reason", reason))
	return Verdict{FallbackReason: reason}
}

func buildPrompt(company model.CompanyText, finalists []model.Candidate) string {
	var b strings.Builder
	b.WriteString("You are classifying a company into an industry taxonomy.\n\n")
	b.WriteString("Company description:\n")

	text := company.Body
	if excerpt := company.ExcerptText(); excerpt != "" {
		text = excerpt + "\n" + text
	}
	text = truncateRunes(text, maxPromptText)
	b.WriteString(text)

	b.WriteString("\n\nCandidate classifications:\n")
	for i, c := range finalists {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, c.Entry.Path(), c.Entry.CodeDescription)
	}

	fmt.Fprintf(&b, "\nPick the single best candidate. Respond with ONLY a JSON object, no other text:\n"+
		`{"choice": <number 1-%d>, "confidence": <0.0-1.0>, "reason": "<one sentence>"}`+"\n", len(finalists))
	return b.String()
}

// truncateRunes caps s at limit bytes without splitting a multi-byte rune.
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// extractJSON pulls the first JSON object out of a response that may be
// wrapped in prose or a markdown code fence.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return raw
	}
	return raw[start : end+1]
}
