// Package extraction is the boundary to the document-acquisition
// collaborator: it assembles a company's aggregated text, high-value
// excerpts, and source inventory from a filesystem document store.
package extraction

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/classifier-cli/internal/model"
)

// maxBodyChars caps the aggregated body text fed to scoring.
const maxBodyChars = 10000

// sourceDocument is one acquired document under <data_dir>/<key>/sources/.
type sourceDocument struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	Text        string `json:"text"`
	Description string `json:"description"`
	Source      struct {
		URI string `json:"uri"`
	} `json:"source"`
}

func (d sourceDocument) uri() string {
	if d.URL != "" {
		return d.URL
	}
	return d.Source.URI
}

// FilesystemProvider reads company documents written by the acquisition
// pipeline: one JSON file per source under <data_dir>/<company_key>/sources/.
type FilesystemProvider struct {
	dataDir string
}

// NewFilesystemProvider roots a provider at the acquisition output directory.
func NewFilesystemProvider(dataDir string) *FilesystemProvider {
	return &FilesystemProvider{dataDir: dataDir}
}

// CompanyText assembles the aggregated body text (quality-weighted document
// order, capped), the high-value excerpts (titles and meta descriptions),
// and the source inventory for fingerprinting. An unknown company key
// surfaces as an fs.ErrNotExist-wrapped error.
func (p *FilesystemProvider) CompanyText(_ context.Context, companyKey string) (model.CompanyText, []model.SourceInput, error) {
	dir := filepath.Join(p.dataDir, companyKey, "sources")
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return model.CompanyText{}, nil, eris.Wrapf(err, "extraction: read sources for %s", companyKey)
	}

	type weighted struct {
		doc     sourceDocument
		quality float64
	}
	var docs []weighted
	var sources []model.SourceInput

	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return model.CompanyText{}, nil, eris.Wrapf(err, "extraction: stat %s", de.Name())
		}
		sources = append(sources, model.SourceInput{Name: de.Name(), ModTime: info.ModTime()})

		raw, err := os.ReadFile(filepath.Join(dir, de.Name()))
		if err != nil {
			return model.CompanyText{}, nil, eris.Wrapf(err, "extraction: read %s", de.Name())
		}
		var doc sourceDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			zap.L().Warn("skipping malformed source document",
				zap.String("company", companyKey),
				zap.String("file", de.Name()),
				zap.Error(err))
			continue
		}
		docs = append(docs, weighted{doc: doc, quality: sourceQuality(doc.uri(), doc.Title, doc.Type)})
	}

	// Highest-quality documents contribute first, so the body cap trims the
	// noise rather than the signal. Filename breaks quality ties to keep the
	// assembled text deterministic.
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].quality > docs[j].quality })

	company := model.CompanyText{CompanyKey: companyKey}
	var body strings.Builder
	for _, w := range docs {
		if title := strings.TrimSpace(w.doc.Title); title != "" {
			company.Excerpts = append(company.Excerpts, model.Excerpt{
				Label:  "title",
				Text:   title,
				Weight: w.quality,
			})
		}
		if desc := strings.TrimSpace(w.doc.Description); desc != "" {
			company.Excerpts = append(company.Excerpts, model.Excerpt{
				Label:  "description",
				Text:   desc,
				Weight: w.quality,
			})
		}
		if body.Len() < maxBodyChars {
			if body.Len() > 0 {
				body.WriteByte(' ')
			}
			body.WriteString(strings.TrimSpace(w.doc.Text))
		}
	}
	company.Body = truncateRunes(body.String(), maxBodyChars)

	return company, sources, nil
}

// highSignal marks pages describing the core business; lowSignal marks
// navigation and boilerplate pages.
var (
	highSignal = []string{
		"about", "company", "products", "solutions", "services",
		"industries", "what-we-do", "overview", "platform",
		"technology", "features", "capabilities",
	}
	lowSignal = []string{
		"contact", "support", "help", "faq", "careers", "jobs",
		"blog", "news", "press", "privacy", "terms", "legal",
		"cookie", "login", "signup", "register",
	}
	pdfSignal = []string{"brochure", "datasheet", "guide", "whitepaper", "overview"}
)

// sourceQuality scores a document's relevance to classification in
// [0.3, 3.0]: core-business pages boosted, navigation noise penalized,
// informative PDFs and homepages slightly lifted.
func sourceQuality(uri, title, docType string) float64 {
	quality := 1.0
	text := strings.ToLower(uri + " " + title)

	if containsAny(text, highSignal) {
		quality *= 2.0
	}
	if containsAny(text, lowSignal) {
		quality *= 0.3
	}
	if docType == "pdf" && containsAny(text, pdfSignal) {
		quality *= 1.5
	}
	if strings.HasSuffix(uri, "/") || strings.Contains(uri, "/index.") || strings.Count(uri, "/") <= 3 {
		quality *= 1.2
	}

	if quality > 3.0 {
		quality = 3.0
	}
	return quality
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
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
