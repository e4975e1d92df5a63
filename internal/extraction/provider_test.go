package extraction

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestCompanyText_AssemblesBodyAndExcerpts(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "acme", "sources")
	writeSource(t, dir, "about.json", `{
		"url": "https://acme.com/about",
		"title": "About Acme",
		"type": "webpage",
		"text": "Acme builds cloud software for clinics.",
		"description": "Cloud software for healthcare"
	}`)
	writeSource(t, dir, "contact.json", `{
		"url": "https://acme.com/contact",
		"title": "Contact us",
		"type": "webpage",
		"text": "Reach us by phone or email."
	}`)

	p := NewFilesystemProvider(root)
	company, sources, err := p.CompanyText(context.Background(), "acme")
	require.NoError(t, err)

	assert.Equal(t, "acme", company.CompanyKey)
	assert.Contains(t, company.Body, "cloud software for clinics")
	assert.Contains(t, company.Body, "phone or email")

	// The about page outranks the contact page, so its text leads the body.
	assert.Less(t,
		strings.Index(company.Body, "cloud software"),
		strings.Index(company.Body, "phone or email"))

	labels := make(map[string]int)
	for _, e := range company.Excerpts {
		labels[e.Label]++
	}
	assert.Equal(t, 2, labels["title"])
	assert.Equal(t, 1, labels["description"])

	require.Len(t, sources, 2)
	assert.Equal(t, "about.json", sources[0].Name)
	assert.False(t, sources[0].ModTime.IsZero())
}

func TestCompanyText_UnknownCompany(t *testing.T) {
	p := NewFilesystemProvider(t.TempDir())
	_, _, err := p.CompanyText(context.Background(), "nobody")
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestCompanyText_SkipsMalformedDocuments(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "acme", "sources")
	writeSource(t, dir, "good.json", `{"url":"https://acme.com/","title":"Acme","text":"Cloud software."}`)
	writeSource(t, dir, "bad.json", `{not json`)

	p := NewFilesystemProvider(root)
	company, sources, err := p.CompanyText(context.Background(), "acme")
	require.NoError(t, err)

	assert.Contains(t, company.Body, "Cloud software")
	// Malformed files still count toward the fingerprint inventory.
	assert.Len(t, sources, 2)
}

func TestCompanyText_IgnoresNonJSONFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "acme", "sources")
	writeSource(t, dir, "doc.json", `{"url":"https://acme.com/","title":"Acme","text":"Cloud software."}`)
	writeSource(t, dir, "raw.html", `<html></html>`)

	p := NewFilesystemProvider(root)
	_, sources, err := p.CompanyText(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "doc.json", sources[0].Name)
}

func TestCompanyText_FingerprintInputsTrackModTime(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "acme", "sources")
	writeSource(t, dir, "doc.json", `{"text":"cloud"}`)

	p := NewFilesystemProvider(root)
	_, before, err := p.CompanyText(context.Background(), "acme")
	require.NoError(t, err)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "doc.json"), later, later))

	_, after, err := p.CompanyText(context.Background(), "acme")
	require.NoError(t, err)
	assert.NotEqual(t, before[0].ModTime, after[0].ModTime)
}

func TestCompanyText_NestedSourceURI(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "acme", "sources")
	writeSource(t, dir, "doc.json", `{"source":{"uri":"https://acme.com/about"},"title":"About","text":"We build software."}`)

	p := NewFilesystemProvider(root)
	company, _, err := p.CompanyText(context.Background(), "acme")
	require.NoError(t, err)
	assert.Contains(t, company.Body, "We build software")
}

func TestCompanyText_BodyCapKeepsValidUTF8(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "acme", "sources")
	writeSource(t, dir, "about.json", `{
		"url": "https://acme.com/about",
		"title": "About",
		"type": "webpage",
		"text": "x`+strings.Repeat("ü", maxBodyChars)+`"
	}`)

	p := NewFilesystemProvider(root)
	company, _, err := p.CompanyText(context.Background(), "acme")
	require.NoError(t, err)

	assert.LessOrEqual(t, len(company.Body), maxBodyChars)
	assert.True(t, utf8.ValidString(company.Body))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abcd", truncateRunes("abcd", 4))
	assert.Equal(t, "ab", truncateRunes("abcd", 2))
	// "ü" is two bytes; an odd cap must not leave half a rune behind.
	assert.Equal(t, "ü", truncateRunes("üü", 3))
}

func TestSourceQuality(t *testing.T) {
	about := sourceQuality("https://acme.com/about", "About Acme", "webpage")
	contact := sourceQuality("https://acme.com/contact", "Contact", "webpage")
	plain := sourceQuality("https://acme.com/x/y/z/deep", "Page", "webpage")

	assert.Greater(t, about, plain)
	assert.Less(t, contact, plain)

	// Bounded above.
	max := sourceQuality("https://acme.com/", "Products overview brochure", "pdf")
	assert.LessOrEqual(t, max, 3.0)
	assert.GreaterOrEqual(t, contact, 0.3*1.2-1e-9)
}
