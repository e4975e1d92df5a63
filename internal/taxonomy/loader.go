package taxonomy

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/classifier-cli/internal/model"
)

// LoadFile reads the taxonomy reference dataset from a .csv or .xlsx file.
// Expected columns (header names matched case-insensitively, surrounding
// whitespace ignored): sector, industry, sub_industry, sic_code,
// sic_description. Rows missing any of the three level labels are skipped;
// duplicate (sector, industry, sub_industry) triples are an error.
func LoadFile(path string) ([]model.TaxonomyEntry, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		return nil, eris.Errorf("taxonomy: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	return parseRows(rows)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "taxonomy: open csv")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "taxonomy: read csv")
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "taxonomy: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("taxonomy: xlsx has no sheets")
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// columnAliases maps accepted header spellings to canonical column names.
var columnAliases = map[string]string{
	"sector":          "sector",
	"industry":        "industry",
	"sub_industry":    "sub_industry",
	"sub industry":    "sub_industry",
	"subindustry":     "sub_industry",
	"sic_code":        "sic_code",
	"sic code":        "sic_code",
	"code":            "sic_code",
	"sic_description": "sic_description",
	"sic description": "sic_description",
}

func parseRows(rows [][]string) ([]model.TaxonomyEntry, error) {
	if len(rows) < 2 {
		return nil, ErrEmptyTaxonomy
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(h))
		if canonical, ok := columnAliases[key]; ok {
			cols[canonical] = i
		}
	}
	for _, required := range []string{"sector", "industry", "sub_industry"} {
		if _, ok := cols[required]; !ok {
			return nil, eris.Errorf("taxonomy: missing required column %q", required)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	seen := make(map[string]bool)
	var entries []model.TaxonomyEntry
	skipped := 0
	for _, row := range rows[1:] {
		e := model.TaxonomyEntry{
			Sector:          cell(row, "sector"),
			Industry:        cell(row, "industry"),
			SubIndustry:     cell(row, "sub_industry"),
			Code:            cell(row, "sic_code"),
			CodeDescription: cell(row, "sic_description"),
		}
		if e.Sector == "" || e.Industry == "" || e.SubIndustry == "" {
			skipped++
			continue
		}
		if seen[e.Key()] {
			return nil, eris.Errorf("taxonomy: duplicate entry %s", e.Path())
		}
		seen[e.Key()] = true
		entries = append(entries, e)
	}

	if len(entries) == 0 {
		return nil, ErrEmptyTaxonomy
	}
	if skipped > 0 {
		zap.L().Warn("taxonomy: skipped incomplete rows", zap.Int("skipped", skipped))
	}
	return entries, nil
}
