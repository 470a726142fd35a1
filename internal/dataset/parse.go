package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/county-factor-map/internal/domain"
	"github.com/xuri/excelize/v2"
)

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// Format identifies the encoding of a dataset resource.
type Format int

const (
	FormatCSV Format = iota
	FormatTSV
	FormatXLSX
)

func (f Format) String() string {
	switch f {
	case FormatTSV:
		return "tsv"
	case FormatXLSX:
		return "xlsx"
	default:
		return "csv"
	}
}

// FormatFromPath infers the format from a file name or URL path. Anything
// that is not .tsv or .xlsx is treated as CSV.
func FormatFromPath(path string) Format {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".tab":
		return FormatTSV
	case ".xlsx":
		return FormatXLSX
	default:
		return FormatCSV
	}
}

// Column names of the tabular dataset, matched case-insensitively.
const (
	colState     = "state"
	colCounty    = "county"
	colPredicted = "predicted_life_expectancy"
	colActual    = "actual_life_expectancy"
)

func factorColumn(slot int) string       { return "factor_" + strconv.Itoa(slot+1) }
func contributionColumn(slot int) string { return "contribution_" + strconv.Itoa(slot+1) }

func requiredColumns() []string {
	cols := []string{colState, colCounty}
	for i := range domain.SlotCount {
		cols = append(cols, factorColumn(i), contributionColumn(i))
	}
	return append(cols, colPredicted, colActual)
}

// Parse reads a dataset in the given format and builds the join table.
func Parse(r io.Reader, format Format) (*Table, error) {
	var (
		rows [][]string
		err  error
	)
	switch format {
	case FormatXLSX:
		rows, err = readXLSX(r)
	case FormatTSV:
		rows, err = readDelimited(r, '\t')
	default:
		rows, err = readDelimited(r, ',')
	}
	if err != nil {
		return nil, err
	}
	return ParseRows(rows)
}

func readDelimited(r io.Reader, comma rune) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read delimited dataset: %w", err)
	}
	return rows, nil
}

// readXLSX reads the first worksheet of a workbook.
func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// ParseRows builds the join table from a header row followed by data rows.
// Rows whose state cannot be resolved or whose county is blank are counted as
// skipped. Factor codes are collected from every data row, in order of first
// appearance, scanning slots 1..3 within a row.
func ParseRows(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, errors.New("dataset is empty: no header row")
	}
	idx, err := indexHeader(rows[0])
	if err != nil {
		return nil, err
	}

	t := newTable(len(rows) - 1)
	seenFactor := make(map[string]bool)

	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		t.stats.Rows++

		rec := domain.CountyRecord{
			State:     field(row, idx[colState]),
			County:    field(row, idx[colCounty]),
			Predicted: parseFloatOrZero(field(row, idx[colPredicted])),
			Actual:    parseFloatOrZero(field(row, idx[colActual])),
		}
		for i := range domain.SlotCount {
			code := field(row, idx[factorColumn(i)])
			rec.Factors[i] = domain.FactorContribution{
				Code:  code,
				Value: parseFloatOrZero(field(row, idx[contributionColumn(i)])),
			}
			if code != "" && !seenFactor[code] {
				seenFactor[code] = true
				t.factors = append(t.factors, code)
			}
		}

		key, ok := domain.NewJoinKey(rec.State, rec.County)
		if !ok {
			t.stats.Skipped++
			continue
		}
		rec.Key = key
		t.put(&rec)
		t.stats.Indexed++
	}

	t.loadedAt = domain.Now()
	return t, nil
}

// indexHeader maps lower-cased column names to positions.
func indexHeader(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns() {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return idx, nil
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// parseFloatOrZero parses a string as a finite float64. Unparseable input,
// NaN, and infinities all read as 0.
func parseFloatOrZero(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
