package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

// SampleRowLimit caps the rows read from built-in sample datasets.
const SampleRowLimit = 50000

// sampleFiles maps each domain to its bundled dataset.
var sampleFiles = map[domain.DomainID]string{
	domain.CreditCard:        "creditcard.csv",
	domain.LoanApplication:   "loan_application.csv",
	domain.MobileTransaction: "mobile.csv",
}

// missingTokens are cell values treated as missing.
var missingTokens = map[string]bool{
	"": true, "NA": true, "N/A": true, "NaN": true, "nan": true,
	"null": true, "NULL": true, "None": true, "#N/A": true, "<NA>": true,
}

// SampleFile returns the file name of the sample dataset for id.
func SampleFile(id domain.DomainID) (string, error) {
	name, ok := sampleFiles[id]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownDomain, id)
	}
	return name, nil
}

// LoadSample reads the bundled dataset for id from dir, keeping at most
// limit rows. limit <= 0 uses SampleRowLimit.
func LoadSample(dir string, id domain.DomainID, limit int) (*Table, error) {
	name, err := SampleFile(id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = SampleRowLimit
	}
	return LoadFile(filepath.Join(dir, name), limit)
}

// LoadFile reads a CSV or XLSX file. limit <= 0 reads every row.
func LoadFile(path string, limit int) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDatasetNotFound, path)
		}
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Load(filepath.Base(path), f, limit)
}

// Load reads a dataset from r, choosing the format from name's extension.
// Anything that is not .xlsx is parsed as CSV.
func Load(name string, r io.Reader, limit int) (*Table, error) {
	start := time.Now()
	var (
		t   *Table
		err error
	)
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		t, err = LoadXLSX(r, limit)
	} else {
		t, err = LoadCSV(r, limit)
	}
	if err != nil {
		return nil, err
	}
	slog.Debug("dataset loaded",
		"name", name,
		"rows", t.Len(),
		"columns", len(t.cols),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return t, nil
}

// LoadCSV parses CSV with a header row. limit <= 0 reads every row.
func LoadCSV(r io.Reader, limit int) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.ErrEmptyDataset
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var rows [][]string
	for limit <= 0 || len(rows) < limit {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(rows)+2, err)
		}
		rows = append(rows, rec)
	}
	return fromStrings(header, rows)
}

// LoadXLSX reads the first sheet of a workbook. limit <= 0 reads every row.
func LoadXLSX(r io.Reader, limit int) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.ErrEmptyDataset
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrEmptyDataset
	}
	body := rows[1:]
	if limit > 0 && len(body) > limit {
		body = body[:limit]
	}
	return fromStrings(rows[0], body)
}

// fromStrings infers a type per column: numeric if every present cell
// parses as a number, boolean if every present cell is True/False,
// otherwise text.
func fromStrings(header []string, rows [][]string) (*Table, error) {
	if len(header) == 0 {
		return nil, domain.ErrEmptyDataset
	}
	cols := make([]string, len(header))
	values := make([][]any, len(header))
	for j, h := range header {
		cols[j] = strings.TrimSpace(h)
		raw := make([]string, len(rows))
		for i, row := range rows {
			if j < len(row) {
				raw[i] = strings.TrimSpace(row[j])
			}
		}
		values[j] = inferColumn(raw)
	}
	return New(cols, values)
}

func inferColumn(raw []string) []any {
	numeric, boolean := true, true
	for _, s := range raw {
		if missingTokens[s] {
			continue
		}
		if numeric {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				numeric = false
			}
		}
		if boolean {
			if _, ok := parseBool(s); !ok {
				boolean = false
			}
		}
		if !numeric && !boolean {
			break
		}
	}

	out := make([]any, len(raw))
	for i, s := range raw {
		if missingTokens[s] {
			continue
		}
		switch {
		case numeric:
			out[i], _ = strconv.ParseFloat(s, 64)
		case boolean:
			out[i], _ = parseBool(s)
		default:
			out[i] = s
		}
	}
	return out
}

func parseBool(s string) (bool, bool) {
	switch s {
	case "True", "true", "TRUE":
		return true, true
	case "False", "false", "FALSE":
		return false, true
	}
	return false, false
}
