/*
Package importer reads benchmark curves from market survey spreadsheets.

SHEET LAYOUT:
  The first row is a header naming at least specialty, metric, year,
  percentile and value. region and source are optional. Matching is
  case-insensitive and columns may appear in any order; unknown columns are
  ignored. Blank rows are skipped.

ERRORS:
  A row with a missing or unparsable field fails the whole read with a
  *compensation.ValidationError naming the row ("row 7.value"), numbered as
  in the spreadsheet. Ingestion itself is left to BenchmarkService.Ingest.
*/
package importer

import (
	"errors"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"

	"github.com/warp/compensation-engine/compensation"
)

// Options configures ReadBenchmarks.
type Options struct {
	SheetName string // if empty, the first sheet
	Source    string // used when a row has no source column
}

var requiredColumns = []string{"specialty", "metric", "year", "percentile", "value"}

// ReadBenchmarks opens an xlsx file and parses its benchmark rows.
func ReadBenchmarks(path string, opts Options) ([]compensation.BenchmarkPoint, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts.SheetName)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		rows = append(rows, rowToStrings(row))
	}
	return ParseRows(rows, opts.Source)
}

// ParseRows converts a header row plus data rows into benchmark points.
func ParseRows(rows [][]string, source string) ([]compensation.BenchmarkPoint, error) {
	if len(rows) == 0 {
		return nil, &compensation.ValidationError{Field: "header", Reason: "sheet is empty"}
	}

	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := columns[key]; !dup && key != "" {
			columns[key] = i
		}
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, &compensation.ValidationError{Field: "header", Reason: "missing column " + name}
		}
	}

	var points []compensation.BenchmarkPoint
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		line := i + 2
		cell := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		p := compensation.BenchmarkPoint{
			Specialty: cell("specialty"),
			Metric:    cell("metric"),
			Region:    cell("region"),
			Source:    cell("source"),
		}
		if p.Source == "" {
			p.Source = source
		}

		year, err := strconv.Atoi(cell("year"))
		if err != nil {
			return nil, rowError(line, "year", "not an integer: "+cell("year"))
		}
		p.Year = year

		if p.Percentile, err = parseNumber(cell("percentile")); err != nil {
			return nil, rowError(line, "percentile", err.Error())
		}
		if p.Value, err = parseNumber(cell("value")); err != nil {
			return nil, rowError(line, "value", err.Error())
		}

		if err := compensation.ValidatePoint(p); err != nil {
			var verr *compensation.ValidationError
			if errors.As(err, &verr) {
				return nil, rowError(line, verr.Field, verr.Reason)
			}
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

// parseNumber accepts survey formatting such as "$512,000" or "50%".
func parseNumber(s string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", "%", "", " ", "").Replace(s)
	if cleaned == "" {
		return decimal.Zero, eris.New("missing number")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, eris.Errorf("not a number: %s", s)
	}
	return d, nil
}

func rowError(line int, field, reason string) error {
	return &compensation.ValidationError{Field: "row " + strconv.Itoa(line) + "." + field, Reason: reason}
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: file has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
