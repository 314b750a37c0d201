package spreadsheet

import (
	"io"
	"strconv"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/rkabuya/evaldesk/core/hierarchy"
)

var hierarchyHeader = []interface{}{"level", "name", "parent_name", "weight", "description"}

// WriteHierarchyTemplate emits a blank hierarchy upload workbook with a few
// sample rows showing the expected shape.
func WriteHierarchyTemplate(w io.Writer) error {
	f, err := newWorkbook(hierarchyHeader)
	if err != nil {
		return err
	}
	samples := [][]interface{}{
		{"axis", "Governance", "", "", "How the organization is run"},
		{"indicator", "Transparency", "Governance", 0.5, ""},
		{"measure", "Reports published", "Transparency", 0.7, ""},
	}
	for i, row := range samples {
		if err = f.SetSheetRow(sheetName, "A"+strconv.Itoa(i+2), &row); err != nil {
			return errors.Wrap(err, "writing sample row")
		}
	}
	_, err = f.WriteTo(w)
	return errors.Wrap(err, "writing workbook")
}

// ReadHierarchy converts an uploaded hierarchy file into normalized import
// rows. Cell-level problems (a weight that is not a number) are reported as
// row errors so the upload can be rejected as a whole with precise feedback.
func ReadHierarchy(r io.Reader, filename string) ([]hierarchy.ImportRow, []hierarchy.RowError, error) {
	grid, err := cellRows(r, filename)
	if err != nil {
		return nil, nil, err
	}
	if len(grid) < 2 {
		return nil, nil, errEmptyFile
	}

	idx := indexHeader(grid[0])
	for _, col := range []string{"level", "name"} {
		if _, ok := idx[col]; !ok {
			return nil, nil, errors.Errorf("missing required column %q", col)
		}
	}

	var (
		rows    []hierarchy.ImportRow
		rowErrs []hierarchy.RowError
	)
	for i, raw := range grid[1:] {
		line := i + 2 // 1-based, after the header
		row := hierarchy.ImportRow{
			Line:        line,
			Level:       cell(raw, idx.col("level")),
			Name:        cell(raw, idx.col("name")),
			ParentName:  cell(raw, idx.col("parent_name")),
			Description: cell(raw, idx.col("description")),
		}
		if row.Level == "" && row.Name == "" {
			continue // blank row
		}
		if weight := cell(raw, idx.col("weight")); weight != "" {
			w, err := strconv.ParseFloat(weight, 64)
			if err != nil {
				rowErrs = append(rowErrs, hierarchy.RowError{Line: line, Err: "weight " + strconv.Quote(weight) + " is not a number"})
				continue
			}
			row.Weight = null.Float64From(w)
		}
		rows = append(rows, row)
	}
	return rows, rowErrs, nil
}
