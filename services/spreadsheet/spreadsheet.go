// Package spreadsheet reads and writes the xlsx/csv files used to bulk-load
// the evaluation hierarchy and participant scores, and to hand out blank
// templates for both.
package spreadsheet

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Sheet1"

var errEmptyFile = errors.New("the file contains no data rows")

// cellRows returns the raw cell grid of an uploaded file, xlsx or csv,
// picked by extension.
func cellRows(r io.Reader, filename string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "opening workbook")
		}
		defer func() { _ = f.Close() }()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errEmptyFile
		}
		rows, err := f.GetRows(sheets[0])
		return rows, errors.Wrap(err, "reading sheet")
	case ".csv":
		return csvRows(r)
	default:
		return nil, fmt.Errorf("unsupported file type %q: use xlsx or csv", filepath.Ext(filename))
	}
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// headerIndex maps lowercased header names to their column. Lookups of
// absent headers yield -1, which cell() reads as an empty value.
type headerIndex map[string]int

func indexHeader(header []string) headerIndex {
	idx := make(headerIndex, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			if _, dup := idx[h]; !dup {
				idx[h] = i
			}
		}
	}
	return idx
}

func (idx headerIndex) col(name string) int {
	if i, ok := idx[name]; ok {
		return i
	}
	return -1
}

func newWorkbook(header []interface{}) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, errors.Wrap(err, "writing header")
	}
	return f, nil
}
