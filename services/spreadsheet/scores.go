package spreadsheet

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/rkabuya/evaldesk/core/hierarchy"
	"github.com/rkabuya/evaldesk/core/participant"
)

// ErrAmbiguousColumns is returned when two scoreable items share a display
// name; a name-keyed sheet cannot tell their columns apart.
var ErrAmbiguousColumns = errors.New("duplicate item names make score columns ambiguous")

func scoreHeader(items []hierarchy.ScoreableItem) ([]interface{}, error) {
	if dups := hierarchy.DuplicateDisplayNames(items); len(dups) > 0 {
		return nil, errors.Wrapf(ErrAmbiguousColumns, "duplicates: %s", strings.Join(dups, "; "))
	}
	header := []interface{}{"phone", "name"}
	for _, item := range items {
		header = append(header, item.DisplayName)
	}
	return header, nil
}

// WriteScoreTemplate emits a blank score upload workbook: one column per
// currently scoreable item, one row per participant to come.
func WriteScoreTemplate(w io.Writer, items []hierarchy.ScoreableItem) error {
	header, err := scoreHeader(items)
	if err != nil {
		return err
	}
	f, err := newWorkbook(header)
	if err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return errors.Wrap(err, "writing workbook")
}

// ReadScores converts an uploaded score file into normalized import rows.
// Columns are matched to items by display name; empty cells mean "not
// scored". Cell-level problems are reported as row errors.
func ReadScores(r io.Reader, filename string, items []hierarchy.ScoreableItem) ([]participant.ScoreImportRow, []participant.RowError, error) {
	if dups := hierarchy.DuplicateDisplayNames(items); len(dups) > 0 {
		return nil, nil, errors.Wrapf(ErrAmbiguousColumns, "duplicates: %s", strings.Join(dups, "; "))
	}

	grid, err := cellRows(r, filename)
	if err != nil {
		return nil, nil, err
	}
	if len(grid) < 2 {
		return nil, nil, errEmptyFile
	}

	idx := indexHeader(grid[0])
	for _, col := range []string{"phone", "name"} {
		if _, ok := idx[col]; !ok {
			return nil, nil, errors.Errorf("missing required column %q", col)
		}
	}
	itemCols := make(map[string]int, len(items)) // display name -> column
	for _, item := range items {
		if col := idx.col(strings.ToLower(item.DisplayName)); col >= 0 {
			itemCols[item.DisplayName] = col
		}
	}

	var (
		rows    []participant.ScoreImportRow
		rowErrs []participant.RowError
	)
	for i, raw := range grid[1:] {
		line := i + 2
		row := participant.ScoreImportRow{
			Line:   line,
			Phone:  cell(raw, idx.col("phone")),
			Name:   cell(raw, idx.col("name")),
			Values: make(map[string]float64, len(itemCols)),
		}
		if row.Phone == "" && row.Name == "" {
			continue // blank row
		}
		bad := false
		for displayName, col := range itemCols {
			text := cell(raw, col)
			if text == "" {
				continue
			}
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				rowErrs = append(rowErrs, participant.RowError{
					Line: line,
					Err:  strconv.Quote(text) + " is not a number (column " + strconv.Quote(displayName) + ")",
				})
				bad = true
				continue
			}
			row.Values[displayName] = v
		}
		if !bad {
			rows = append(rows, row)
		}
	}
	return rows, rowErrs, nil
}

// ExportScores writes every participant's raw scores as csv, one row per
// participant, one column per scoreable item. Unscored cells are empty.
func ExportScores(w io.Writer, items []hierarchy.ScoreableItem, participants []participant.Participant, scoresByPhone map[string][]participant.Score) error {
	header, err := scoreHeader(items)
	if err != nil {
		return err
	}
	record := make([]string, len(header))
	for i, h := range header {
		record[i] = h.(string)
	}

	writer := csv.NewWriter(w)
	if err = writer.Write(record); err != nil {
		return errors.Wrap(err, "writing header")
	}

	for _, p := range participants {
		byTarget := make(map[string]float64)
		for _, s := range scoresByPhone[p.Phone] {
			switch {
			case s.MeasureID.Valid:
				byTarget["m"+strconv.Itoa(s.MeasureID.Int)] = s.Value
			case s.IndicatorID.Valid:
				byTarget["i"+strconv.Itoa(s.IndicatorID.Int)] = s.Value
			}
		}

		record = record[:0]
		record = append(record, p.Phone, p.Name)
		for _, item := range items {
			key := "m" + strconv.Itoa(item.ID)
			if item.Kind == hierarchy.KindIndicator {
				key = "i" + strconv.Itoa(item.ID)
			}
			if v, ok := byTarget[key]; ok {
				record = append(record, strconv.FormatFloat(v, 'f', -1, 64))
			} else {
				record = append(record, "")
			}
		}
		if err = writer.Write(record); err != nil {
			return errors.Wrap(err, "writing row")
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "flushing csv")
}
