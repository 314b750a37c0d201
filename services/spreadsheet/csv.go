package spreadsheet

import (
	"encoding/csv"
	"io"

	"github.com/pkg/errors"
)

func csvRows(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows are fine, missing cells read as empty
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading csv")
		}
		rows = append(rows, record)
	}
	return rows, nil
}
