package gradebook

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Template formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// templateRows is a minimal gradebook in the default layout: header, date
// row, points row and two example students.
var templateRows = [][]string{
	{"Last Name", "First Name", "Email", "Quiz 1", "Homework 1"},
	{"", "", "", "2024-09-06", "2024-09-13"},
	{"", "", "", "10", "20"},
	{"Lovelace", "Ada", "ada@example.com", "9", "18"},
	{"Hopper", "Grace", "grace@example.com", "10", ""},
}

// Template renders an example upload file in the given format.
func Template(format string) ([]byte, error) {
	switch format {
	case FormatCSV, "":
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.WriteAll(templateRows); err != nil {
			return nil, fmt.Errorf("write csv template: %w", err)
		}
		return buf.Bytes(), nil

	case FormatXLSX:
		return workbookTemplate()

	default:
		return nil, fmt.Errorf("%w: unknown template format %q", ErrInvalidInput, format)
	}
}

func workbookTemplate() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Gradebook"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for i, row := range templateRows {
		cells := make([]any, len(row))
		for j, v := range row {
			// Points and scores are stored as numbers so spreadsheet tools
			// treat them as such.
			if n, ok := ParseNumber(v); ok {
				cells[j] = n
			} else {
				cells[j] = v
			}
		}
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, ref, &cells); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write xlsx template: %w", err)
	}
	return buf.Bytes(), nil
}
