package gradebook

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

var (
	utf8BOM   = []byte{0xEF, 0xBB, 0xBF}
	zipMagic  = []byte{'P', 'K', 0x03, 0x04}
	blankName = "Unnamed: "
)

// Grid is a rectangular table of trimmed cell text. Header holds the first
// row; Rows holds every row after it, each padded to len(Header).
type Grid struct {
	Header []string
	Rows   [][]string
}

// Width returns the number of columns.
func (g *Grid) Width() int { return len(g.Header) }

// Cell returns the cell at (row, col) of the data rows, or "" when out of range.
func (g *Grid) Cell(row, col int) string {
	if row < 0 || row >= len(g.Rows) || col < 0 || col >= len(g.Rows[row]) {
		return ""
	}
	return g.Rows[row][col]
}

// Parse decodes an uploaded gradebook into a Grid.
//
// XLSX workbooks are detected by their zip signature and read from the
// first sheet. Anything else is treated as CSV: UTF-8 (with or without a
// BOM) is tried first, then ISO-8859-1, which accepts every byte value.
// Blank header labels are named "Unnamed: N" after their 0-based index.
func Parse(data []byte) (*Grid, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	var (
		records [][]string
		err     error
	)
	if bytes.HasPrefix(data, zipMagic) {
		records, err = readWorkbook(data)
	} else {
		records, err = readCSV(decodeText(data))
	}
	if err != nil {
		return nil, err
	}

	return newGrid(records)
}

// decodeText returns data as UTF-8 text without a BOM.
func decodeText(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data
	}
	// ISO-8859-1 maps every byte to a rune, so this cannot fail.
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return bytes.ToValidUTF8(data, []byte("?"))
	}
	return decoded
}

func readCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func readWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrUnreadableFile, sheets[0], err)
	}
	return rows, nil
}

func newGrid(records [][]string) (*Grid, error) {
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	width := 0
	for _, rec := range records {
		width = max(width, len(rec))
	}

	header := make([]string, width)
	for i := range header {
		if i < len(records[0]) {
			header[i] = strings.TrimSpace(records[0][i])
		}
		if header[i] == "" {
			header[i] = blankName + strconv.Itoa(i)
		}
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]string, width)
		for i, cell := range rec {
			row[i] = strings.TrimSpace(cell)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	return &Grid{Header: header, Rows: rows}, nil
}
