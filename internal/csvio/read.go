// Package csvio reads input tables (CSV or XLSX) and writes output CSVs
// all-or-nothing.
package csvio

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

const bom = "\ufeff"

// Table is a header plus data rows. Rows may be shorter or longer than the
// header.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable reads a CSV file, or the first sheet of an XLSX file.
func ReadTable(path string) (*Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadXLSX(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "csvio: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	t, err := ReadCSV(f)
	if err != nil {
		return nil, eris.Wrapf(err, "csvio: read %s", path)
	}
	return t, nil
}

// ReadCSV parses a CSV stream. The first record is the header; a leading
// byte-order mark is dropped and blank lines are skipped.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow variable fields

	var t Table
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csvio: read row")
		}
		if t.Header == nil {
			if len(record) > 0 {
				record[0] = strings.TrimPrefix(record[0], bom)
			}
			t.Header = record
			continue
		}
		if blankRow(record) {
			continue
		}
		t.Rows = append(t.Rows, record)
	}
	if t.Header == nil {
		return nil, eris.New("csvio: empty file")
	}
	return &t, nil
}

// ReadXLSX reads the first sheet of an XLSX workbook.
func ReadXLSX(path string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "csvio: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("csvio: %s has no sheets", path)
	}

	var t Table
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		if t.Header == nil {
			if blankRow(cells) {
				continue
			}
			t.Header = cells
			continue
		}
		if blankRow(cells) {
			continue
		}
		t.Rows = append(t.Rows, cells)
	}
	if t.Header == nil {
		return nil, eris.Errorf("csvio: %s is empty", path)
	}
	return &t, nil
}

func blankRow(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
