// Package fileio extracts a raw cell grid from uploaded spreadsheet files.
// It stays format-only: no interpretation of the cells beyond stringifying.
package fileio

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Grid is the extracted content of one sheet plus the workbook's sheet list.
type Grid struct {
	SheetNames []string
	Sheet      string
	Rows       [][]string
}

// ReadGrid picks a parser by file extension and returns the named sheet's
// cells (first sheet when sheet is empty). CSV files are a single unnamed
// sheet.
func ReadGrid(r io.Reader, filename, sheet string) (Grid, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".xlsx":
		return readXLSX(r, sheet)
	case ".xls":
		return readXLS(r, sheet)
	case ".csv":
		return readCSV(r)
	default:
		return Grid{}, fmt.Errorf("unsupported file type %q", ext)
	}
}

// HeaderTexts returns the first row padded/truncated to the grid's widest
// row, substituting "Column N" for blank headers, for mapping preview UIs.
func HeaderTexts(rows [][]string) []string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	out := make([]string, width)
	for i := 0; i < width; i++ {
		v := ""
		if i < len(rows[0]) {
			v = strings.TrimSpace(rows[0][i])
		}
		if v == "" {
			v = fmt.Sprintf("Column %d", i+1)
		}
		out[i] = v
	}
	return out
}
