package fileio

import (
	"bytes"
	"fmt"
	"io"

	excelize "github.com/xuri/excelize/v2"
)

func readXLSX(r io.Reader, sheet string) (Grid, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Grid{}, err
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		return Grid{}, err
	}
	defer f.Close()

	names := f.GetSheetList()
	if len(names) == 0 {
		return Grid{}, fmt.Errorf("workbook has no sheets")
	}
	selected := names[0]
	if sheet != "" {
		found := false
		for _, name := range names {
			if name == sheet {
				selected = name
				found = true
				break
			}
		}
		if !found {
			return Grid{}, fmt.Errorf("sheet %q not found", sheet)
		}
	}

	rows, err := f.GetRows(selected)
	if err != nil {
		return Grid{}, err
	}
	return Grid{SheetNames: names, Sheet: selected, Rows: rows}, nil
}
