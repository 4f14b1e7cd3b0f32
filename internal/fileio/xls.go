package fileio

import (
	"bytes"
	"errors"
	"io"

	xls "github.com/extrame/xls"
)

// Legacy .xls exports from retail POS systems are typically Windows-1255 or
// Windows-1251; try the likely charsets in order.
var xlsCharsets = []string{"windows-1255", "windows-1251", "utf-8"}

func readXLS(r io.Reader, sheet string) (Grid, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Grid{}, err
	}

	var wb *xls.WorkBook
	var lastErr error
	for _, cs := range xlsCharsets {
		wb, lastErr = xls.OpenReader(bytes.NewReader(b), cs)
		if lastErr == nil && wb != nil {
			break
		}
	}
	if wb == nil {
		if lastErr == nil {
			lastErr = errors.New("xls: failed to open workbook")
		}
		return Grid{}, lastErr
	}

	names := make([]string, 0, wb.NumSheets())
	selected := 0
	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		names = append(names, ws.Name)
		if sheet != "" && ws.Name == sheet {
			selected = i
		}
	}

	ws := wb.GetSheet(selected)
	if ws == nil {
		return Grid{SheetNames: names}, nil
	}

	maxCols := probeWidth(ws)
	rows := make([][]string, 0, int(ws.MaxRow)+1)
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		cols := make([]string, maxCols)
		if row != nil {
			for j := 0; j < maxCols; j++ {
				cols[j] = row.Col(j)
			}
		}
		rows = append(rows, cols)
	}
	return Grid{SheetNames: names, Sheet: ws.Name, Rows: rows}, nil
}

// probeWidth fixes the table width ourselves instead of trusting
// Row.LastCol(), which under-reports on sparse legacy sheets.
func probeWidth(ws *xls.WorkSheet) int {
	const probeMax = 512
	maxCols := 1
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			continue
		}
		for j := 0; j < probeMax; j++ {
			if row.Col(j) != "" && j+1 > maxCols {
				maxCols = j + 1
			}
		}
	}
	return maxCols
}
