package fileio

import (
	"bufio"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// readCSV reads a CSV as a single-sheet grid, detecting the encoding and
// converting to UTF-8. UTF-8, Windows-1255 and Windows-1251 are handled.
func readCSV(r io.Reader) (Grid, error) {
	br := bufio.NewReader(r)

	peek, _ := br.Peek(2048)
	cs := ""
	if len(peek) > 0 {
		if det, err := chardet.NewTextDetector().DetectBest(peek); err == nil && det != nil {
			cs = strings.ToLower(det.Charset)
		}
	}

	var dec io.Reader = br
	switch cs {
	case "windows-1255", "cp1255", "iso-8859-8", "iso-8859-8-i":
		dec = transform.NewReader(br, charmap.Windows1255.NewDecoder())
	case "windows-1251", "cp1251":
		dec = transform.NewReader(br, charmap.Windows1251.NewDecoder())
	default:
		// chardet often cannot name Windows-1255, the encoding legacy
		// Hebrew price lists ship in (same fallback list as xlsCharsets).
		// Anything that is not valid UTF-8 gets that decoder rather than
		// leaking raw high bytes into names and dedupe keys.
		if !validUTF8Prefix(peek) {
			dec = transform.NewReader(br, charmap.Windows1255.NewDecoder())
		}
	}

	cr := csv.NewReader(dec)
	cr.FieldsPerRecord = -1

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Grid{}, err
		}
		rows = append(rows, rec)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return Grid{Rows: rows}, nil
}

// validUTF8Prefix reports whether b is valid UTF-8, allowing one multibyte
// rune to be cut off at the end since b is a fixed-size peek of the stream.
func validUTF8Prefix(b []byte) bool {
	if utf8.Valid(b) {
		return true
	}
	for i := 1; i < utf8.UTFMax && i < len(b); i++ {
		if utf8.Valid(b[:len(b)-i]) {
			return true
		}
	}
	return false
}
