package importer

import (
	"strconv"
	"strings"
)

var numberCleaner = strings.NewReplacer(
	"\u20aa", "", "$", "", "\u20ac", "", "\u00a3", "", "%", "",
	"\u00a0", "", "\u202f", "", " ", "", "\t", "",
)

// ParseNumberSmart parses a locale-ambiguous numeric cell. Currency and
// percent symbols are stripped, and the comma/period decimal ambiguity is
// resolved by rightmost position: the separator appearing last is the decimal
// point, with a lone trailing ",ddd" (exactly three digits) read as a
// thousands separator. Returns ok=false on unparseable input; callers must
// treat that as "field absent", never as zero.
func ParseNumberSmart(raw string) (float64, bool) {
	s := numberCleaner.Replace(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// 1.234,56 — dots group, comma is the decimal point
			s = strings.ReplaceAll(s, ".", "")
			lastComma = strings.LastIndex(s, ",")
			s = strings.ReplaceAll(s[:lastComma], ",", "") + "." + s[lastComma+1:]
		} else {
			// 1,234.56 — commas group
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		frac := s[lastComma+1:]
		if strings.Count(s, ",") > 1 || (lastComma > 0 && len(frac) == 3 && allDigits(frac)) {
			// 1,234,567 or trailing ,ddd — grouping
			s = strings.ReplaceAll(s, ",", "")
		} else {
			// 12,5 — decimal comma
			s = s[:lastComma] + "." + frac
		}
	case strings.Count(s, ".") > 1:
		// 1.234.567 — grouping dots
		s = strings.ReplaceAll(s, ".", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NormalizeName canonicalizes a free-text name for identity comparison:
// trim, collapse internal whitespace runs, lower-case. Must be applied
// identically on write and on lookup or duplicates accumulate silently.
func NormalizeName(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
