package importer

import "strings"

// DedupeLastRowWins collapses rows pointing at the same normalized
// (product, supplier, category) triple. The latest row in input order
// replaces earlier ones entirely, not field-by-field: a corrected price
// further down the sheet wins outright. Output preserves first-occurrence
// order of each key.
func DedupeLastRowWins(rows []ImportRow) []ImportRow {
	out := make([]ImportRow, 0, len(rows))
	seen := make(map[string]int, len(rows))
	for _, row := range rows {
		key := dedupeKey(row)
		if at, ok := seen[key]; ok {
			out[at] = row
			continue
		}
		seen[key] = len(out)
		out = append(out, row)
	}
	return out
}

func dedupeKey(row ImportRow) string {
	category := row.Category
	if strings.TrimSpace(category) == "" {
		category = DefaultCategoryName
	}
	return NormalizeName(row.ProductName) + "|" + NormalizeName(row.Supplier) + "|" + NormalizeName(category)
}
