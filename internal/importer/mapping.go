package importer

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// fieldAliases drives header-to-field suggestion. Matching is by substring
// against the cleaned header, bilingual (Latin + Hebrew), first alias list
// entry order is the assignment priority.
var fieldAliases = []struct {
	field   string
	aliases []string
}{
	{FieldProductName, []string{"product name", "product", "item name", "item", "description", "שם מוצר", "שם פריט", "מוצר", "פריט", "תיאור"}},
	{FieldSKU, []string{"sku", "catalog number", "item code", "מקט", "מק\"ט", "קוד פריט"}},
	{FieldBarcode, []string{"barcode", "ean", "upc", "ברקוד"}},
	{FieldCategory, []string{"category", "department", "group", "קטגוריה", "מחלקה", "קבוצה"}},
	{FieldPackageQuantity, []string{"package quantity", "pack qty", "units per", "qty per", "כמות באריזה", "יחידות באריזה"}},
	{FieldSupplier, []string{"supplier", "vendor", "ספק"}},
	{FieldPrice, []string{"price", "cost", "מחיר", "עלות"}},
	{FieldDiscountPercent, []string{"discount", "הנחה"}},
	{FieldVAT, []string{"vat", "מעמ", "מע\"מ"}},
	{FieldCurrency, []string{"currency", "מטבע"}},
}

// pair-detection tokens; generic substring matching, deliberately looser than
// the alias lists so repeated header groups like "Supplier 2 / Price 2" are
// caught regardless of exact phrasing.
var pairTokens = map[string][]string{
	FieldSupplier:        {"supplier", "vendor", "ספק"},
	FieldPrice:           {"price", "cost", "מחיר", "עלות"},
	FieldDiscountPercent: {"discount", "הנחה"},
	FieldVAT:             {"vat", "מעמ"},
	FieldCurrency:        {"currency", "מטבע"},
}

var headerPunct = regexp.MustCompile(`[^\p{L}\p{N}%]+`)

// cleanHeader lower-cases, strips punctuation to spaces and collapses runs,
// so "Supplier_Name (2)" and "supplier name 2" compare equal.
func cleanHeader(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(headerPunct.ReplaceAllString(h, " ")), " "))
}

// SuggestMapping proposes a field-to-column mapping from header texts. Single
// fields are matched against the alias lists, each column consumed at most
// once. Repeated supplier/price/discount/vat/currency groups are then detected
// independently by generic token matching and assigned sequential pair indices
// in left-to-right column order; pair detection may legitimately reuse a
// column already claimed by an alias — the Row Normalizer resolves that by
// precedence. The result is a best-effort suggestion only.
func SuggestMapping(headers []string) ColumnMapping {
	cleaned := make([]string, len(headers))
	for i, h := range headers {
		cleaned[i] = cleanHeader(h)
	}

	mapping := ColumnMapping{}
	used := make(map[int]bool, len(headers))

	for _, fa := range fieldAliases {
		for _, alias := range fa.aliases {
			found := -1
			for col, h := range cleaned {
				if used[col] || h == "" {
					continue
				}
				if strings.Contains(h, alias) {
					found = col
					break
				}
			}
			if found >= 0 {
				mapping[fa.field] = found
				used[found] = true
				break
			}
		}
	}

	// Pair groups: collect each token kind's columns in order, then zip them
	// by ordinal into supplier_1/price_1, supplier_2/price_2, ...
	kinds := []string{FieldSupplier, FieldPrice, FieldDiscountPercent, FieldVAT, FieldCurrency}
	cols := make(map[string][]int, len(kinds))
	for col, h := range cleaned {
		if h == "" {
			continue
		}
		for _, kind := range kinds {
			for _, tok := range pairTokens[kind] {
				if strings.Contains(h, tok) {
					cols[kind] = append(cols[kind], col)
					break
				}
			}
		}
	}

	pairCount := len(cols[FieldPrice])
	if n := len(cols[FieldSupplier]); n > pairCount {
		pairCount = n
	}
	for k := 0; k < pairCount; k++ {
		for _, kind := range kinds {
			if k < len(cols[kind]) {
				mapping[fmt.Sprintf("%s_%d", kind, k+1)] = cols[kind][k]
			}
		}
	}

	return mapping
}

var pairKeyRe = regexp.MustCompile(`^(supplier|price|discount_percent|vat|currency)(?:_(\d+))?$`)

// DiscoverPairs extracts the typed pair list from a column mapping.
// Un-suffixed pair-field keys (e.g. "price") are canonicalized to pair 1.
// Pairs are returned in ascending index order; absent slots are -1. When the
// mapping names no pair field at all, a single empty pair 1 is returned so
// fully-manual price entry (global supplier + global price) still has a slot.
func DiscoverPairs(mapping ColumnMapping) []PricePairMapping {
	byIndex := map[int]*PricePairMapping{}

	pair := func(idx int) *PricePairMapping {
		p, ok := byIndex[idx]
		if !ok {
			p = &PricePairMapping{Index: idx, SupplierCol: -1, PriceCol: -1, DiscountCol: -1, VATCol: -1, CurrencyCol: -1}
			byIndex[idx] = p
		}
		return p
	}

	// Suffixed keys first so an explicit price_1 beats a bare price when both
	// are present; bare pair keys only fill pair-1 slots still empty.
	for _, suffixedPass := range []bool{true, false} {
		for key, col := range mapping {
			m := pairKeyRe.FindStringSubmatch(key)
			if m == nil || col < 0 {
				continue
			}
			if (m[2] != "") != suffixedPass {
				continue
			}
			idx := 1
			if m[2] != "" {
				idx, _ = strconv.Atoi(m[2])
				if idx < 1 {
					continue
				}
			}
			p := pair(idx)
			switch m[1] {
			case FieldSupplier:
				if p.SupplierCol < 0 {
					p.SupplierCol = col
				}
			case FieldPrice:
				if p.PriceCol < 0 {
					p.PriceCol = col
				}
			case FieldDiscountPercent:
				if p.DiscountCol < 0 {
					p.DiscountCol = col
				}
			case FieldVAT:
				if p.VATCol < 0 {
					p.VATCol = col
				}
			case FieldCurrency:
				if p.CurrencyCol < 0 {
					p.CurrencyCol = col
				}
			}
		}
	}

	if len(byIndex) == 0 {
		return []PricePairMapping{{Index: 1, SupplierCol: -1, PriceCol: -1, DiscountCol: -1, VATCol: -1, CurrencyCol: -1}}
	}

	pairs := make([]PricePairMapping, 0, len(byIndex))
	for _, p := range byIndex {
		pairs = append(pairs, *p)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Index < pairs[j].Index })
	return pairs
}
