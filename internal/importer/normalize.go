package importer

import (
	"fmt"
	"strings"
)

// NormalizeInput is everything the Row Normalizer consumes: the raw grid, the
// (possibly caller-overridden) column mapping, manual overrides and the set
// of data-row indices to drop. IgnoredRows is keyed by 0-based data-row
// index; filtered rows keep their original numbering in error messages.
type NormalizeInput struct {
	Grid        RawGrid
	HasHeader   bool
	Mapping     ColumnMapping
	Overrides   ManualOverrides
	IgnoredRows map[int]bool
}

// NormalizeRows validates the mapping and flattens the grid into ImportRows,
// one per valid (row, pair) combination. Field-level problems abort the whole
// operation and are returned in FieldErrors; row-level problems are collected
// in RowErrors while sibling pairs and remaining rows continue.
func NormalizeRows(in NormalizeInput) NormalizeResult {
	pairs := DiscoverPairs(in.Mapping)

	var fieldErrors []string
	if _, ok := in.Mapping[FieldProductName]; !ok {
		fieldErrors = append(fieldErrors, "no column is mapped to product_name")
	}
	if !anyUsablePair(pairs, in.Overrides) {
		fieldErrors = append(fieldErrors, "no usable price pair: a pair needs a price column and a supplier column or manual supplier")
	}
	if len(fieldErrors) > 0 {
		return NormalizeResult{FieldErrors: fieldErrors}
	}

	headerOffset := 0
	if in.HasHeader {
		headerOffset = 1
	}

	res := NormalizeResult{}
	for gridRow := headerOffset; gridRow < len(in.Grid); gridRow++ {
		dataRow := gridRow - headerOffset
		if in.IgnoredRows[dataRow] {
			continue
		}
		rowNum := gridRow + 1
		if rowEmpty(in.Grid[gridRow]) && len(in.Overrides.Rows[dataRow]) == 0 {
			continue
		}
		res.normalizeRow(in, pairs, gridRow, dataRow, rowNum)
	}
	return res
}

func (res *NormalizeResult) normalizeRow(in NormalizeInput, pairs []PricePairMapping, gridRow, dataRow, rowNum int) {
	productName := strings.TrimSpace(resolveShared(in, FieldProductName, gridRow, dataRow))
	if productName == "" {
		res.RowErrors = append(res.RowErrors, RowError{Row: rowNum, Message: "missing product name"})
		return
	}

	var packageQty *float64
	if raw := resolveShared(in, FieldPackageQuantity, gridRow, dataRow); strings.TrimSpace(raw) != "" {
		v, ok := ParseNumberSmart(raw)
		if !ok || v < 0 {
			res.RowErrors = append(res.RowErrors, RowError{Row: rowNum, Message: fmt.Sprintf("invalid package quantity %q", raw)})
			return
		}
		packageQty = &v
	}

	category := strings.TrimSpace(resolveShared(in, FieldCategory, gridRow, dataRow))
	sku := strings.TrimSpace(resolveShared(in, FieldSKU, gridRow, dataRow))
	barcode := strings.TrimSpace(resolveShared(in, FieldBarcode, gridRow, dataRow))

	for _, pair := range pairs {
		priceRaw := strings.TrimSpace(resolvePair(in, FieldPrice, pair, pair.PriceCol, gridRow, dataRow))
		if priceRaw == "" {
			// pair unused on this row
			continue
		}
		price, ok := ParseNumberSmart(priceRaw)
		if !ok || price <= 0 {
			res.RowErrors = append(res.RowErrors, RowError{Row: rowNum, Message: fmt.Sprintf("pair %d: invalid price %q", pair.Index, priceRaw)})
			continue
		}

		supplier := strings.TrimSpace(resolvePair(in, FieldSupplier, pair, pair.SupplierCol, gridRow, dataRow))
		if supplier == "" {
			res.RowErrors = append(res.RowErrors, RowError{Row: rowNum, Message: fmt.Sprintf("pair %d: price present but no supplier", pair.Index)})
			continue
		}

		discount := 0.0
		if raw := strings.TrimSpace(resolvePair(in, FieldDiscountPercent, pair, pair.DiscountCol, gridRow, dataRow)); raw != "" {
			d, ok := ParseNumberSmart(raw)
			if !ok || d < 0 || d > 100 {
				res.RowErrors = append(res.RowErrors, RowError{Row: rowNum, Message: fmt.Sprintf("pair %d: invalid discount %q", pair.Index, raw)})
				continue
			}
			discount = d
		}

		var vat *float64
		if raw := strings.TrimSpace(resolvePair(in, FieldVAT, pair, pair.VATCol, gridRow, dataRow)); raw != "" {
			if v, ok := ParseNumberSmart(raw); ok {
				vat = &v
			}
		}
		currency := strings.TrimSpace(resolvePair(in, FieldCurrency, pair, pair.CurrencyCol, gridRow, dataRow))

		res.Rows = append(res.Rows, ImportRow{
			RowNumber:       rowNum,
			PairIndex:       pair.Index,
			ProductName:     productName,
			Supplier:        supplier,
			Category:        category,
			SKU:             sku,
			Barcode:         barcode,
			Price:           price,
			DiscountPercent: discount,
			PackageQuantity: packageQty,
			VATPercent:      vat,
			Currency:        currency,
		})
	}
}

// resolveShared resolves a row-scoped field: row-level manual override, then
// global manual override, then the mapped column cell.
func resolveShared(in NormalizeInput, field string, gridRow, dataRow int) string {
	if v, ok := in.Overrides.Rows[dataRow][field]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	if v, ok := in.Overrides.Global[field]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	if col, ok := in.Mapping[field]; ok {
		return in.Grid.Cell(gridRow, col)
	}
	return ""
}

// resolvePair resolves a pair-scoped field through the precedence chain:
// row-level suffixed override, (pair 1 only) un-suffixed row override, the
// pair's mapped column, the shared un-suffixed column, then global overrides.
// A mapped column beating the global manual value is what keeps an explicit
// supplier column authoritative over a blanket manual supplier.
func resolvePair(in NormalizeInput, field string, pair PricePairMapping, pairCol, gridRow, dataRow int) string {
	suffixed := fmt.Sprintf("%s_%d", field, pair.Index)

	if v, ok := in.Overrides.Rows[dataRow][suffixed]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	if pair.Index == 1 {
		if v, ok := in.Overrides.Rows[dataRow][field]; ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	if pairCol >= 0 {
		if v := in.Grid.Cell(gridRow, pairCol); strings.TrimSpace(v) != "" {
			return v
		}
	}
	if sharedField(field) && pair.Index > 1 {
		if col, ok := in.Mapping[field]; ok {
			if v := in.Grid.Cell(gridRow, col); strings.TrimSpace(v) != "" {
				return v
			}
		}
	}
	if v, ok := in.Overrides.Global[suffixed]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	if pair.Index == 1 || sharedField(field) {
		if v, ok := in.Overrides.Global[field]; ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// sharedField reports whether an un-suffixed column or global value for the
// field applies to every pair rather than pair 1 alone. Supplier and price
// are identity-bearing and never shared across pairs.
func sharedField(field string) bool {
	switch field {
	case FieldDiscountPercent, FieldVAT, FieldCurrency:
		return true
	}
	return false
}

// anyUsablePair checks the field-level invariant: at least one pair must have
// both a price source and a supplier source before any row is processed.
func anyUsablePair(pairs []PricePairMapping, ov ManualOverrides) bool {
	for _, p := range pairs {
		if pairUsable(p, ov) {
			return true
		}
	}
	return false
}

func pairUsable(p PricePairMapping, ov ManualOverrides) bool {
	hasPrice := p.PriceCol >= 0 ||
		globalSet(ov, fmt.Sprintf("%s_%d", FieldPrice, p.Index)) ||
		(p.Index == 1 && globalSet(ov, FieldPrice))
	hasSupplier := p.SupplierCol >= 0 ||
		globalSet(ov, fmt.Sprintf("%s_%d", FieldSupplier, p.Index)) ||
		(p.Index == 1 && globalSet(ov, FieldSupplier))
	return hasPrice && hasSupplier
}

func globalSet(ov ManualOverrides, field string) bool {
	v, ok := ov.Global[field]
	return ok && strings.TrimSpace(v) != ""
}

func rowEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
