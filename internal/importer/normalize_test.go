package importer

import (
	"strings"
	"testing"
)

func basicMapping() ColumnMapping {
	return ColumnMapping{
		FieldProductName: 0,
		FieldCategory:    1,
		"supplier_1":     2,
		"price_1":        3,
	}
}

func TestNormalizeRowsHappyPath(t *testing.T) {
	res := NormalizeRows(NormalizeInput{
		Grid: RawGrid{
			{"Name", "Category", "Supplier", "Price"},
			{"Milk 3%", "Dairy", "Tnuva", "5.90"},
			{"Bread", "", "Angel", "8,50"},
		},
		HasHeader: true,
		Mapping:   basicMapping(),
	})

	if len(res.FieldErrors) != 0 {
		t.Fatalf("unexpected field errors: %v", res.FieldErrors)
	}
	if len(res.RowErrors) != 0 {
		t.Fatalf("unexpected row errors: %v", res.RowErrors)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Rows))
	}
	first := res.Rows[0]
	if first.ProductName != "Milk 3%" || first.Supplier != "Tnuva" || first.Price != 5.9 || first.Category != "Dairy" {
		t.Fatalf("row 1 wrong: %+v", first)
	}
	if first.RowNumber != 2 {
		t.Fatalf("row numbers must be header-adjusted, got %d", first.RowNumber)
	}
	if res.Rows[1].Price != 8.5 {
		t.Fatalf("decimal comma price wrong: %+v", res.Rows[1])
	}
}

func TestNormalizeRowsFieldErrors(t *testing.T) {
	t.Run("missing product_name column aborts", func(t *testing.T) {
		res := NormalizeRows(NormalizeInput{
			Grid:    RawGrid{{"a", "b"}},
			Mapping: ColumnMapping{"supplier_1": 0, "price_1": 1},
		})
		if len(res.FieldErrors) != 1 || !strings.Contains(res.FieldErrors[0], "product_name") {
			t.Fatalf("expected product_name field error, got %v", res.FieldErrors)
		}
		if len(res.Rows) != 0 {
			t.Fatalf("field errors must abort row processing")
		}
	})

	t.Run("no usable pair aborts", func(t *testing.T) {
		res := NormalizeRows(NormalizeInput{
			Grid:    RawGrid{{"a"}},
			Mapping: ColumnMapping{FieldProductName: 0},
		})
		if len(res.FieldErrors) != 1 || !strings.Contains(res.FieldErrors[0], "price pair") {
			t.Fatalf("expected usable-pair field error, got %v", res.FieldErrors)
		}
	})

	t.Run("manual global supplier makes price-only mapping usable", func(t *testing.T) {
		res := NormalizeRows(NormalizeInput{
			Grid:      RawGrid{{"Milk", "7.00"}},
			Mapping:   ColumnMapping{FieldProductName: 0, "price_1": 1},
			Overrides: ManualOverrides{Global: map[string]string{FieldSupplier: "Tnuva"}},
		})
		if len(res.FieldErrors) != 0 {
			t.Fatalf("unexpected field errors: %v", res.FieldErrors)
		}
		if len(res.Rows) != 1 || res.Rows[0].Supplier != "Tnuva" {
			t.Fatalf("global supplier not applied: %+v", res.Rows)
		}
	})
}

func TestNormalizeRowsPairIndependence(t *testing.T) {
	// pair 1 valid, pair 2 has a price but no supplier source
	res := NormalizeRows(NormalizeInput{
		Grid: RawGrid{
			{"Milk", "Tnuva", "5.90", "6.10"},
		},
		Mapping: ColumnMapping{
			FieldProductName: 0,
			"supplier_1":     1,
			"price_1":        2,
			"price_2":        3,
		},
	})

	if len(res.Rows) != 1 {
		t.Fatalf("expected exactly one ImportRow from pair 1, got %d", len(res.Rows))
	}
	if res.Rows[0].PairIndex != 1 {
		t.Fatalf("surviving row should come from pair 1: %+v", res.Rows[0])
	}
	if len(res.RowErrors) != 1 || !strings.Contains(res.RowErrors[0].Message, "pair 2") {
		t.Fatalf("expected one row error naming pair 2, got %v", res.RowErrors)
	}
}

func TestNormalizeRowsMultiplePairsPerRow(t *testing.T) {
	res := NormalizeRows(NormalizeInput{
		Grid: RawGrid{
			{"Milk", "Dairy", "Tnuva", "5.90", "Tara", "6.10"},
		},
		Mapping: ColumnMapping{
			FieldProductName: 0,
			FieldCategory:    1,
			"supplier_1":     2,
			"price_1":        3,
			"supplier_2":     4,
			"price_2":        5,
		},
	})

	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 ImportRows from 2 pairs, got %d", len(res.Rows))
	}
	if res.Rows[0].PairIndex != 1 || res.Rows[1].PairIndex != 2 {
		t.Fatalf("pair ordering wrong: %+v", res.Rows)
	}
	for _, row := range res.Rows {
		if row.ProductName != "Milk" || row.Category != "Dairy" {
			t.Fatalf("shared fields must be carried by each pair row: %+v", row)
		}
	}
	if res.Rows[1].Supplier != "Tara" || res.Rows[1].Price != 6.1 {
		t.Fatalf("pair 2 values wrong: %+v", res.Rows[1])
	}
}

func TestNormalizeRowsRowErrors(t *testing.T) {
	res := NormalizeRows(NormalizeInput{
		Grid: RawGrid{
			{"Name", "Category", "Supplier", "Price", "Discount"},
			{"", "Dairy", "Tnuva", "5.90", ""},        // missing product name
			{"Milk", "Dairy", "Tnuva", "-2", ""},      // invalid price
			{"Milk", "Dairy", "Tnuva", "5.90", "150"}, // discount out of range
			{"Milk", "Dairy", "Tnuva", "5.90", "10"},  // fine
		},
		HasHeader: true,
		Mapping: ColumnMapping{
			FieldProductName:     0,
			FieldCategory:        1,
			"supplier_1":         2,
			"price_1":            3,
			"discount_percent_1": 4,
		},
	})

	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 surviving row, got %d: %+v", len(res.Rows), res.Rows)
	}
	if res.Rows[0].DiscountPercent != 10 {
		t.Fatalf("discount wrong: %+v", res.Rows[0])
	}
	if len(res.RowErrors) != 3 {
		t.Fatalf("expected 3 row errors, got %v", res.RowErrors)
	}
	if res.RowErrors[0].Row != 2 || res.RowErrors[1].Row != 3 || res.RowErrors[2].Row != 4 {
		t.Fatalf("row numbers wrong: %v", res.RowErrors)
	}
}

func TestNormalizeRowsIgnoredRowsKeepNumbering(t *testing.T) {
	res := NormalizeRows(NormalizeInput{
		Grid: RawGrid{
			{"Name", "Category", "Supplier", "Price"},
			{"Skip me", "Dairy", "Tnuva", "bad"},
			{"", "Dairy", "Tnuva", "5.90"},
		},
		HasHeader:   true,
		Mapping:     basicMapping(),
		IgnoredRows: map[int]bool{0: true},
	})

	if len(res.Rows) != 0 {
		t.Fatalf("expected no rows, got %+v", res.Rows)
	}
	// ignored row 0 is filtered, and row numbering is not shifted: the second
	// data row still reports as sheet row 3
	if len(res.RowErrors) != 1 || res.RowErrors[0].Row != 3 {
		t.Fatalf("expected a single error at row 3, got %v", res.RowErrors)
	}
}

func TestNormalizeRowsManualOverridePrecedence(t *testing.T) {
	grid := RawGrid{
		{"Milk", "Dairy", "Tnuva", "5.90"},
		{"Bread", "Bakery", "Angel", "8.00"},
	}

	t.Run("global category when no column mapped", func(t *testing.T) {
		res := NormalizeRows(NormalizeInput{
			Grid:      grid,
			Mapping:   ColumnMapping{FieldProductName: 0, "supplier_1": 2, "price_1": 3},
			Overrides: ManualOverrides{Global: map[string]string{FieldCategory: "General"}},
		})
		for _, row := range res.Rows {
			if row.Category != "General" {
				t.Fatalf("expected global category, got %+v", row)
			}
		}
	})

	t.Run("row override beats global override", func(t *testing.T) {
		res := NormalizeRows(NormalizeInput{
			Grid:    grid,
			Mapping: ColumnMapping{FieldProductName: 0, "supplier_1": 2, "price_1": 3},
			Overrides: ManualOverrides{
				Global: map[string]string{FieldCategory: "General"},
				Rows:   map[int]map[string]string{1: {FieldCategory: "Bakery Special"}},
			},
		})
		if res.Rows[0].Category != "General" || res.Rows[1].Category != "Bakery Special" {
			t.Fatalf("precedence wrong: %+v", res.Rows)
		}
	})

	t.Run("global category beats mapped column", func(t *testing.T) {
		res := NormalizeRows(NormalizeInput{
			Grid:      grid,
			Mapping:   basicMapping(),
			Overrides: ManualOverrides{Global: map[string]string{FieldCategory: "Everything"}},
		})
		for _, row := range res.Rows {
			if row.Category != "Everything" {
				t.Fatalf("global manual value should beat mapped column: %+v", row)
			}
		}
	})

	t.Run("mapped supplier column beats global manual supplier", func(t *testing.T) {
		res := NormalizeRows(NormalizeInput{
			Grid:      grid,
			Mapping:   basicMapping(),
			Overrides: ManualOverrides{Global: map[string]string{FieldSupplier: "Fallback Ltd"}},
		})
		if res.Rows[0].Supplier != "Tnuva" || res.Rows[1].Supplier != "Angel" {
			t.Fatalf("mapped supplier column must stay authoritative: %+v", res.Rows)
		}
	})

	t.Run("row manual supplier beats mapped column", func(t *testing.T) {
		res := NormalizeRows(NormalizeInput{
			Grid:    grid,
			Mapping: basicMapping(),
			Overrides: ManualOverrides{
				Rows: map[int]map[string]string{0: {FieldSupplier: "Corrected Ltd"}},
			},
		})
		if res.Rows[0].Supplier != "Corrected Ltd" {
			t.Fatalf("row manual supplier should win: %+v", res.Rows[0])
		}
		if res.Rows[1].Supplier != "Angel" {
			t.Fatalf("other rows unaffected: %+v", res.Rows[1])
		}
	})
}

func TestNormalizeRowsSharedDiscountColumnAppliesToAllPairs(t *testing.T) {
	res := NormalizeRows(NormalizeInput{
		Grid: RawGrid{
			{"Milk", "Tnuva", "10.00", "Tara", "20.00", "5"},
		},
		Mapping: ColumnMapping{
			FieldProductName:     0,
			"supplier_1":         1,
			"price_1":            2,
			"supplier_2":         3,
			"price_2":            4,
			FieldDiscountPercent: 5,
		},
	})
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %+v", res.Rows)
	}
	for _, row := range res.Rows {
		if row.DiscountPercent != 5 {
			t.Fatalf("shared discount column should reach pair %d: %+v", row.PairIndex, row)
		}
	}
}

func TestNormalizeRowsPackageQuantityValidation(t *testing.T) {
	res := NormalizeRows(NormalizeInput{
		Grid: RawGrid{
			{"Milk", "Tnuva", "5.90", "-4"},
			{"Bread", "Angel", "8.00", "12"},
		},
		Mapping: ColumnMapping{
			FieldProductName:     0,
			"supplier_1":         1,
			"price_1":            2,
			FieldPackageQuantity: 3,
		},
	})
	if len(res.Rows) != 1 {
		t.Fatalf("expected invalid package quantity to skip the row: %+v", res.Rows)
	}
	if res.Rows[0].PackageQuantity == nil || *res.Rows[0].PackageQuantity != 12 {
		t.Fatalf("package quantity not carried: %+v", res.Rows[0])
	}
	if len(res.RowErrors) != 1 || res.RowErrors[0].Row != 1 {
		t.Fatalf("expected error for row 1, got %v", res.RowErrors)
	}
}
