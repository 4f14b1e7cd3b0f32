package importer

import "testing"

func TestDedupeLastRowWins(t *testing.T) {
	rows := []ImportRow{
		{RowNumber: 2, ProductName: "Milk", Supplier: "Tnuva", Category: "Dairy", Price: 5.9},
		{RowNumber: 3, ProductName: "Bread", Supplier: "Angel", Category: "Bakery", Price: 8},
		{RowNumber: 9, ProductName: "  MILK ", Supplier: "tnuva", Category: "dairy", Price: 6.2},
	}

	out := DedupeLastRowWins(rows)
	if len(out) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(out))
	}
	if out[0].Price != 6.2 || out[0].RowNumber != 9 {
		t.Fatalf("latest row must replace the earlier one entirely: %+v", out[0])
	}
	if out[1].ProductName != "Bread" {
		t.Fatalf("unrelated rows must survive: %+v", out[1])
	}
}

func TestDedupeTreatsEmptyCategoryAsDefault(t *testing.T) {
	rows := []ImportRow{
		{ProductName: "Milk", Supplier: "Tnuva", Category: "", Price: 5},
		{ProductName: "Milk", Supplier: "Tnuva", Category: "General", Price: 6},
	}
	out := DedupeLastRowWins(rows)
	if len(out) != 1 || out[0].Price != 6 {
		t.Fatalf("empty category should collide with the default category: %+v", out)
	}
}

func TestDedupeKeepsDistinctCategories(t *testing.T) {
	rows := []ImportRow{
		{ProductName: "Milk", Supplier: "Tnuva", Category: "Dairy", Price: 5},
		{ProductName: "Milk", Supplier: "Tnuva", Category: "Snacks", Price: 6},
	}
	if out := DedupeLastRowWins(rows); len(out) != 2 {
		t.Fatalf("same name under different categories must stay distinct: %+v", out)
	}
}

func TestDedupeReplacesWholeRowNotFields(t *testing.T) {
	qty := 4.0
	rows := []ImportRow{
		{ProductName: "Milk", Supplier: "Tnuva", Price: 5, DiscountPercent: 10, PackageQuantity: &qty},
		{ProductName: "Milk", Supplier: "Tnuva", Price: 6},
	}
	out := DedupeLastRowWins(rows)
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}
	if out[0].DiscountPercent != 0 || out[0].PackageQuantity != nil {
		t.Fatalf("dedupe must not merge field-by-field: %+v", out[0])
	}
}
