package importer

import (
	"math"
	"testing"
)

func TestRoundHalfUp(t *testing.T) {
	cases := []struct {
		v         float64
		precision int
		want      float64
	}{
		{10.125, 2, 10.13},
		{10.124, 2, 10.12},
		{2.5, 0, 3},
		{153.4, 1, 153.4},
		{1.005, 2, 1.01},
		{7, 2, 7},
	}
	for _, tc := range cases {
		if got := RoundHalfUp(tc.v, tc.precision); got != tc.want {
			t.Fatalf("RoundHalfUp(%v, %d) = %v, want %v", tc.v, tc.precision, got, tc.want)
		}
	}
}

func TestRoundHalfUpClampsPrecision(t *testing.T) {
	if got := RoundHalfUp(1.6, -3); got != 2 {
		t.Fatalf("negative precision should clamp to 0, got %v", got)
	}
	if got := RoundHalfUp(1.123456789, 99); got != 1.12345679 {
		t.Fatalf("precision above 8 should clamp to 8, got %v", got)
	}
}

func TestCalcCostAfterDiscount(t *testing.T) {
	if got := CalcCostAfterDiscount(100, 15, 2); got != 85 {
		t.Fatalf("expected 85, got %v", got)
	}
	if got := CalcCostAfterDiscount(49.9, 0, 2); got != 49.9 {
		t.Fatalf("zero discount must pass cost through exactly, got %v", got)
	}
	if got := CalcCostAfterDiscount(49.9, -10, 2); got != 49.9 {
		t.Fatalf("negative discount must pass cost through, got %v", got)
	}
}

func TestCalcCostAfterDiscountNeverExceedsCost(t *testing.T) {
	for d := 0.0; d <= 100; d += 2.5 {
		for _, c := range []float64{0, 0.01, 9.99, 118, 5000} {
			got := CalcCostAfterDiscount(c, d, 2)
			if got > c {
				t.Fatalf("cost %v discount %v: result %v exceeds cost", c, d, got)
			}
			if d == 0 && got != c {
				t.Fatalf("cost %v discount 0: result %v not exact", c, got)
			}
		}
	}
}

func TestCalcSellPriceMarginAndVAT(t *testing.T) {
	// gross 118 at 18% VAT is net 100; +30% margin = 130; +VAT = 153.4
	got := CalcSellPrice(SellPriceInput{
		Cost: 118, MarginPercent: 30, VATPercent: 18,
		UseMargin: true, UseVAT: true, Precision: 2,
	})
	if got != 153.4 {
		t.Fatalf("expected 153.4, got %v", got)
	}
}

func TestCalcSellPriceToggleMatrix(t *testing.T) {
	in := SellPriceInput{Cost: 118, MarginPercent: 30, VATPercent: 18, Precision: 2}

	t.Run("no margin no vat", func(t *testing.T) {
		if got := CalcSellPrice(in); got != 118 {
			t.Fatalf("expected 118, got %v", got)
		}
	})
	t.Run("margin only", func(t *testing.T) {
		with := in
		with.UseMargin = true
		if got := CalcSellPrice(with); got != 153.4 {
			t.Fatalf("expected 153.4, got %v", got)
		}
	})
	t.Run("vat only is identity on gross cost", func(t *testing.T) {
		with := in
		with.UseVAT = true
		if got := CalcSellPrice(with); got != 118 {
			t.Fatalf("net-extract then re-apply VAT should round-trip, got %v", got)
		}
	})
	t.Run("margin and vat", func(t *testing.T) {
		with := in
		with.UseMargin = true
		with.UseVAT = true
		if got := CalcSellPrice(with); got != 153.4 {
			t.Fatalf("expected 153.4, got %v", got)
		}
	})
}

func TestCalcSellPriceUsesCostAfterDiscount(t *testing.T) {
	after := 90.0
	got := CalcSellPrice(SellPriceInput{
		Cost: 118, CostAfterDiscount: &after,
		MarginPercent: 10, UseMargin: true, Precision: 2,
	})
	if got != 99 {
		t.Fatalf("expected 99, got %v", got)
	}
}

func TestCalcSellPriceVATRoundTripProperty(t *testing.T) {
	for _, gross := range []float64{0.01, 1, 49.9, 118, 999.99} {
		got := CalcSellPrice(SellPriceInput{Cost: gross, VATPercent: 17, UseVAT: true, Precision: 2})
		if math.Abs(got-RoundHalfUp(gross, 2)) > 1e-9 {
			t.Fatalf("VAT round-trip for %v returned %v", gross, got)
		}
	}
}
