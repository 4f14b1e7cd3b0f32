package importer

import "testing"

func TestParseNumberSmart(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.234,56", 1234.56, true},
		{"1,234.56", 1234.56, true},
		{"12,5%", 12.5, true},
		{"1,234", 1234, true},
		{"1,234,567", 1234567, true},
		{"1.234.567", 1234567, true},
		{"12.5", 12.5, true},
		{"₪ 49.90", 49.9, true},
		{"$1,299.00", 1299, true},
		{" 197 ,00", 197, true},
		{"-3.5", -3.5, true},
		{"", 0, false},
		{"n/a", 0, false},
		{"--", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseNumberSmart(tc.in)
			if ok != tc.ok {
				t.Fatalf("ParseNumberSmart(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Fatalf("ParseNumberSmart(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseNumberSmartNullIsNotZero(t *testing.T) {
	if _, ok := ParseNumberSmart("abc"); ok {
		t.Fatal("expected unparseable input to report ok=false")
	}
	if v, ok := ParseNumberSmart("0"); !ok || v != 0 {
		t.Fatalf("expected literal zero to parse, got %v ok=%v", v, ok)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  Milk   3%  ", "milk 3%"},
		{"MILK 3%", "milk 3%"},
		{"\tחלב  תנובה ", "חלב תנובה"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeName(tc.in); got != tc.want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
