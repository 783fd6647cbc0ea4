package money

import (
	"errors"
	"testing"
)

func TestAddExact(t *testing.T) {
	got, err := Add("0.10", "0.20")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "0.3000" {
		t.Fatalf("0.10 + 0.20 = %q, want 0.3000", got)
	}
}

func TestAddSubRoundTrip(t *testing.T) {
	pairs := [][2]string{
		{"100.0000", "40.0000"},
		{"0.0001", "0.0001"},
		{"123456789.9999", "0.1234"},
		{"-5.5000", "2.2500"},
	}
	for _, p := range pairs {
		sum, err := Add(p[0], p[1])
		if err != nil {
			t.Fatalf("add(%q,%q): %v", p[0], p[1], err)
		}
		back, err := Sub(sum, p[1])
		if err != nil {
			t.Fatalf("sub(%q,%q): %v", sum, p[1], err)
		}
		want := Format(MustParse(p[0]))
		if back != want {
			t.Fatalf("sub(add(%q,%q),%q) = %q, want %q", p[0], p[1], p[1], back, want)
		}
	}
}

func TestRoundHalfUp(t *testing.T) {
	// Inputs are always scale-4; rounding only arises from products
	// and quotients whose exact value carries more precision.
	tests := []struct {
		a, b string
		want string
	}{
		{"0.0025", "0.02", "0.0001"},   // 0.00005 rounds up
		{"0.0002", "0.2", "0.0000"},    // 0.00004 rounds down
		{"1.2345", "1.0001", "1.2346"}, // 1.23462345
		{"2.5", "2", "5.0000"},
	}
	for _, tc := range tests {
		got, err := Mul(tc.a, tc.b)
		if err != nil {
			t.Fatalf("mul(%q,%q): %v", tc.a, tc.b, err)
		}
		if got != tc.want {
			t.Fatalf("mul(%q,%q) = %q, want %q", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestDivRoundsOnce(t *testing.T) {
	// 0.4999/10000 is 0.00004999 exactly. A two-step round (first to a
	// finer scale, then to scale 4) would see 0.000050 and answer
	// 0.0001; the quotient is below the half mark and must stay zero.
	got, err := Div("0.4999", "10000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "0.0000" {
		t.Fatalf("0.4999/10000 = %q, want 0.0000", got)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	bad := []string{"", "1e5", "1E5", "1,000", "10.", ".5", "12.3.4", "abc", "0x10", "1 0", "+-1",
		"0.00001", "1.00005", "-0.000050"}
	for _, s := range bad {
		if _, err := Parse(s); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("expected %q to be rejected, got err=%v", s, err)
		}
	}
	good := []string{"0", "-0.5", "+3.14", "100.0000", "0.0001"}
	for _, s := range good {
		if _, err := Parse(s); err != nil {
			t.Fatalf("expected %q to parse: %v", s, err)
		}
	}
}

func TestDivisionByZero(t *testing.T) {
	if _, err := Div("10.0000", "0"); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", err)
	}
	got, err := Div("10.0000", "3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "3.3333" {
		t.Fatalf("10/3 = %q, want 3.3333", got)
	}
}

func TestTaxSplitReconciles(t *testing.T) {
	grosses := []string{"40.0000", "0.0001", "2.3800", "999999.9999", "13.3337"}
	rates := []string{"0", "0.05", "0.10", "0.15", "0.3333", "1"}
	for _, g := range grosses {
		for _, r := range rates {
			gross, tax, net, err := TaxSplit(g, r)
			if err != nil {
				t.Fatalf("TaxSplit(%q,%q): %v", g, r, err)
			}
			sum, err := Add(tax, net)
			if err != nil {
				t.Fatalf("add: %v", err)
			}
			if sum != gross {
				t.Fatalf("TaxSplit(%q,%q): tax %s + net %s = %s, want %s", g, r, tax, net, sum, gross)
			}
		}
	}
}

func TestTaxSplitExample(t *testing.T) {
	gross, tax, net, err := TaxSplit("40.0000", "0.05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gross != "40.0000" || tax != "2.0000" || net != "38.0000" {
		t.Fatalf("got gross=%s tax=%s net=%s", gross, tax, net)
	}
}

func TestTaxSplitRejectsBadRate(t *testing.T) {
	for _, r := range []string{"-0.01", "1.0001", "2"} {
		if _, _, _, err := TaxSplit("10.0000", r); !errors.Is(err, ErrInvalidRate) {
			t.Fatalf("expected rate %q to be rejected, got %v", r, err)
		}
	}
}

func TestPredicates(t *testing.T) {
	if ok, _ := GT("1.0001", "1.0000"); !ok {
		t.Fatalf("expected 1.0001 > 1.0000")
	}
	if ok, _ := LT("-0.0001", "0"); !ok {
		t.Fatalf("expected -0.0001 < 0")
	}
	if ok, _ := EQ("1.50", "1.5000"); !ok {
		t.Fatalf("expected 1.50 == 1.5000")
	}
	if ok, _ := GTE("2", "2.0000"); !ok {
		t.Fatalf("expected 2 >= 2.0000")
	}
	if ok, _ := IsZero("0.0000"); !ok {
		t.Fatalf("expected 0.0000 to be zero")
	}
	if ok, _ := IsPositive("0.0001"); !ok {
		t.Fatalf("expected 0.0001 to be positive")
	}
	if ok, _ := IsNegative("-3"); !ok {
		t.Fatalf("expected -3 to be negative")
	}
}
