package economy

import (
	"errors"
	"testing"

	"mintage/internal/money"
)

func TestRateTable(t *testing.T) {
	tests := []struct {
		txType string
		want   string
	}{
		{TypeTransfer, "0.05"},
		{TypeWork, "0.15"},
		{TypeSalary, "0.15"},
		{TypeMarketBuy, "0.10"},
		{TypeMarketSell, "0.10"},
		{TypeReward, "0"},
		{TypeSystemMint, "0"},
		{TypeSystemBurn, "0"},
		{TypeRefund, "0"},
	}
	for _, tc := range tests {
		got, err := RateFor(tc.txType)
		if err != nil {
			t.Fatalf("RateFor(%s): %v", tc.txType, err)
		}
		if got != tc.want {
			t.Fatalf("RateFor(%s) = %q, want %q", tc.txType, got, tc.want)
		}
	}
	if _, err := RateFor("BRIBE"); err == nil {
		t.Fatalf("expected unknown type to fail")
	}
}

func TestTaxCategories(t *testing.T) {
	if CategoryFor(TypeTransfer) != "transfer_tax" {
		t.Fatalf("transfer category = %q", CategoryFor(TypeTransfer))
	}
	if CategoryFor(TypeWork) != "income_tax" || CategoryFor(TypeSalary) != "income_tax" {
		t.Fatalf("income category mismatch")
	}
	if CategoryFor(TypeMarketBuy) != "vat" || CategoryFor(TypeMarketSell) != "vat" {
		t.Fatalf("vat category mismatch")
	}
	if CategoryFor(TypeReward) != "" {
		t.Fatalf("untaxed type must have empty category")
	}
}

func TestValidCurrency(t *testing.T) {
	for _, c := range Currencies {
		if !ValidCurrency(c) {
			t.Fatalf("expected %s to be valid", c)
		}
	}
	for _, c := range []string{"", "coin", "USD", "COINS"} {
		if ValidCurrency(c) {
			t.Fatalf("expected %q to be invalid", c)
		}
	}
}

func TestSystemTypes(t *testing.T) {
	for _, tt := range []string{TypeReward, TypeSystemMint, TypeSystemBurn, TypeRefund} {
		if !IsSystemType(tt) {
			t.Fatalf("expected %s to be system-originated", tt)
		}
	}
	for _, tt := range []string{TypeTransfer, TypeWork, TypeMarketBuy} {
		if IsSystemType(tt) {
			t.Fatalf("expected %s to be player-originated", tt)
		}
	}
}

func TestGrossWageReferenceExample(t *testing.T) {
	// energy below the exhaustion threshold, happiness healthy:
	// 0.35*0.85 = 0.2975, 10 * 0.2975 * 0.80 * 1.0 = 2.3800.
	gross, mods, err := grossWage("10.0000", 35, 80, "1.0000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gross != "2.3800" {
		t.Fatalf("gross = %q, want 2.3800", gross)
	}
	if mods.EnergyFactor != "0.2975" {
		t.Fatalf("energy factor = %q, want 0.2975", mods.EnergyFactor)
	}
	if mods.HappinessFactor != "0.8000" {
		t.Fatalf("happiness factor = %q, want 0.8000", mods.HappinessFactor)
	}
	if !mods.Exhausted || mods.Unhappy {
		t.Fatalf("modifier flags wrong: %+v", mods)
	}

	_, tax, net, err := money.TaxSplit(gross, "0.15")
	if err != nil {
		t.Fatalf("tax split: %v", err)
	}
	if tax != "0.3570" || net != "2.0230" {
		t.Fatalf("tax=%s net=%s, want 0.3570/2.0230", tax, net)
	}
}

func TestGrossWageNoPenalties(t *testing.T) {
	gross, mods, err := grossWage("10.0000", 100, 100, "1.0000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gross != "10.0000" {
		t.Fatalf("gross = %q, want 10.0000", gross)
	}
	if mods.Exhausted || mods.Unhappy {
		t.Fatalf("expected no penalties: %+v", mods)
	}
}

func TestGrossWageCriticalHappiness(t *testing.T) {
	// happiness 20 is below the critical threshold: 0.20*0.50 = 0.1000.
	gross, mods, err := grossWage("10.0000", 100, 20, "1.0000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mods.HappinessFactor != "0.1000" {
		t.Fatalf("happiness factor = %q, want 0.1000", mods.HappinessFactor)
	}
	if gross != "1.0000" {
		t.Fatalf("gross = %q, want 1.0000", gross)
	}
	if !mods.Unhappy {
		t.Fatalf("expected unhappy flag")
	}
}

func TestGrossWageRoundsEachStep(t *testing.T) {
	// Intermediate products carry more than four fractional digits and
	// must be rounded before the next multiplication.
	gross, _, err := grossWage("10.0101", 33, 77, "1.0000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// ef = 0.33*0.85 = 0.2805; 10.0101*0.2805 = 2.80783305 -> 2.8078;
	// 2.8078*0.7700 = 2.162006 -> 2.1620.
	if gross != "2.1620" {
		t.Fatalf("gross = %q, want 2.1620", gross)
	}
}

func TestPlayerAccountIDReservesSystem(t *testing.T) {
	for _, id := range []string{"", "   ", SystemAccountID, " " + SystemAccountID + " "} {
		if err := ValidatePlayerAccountID(id); !errors.Is(err, ErrAccountNotFound) {
			t.Fatalf("expected %q to be rejected for registration, got %v", id, err)
		}
	}
	for _, id := range []string{"alice", "bob-2", "systematic"} {
		if err := ValidatePlayerAccountID(id); err != nil {
			t.Fatalf("expected %q to be registrable: %v", id, err)
		}
	}
}

func TestClampVital(t *testing.T) {
	tests := []struct{ in, want int }{
		{-5, 0}, {0, 0}, {55, 55}, {100, 100}, {140, 100},
	}
	for _, tc := range tests {
		if got := clampVital(tc.in); got != tc.want {
			t.Fatalf("clampVital(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
