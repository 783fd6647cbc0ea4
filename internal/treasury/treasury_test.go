package treasury

import "testing"

func TestReconcileBalancedSnapshot(t *testing.T) {
	accruals := []Accrual{
		{Category: "transfer_tax", Currency: "COIN", Amount: "2.0000"},
		{Category: "income_tax", Currency: "COIN", Amount: "0.3570"},
		{Category: "vat", Currency: "COIN", Amount: "1.5000"},
		{Category: TotalCategory, Currency: "COIN", Amount: "3.8570"},
		{Category: "vat", Currency: "GEM", Amount: "0.0001"},
		{Category: TotalCategory, Currency: "GEM", Amount: "0.0001"},
	}
	if err := Reconcile(accruals); err != nil {
		t.Fatalf("expected balanced snapshot: %v", err)
	}
}

func TestReconcileDetectsDrift(t *testing.T) {
	accruals := []Accrual{
		{Category: "transfer_tax", Currency: "COIN", Amount: "2.0000"},
		{Category: TotalCategory, Currency: "COIN", Amount: "2.0001"},
	}
	if err := Reconcile(accruals); err == nil {
		t.Fatalf("expected drifted total to fail reconciliation")
	}
}

func TestReconcileEmptySnapshot(t *testing.T) {
	if err := Reconcile(nil); err != nil {
		t.Fatalf("empty snapshot must reconcile: %v", err)
	}
}
