package economy

import (
	"errors"
	"strings"
	"testing"

	"mintage/internal/money"
)

func TestCreateCompanyValidation(t *testing.T) {
	base := func() CreateCompanyInput {
		return CreateCompanyInput{
			OwnerID:  "alice",
			Name:     "Mintworks",
			Currency: CurrencyCoin,
			Wage:     "10.0000",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*CreateCompanyInput)
		wantErr error
	}{
		{"missing owner", func(in *CreateCompanyInput) { in.OwnerID = "  " }, ErrEmptyParty},
		{"empty name", func(in *CreateCompanyInput) { in.Name = "" }, ErrInvalidCompany},
		{"name too long", func(in *CreateCompanyInput) { in.Name = strings.Repeat("x", 65) }, ErrInvalidCompany},
		{"bad currency", func(in *CreateCompanyInput) { in.Currency = "DOGE" }, ErrUnknownCurrency},
		{"zero wage", func(in *CreateCompanyInput) { in.Wage = "0" }, money.ErrInvalidAmount},
		{"negative wage", func(in *CreateCompanyInput) { in.Wage = "-5.0000" }, money.ErrInvalidAmount},
		{"malformed wage", func(in *CreateCompanyInput) { in.Wage = "ten" }, money.ErrInvalidAmount},
		{"negative productivity", func(in *CreateCompanyInput) { in.Productivity = "-1" }, money.ErrInvalidAmount},
		{"negative headcount", func(in *CreateCompanyInput) { in.MaxEmployees = -1 }, ErrInvalidCompany},
		{"headcount over cap", func(in *CreateCompanyInput) { in.MaxEmployees = MaxEmployeesCap + 1 }, ErrInvalidCompany},
	}
	for _, tc := range tests {
		in := base()
		tc.mutate(&in)
		if err := validateCreateCompany(&in); !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestCreateCompanyDefaults(t *testing.T) {
	in := CreateCompanyInput{
		OwnerID:  " alice ",
		Name:     " Mintworks ",
		Currency: CurrencyCoin,
		Wage:     "10.0000",
	}
	if err := validateCreateCompany(&in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.OwnerID != "alice" || in.Name != "Mintworks" {
		t.Fatalf("input not trimmed: %q %q", in.OwnerID, in.Name)
	}
	if in.MaxEmployees != DefaultMaxEmployees {
		t.Fatalf("max employees = %d, want default %d", in.MaxEmployees, DefaultMaxEmployees)
	}
	if in.Productivity != "1.0000" {
		t.Fatalf("productivity = %q, want neutral default", in.Productivity)
	}
}
