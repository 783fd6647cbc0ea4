package economy

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mintage/internal/ledger"
	"mintage/internal/money"
	"mintage/internal/treasury"
)

// validateCreateCompany normalizes and checks the input without touching
// the store. Zero MaxEmployees means the default headcount; zero
// Productivity means neutral.
func validateCreateCompany(in *CreateCompanyInput) error {
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	in.Name = strings.TrimSpace(in.Name)
	if in.OwnerID == "" {
		return ErrEmptyParty
	}
	if in.Name == "" || len(in.Name) > 64 {
		return fmt.Errorf("%w: name must be 1..64 characters", ErrInvalidCompany)
	}
	if !ValidCurrency(in.Currency) {
		return fmt.Errorf("%w: %q", ErrUnknownCurrency, in.Currency)
	}
	pos, err := money.IsPositive(in.Wage)
	if err != nil {
		return err
	}
	if !pos {
		return fmt.Errorf("%w: wage must be positive, got %q", money.ErrInvalidAmount, in.Wage)
	}
	if in.Productivity == "" {
		in.Productivity = "1.0000"
	}
	pos, err = money.IsPositive(in.Productivity)
	if err != nil {
		return err
	}
	if !pos {
		return fmt.Errorf("%w: productivity must be positive, got %q", money.ErrInvalidAmount, in.Productivity)
	}
	if in.MaxEmployees == 0 {
		in.MaxEmployees = DefaultMaxEmployees
	}
	if in.MaxEmployees < 1 || in.MaxEmployees > MaxEmployeesCap {
		return fmt.Errorf("%w: max employees must be 1..%d", ErrInvalidCompany, MaxEmployeesCap)
	}
	return nil
}

// CreateCompany registers a new employer owned by an existing account,
// with empty funds in its payroll currency. Companies start ACTIVE but
// cannot pay a shift until someone deposits capital.
func (s *Service) CreateCompany(ctx context.Context, in CreateCompanyInput) (Company, error) {
	var out Company
	if err := validateCreateCompany(&in); err != nil {
		return out, err
	}

	err := s.runSerializable(ctx, func(tx pgx.Tx) error {
		if err := claimIdempotency(ctx, tx, in.OwnerID, in.IdempotencyKey, "create_company"); err != nil {
			return err
		}

		owner, err := getAccount(ctx, tx, in.OwnerID)
		if err != nil {
			return err
		}
		if owner.Frozen {
			return fmt.Errorf("%w: %s", ErrAccountFrozen, owner.ID)
		}
		if !owner.Active {
			return fmt.Errorf("%w: %s", ErrAccountInactive, owner.ID)
		}

		out = Company{
			Name:          in.Name,
			OwnerID:       in.OwnerID,
			Currency:      in.Currency,
			Wage:          money.Format(money.MustParse(in.Wage)),
			Productivity:  money.Format(money.MustParse(in.Productivity)),
			Status:        CompanyActive,
			MaxEmployees:  in.MaxEmployees,
			EmployeeCount: 0,
			Funds:         money.Zero,
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO companies (name, owner_id, currency, wage, productivity, status, max_employees, employee_count)
			VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, 0)
			RETURNING id, created_at
		`, out.Name, out.OwnerID, out.Currency, out.Wage, out.Productivity, out.Status, out.MaxEmployees,
		).Scan(&out.ID, &out.CreatedAt); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO company_funds (company_id, currency, balance)
			VALUES ($1, $2, 0)
			ON CONFLICT (company_id, currency) DO NOTHING
		`, out.ID, out.Currency); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return Company{}, err
	}
	return out, nil
}

// Hire puts a player on the company's payroll. Only the owner may hire,
// the company must be ACTIVE with an open position, and the player must
// not already have an employer. The headcount is enforced under the same
// lock that updates it.
func (s *Service) Hire(ctx context.Context, in HireInput) error {
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	in.PlayerID = strings.TrimSpace(in.PlayerID)
	if in.OwnerID == "" || in.PlayerID == "" {
		return ErrEmptyParty
	}
	if in.PlayerID == SystemAccountID {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, in.PlayerID)
	}

	return s.runSerializable(ctx, func(tx pgx.Tx) error {
		if err := claimIdempotency(ctx, tx, in.OwnerID, in.IdempotencyKey, "hire"); err != nil {
			return err
		}

		var ownerID, status string
		var maxEmployees, employeeCount int
		err := tx.QueryRow(ctx, `
			SELECT owner_id, status, max_employees, employee_count
			FROM companies
			WHERE id = $1
			FOR UPDATE
		`, in.CompanyID).Scan(&ownerID, &status, &maxEmployees, &employeeCount)
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: %d", ErrCompanyNotFound, in.CompanyID)
		}
		if err != nil {
			return err
		}
		if ownerID != in.OwnerID {
			return ErrNotCompanyOwner
		}
		if status != CompanyActive {
			return fmt.Errorf("%w: status %s", ErrCompanySuspended, status)
		}
		if employeeCount >= maxEmployees {
			return fmt.Errorf("%w: %d of %d positions filled", ErrCompanyFull, employeeCount, maxEmployees)
		}

		var current *int64
		err = tx.QueryRow(ctx, `
			SELECT company_id
			FROM players
			WHERE account_id = $1
			FOR UPDATE
		`, in.PlayerID).Scan(&current)
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, in.PlayerID)
		}
		if err != nil {
			return err
		}
		if current != nil {
			return fmt.Errorf("%w: company %d", ErrAlreadyEmployed, *current)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE players SET company_id = $1 WHERE account_id = $2
		`, in.CompanyID, in.PlayerID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE companies
			SET employee_count = employee_count + 1, updated_at = now()
			WHERE id = $1
		`, in.CompanyID); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}

// Quit takes the player off their employer's payroll and frees the
// position.
func (s *Service) Quit(ctx context.Context, accountID string) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return ErrEmptyParty
	}

	return s.runSerializable(ctx, func(tx pgx.Tx) error {
		var current *int64
		err := tx.QueryRow(ctx, `
			SELECT company_id
			FROM players
			WHERE account_id = $1
			FOR UPDATE
		`, accountID).Scan(&current)
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
		}
		if err != nil {
			return err
		}
		if current == nil {
			return ErrNoEmployer
		}

		if _, err := tx.Exec(ctx, `
			UPDATE players SET company_id = NULL WHERE account_id = $1
		`, accountID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE companies
			SET employee_count = GREATEST(employee_count - 1, 0), updated_at = now()
			WHERE id = $1
		`, *current); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}

// FundCompany moves capital from the owner's balance into company funds,
// in the company's payroll currency. The movement is taxed and ledgered
// like any other transfer; the company side is recorded under a synthetic
// company:<id> party.
func (s *Service) FundCompany(ctx context.Context, in FundCompanyInput) (DepositResult, error) {
	var out DepositResult
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	if in.OwnerID == "" {
		return out, ErrEmptyParty
	}
	in.Amount = strings.TrimSpace(in.Amount)
	pos, err := money.IsPositive(in.Amount)
	if err != nil {
		return out, err
	}
	if !pos {
		return out, fmt.Errorf("%w: amount must be positive, got %q", money.ErrInvalidAmount, in.Amount)
	}

	rate, err := RateFor(TypeTransfer)
	if err != nil {
		return out, err
	}

	err = s.runSerializable(ctx, func(tx pgx.Tx) error {
		if err := claimIdempotency(ctx, tx, in.OwnerID, in.IdempotencyKey, "fund_company"); err != nil {
			return err
		}

		var company struct {
			Name     string
			OwnerID  string
			Currency string
			Status   string
		}
		err := tx.QueryRow(ctx, `
			SELECT name, owner_id, currency, status
			FROM companies
			WHERE id = $1
			FOR UPDATE
		`, in.CompanyID).Scan(&company.Name, &company.OwnerID, &company.Currency, &company.Status)
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: %d", ErrCompanyNotFound, in.CompanyID)
		}
		if err != nil {
			return err
		}
		if company.OwnerID != in.OwnerID {
			return ErrNotCompanyOwner
		}
		if company.Status == CompanyBankrupt {
			return fmt.Errorf("%w: %s", ErrCompanyInsolvent, company.Name)
		}

		owner, err := getAccount(ctx, tx, in.OwnerID)
		if err != nil {
			return err
		}
		if owner.Frozen {
			return fmt.Errorf("%w: %s", ErrAccountFrozen, owner.ID)
		}
		if !owner.Active {
			return fmt.Errorf("%w: %s", ErrAccountInactive, owner.ID)
		}

		gross, tax, net, err := money.TaxSplit(in.Amount, rate)
		if err != nil {
			return err
		}
		if err := s.verifySplit(gross, tax, net, TypeTransfer); err != nil {
			return err
		}

		balances, err := lockBalances(ctx, tx, company.Currency, []string{in.OwnerID})
		if err != nil {
			return err
		}
		before := balances[in.OwnerID]
		short, err := money.LT(before, gross)
		if err != nil {
			return err
		}
		if short {
			return fmt.Errorf("%w: required %s, available %s %s", ErrInsufficientFunds, gross, before, company.Currency)
		}
		after, err := money.Sub(before, gross)
		if err != nil {
			return err
		}
		if err := setBalance(ctx, tx, in.OwnerID, company.Currency, after); err != nil {
			return err
		}

		var funds string
		if err := tx.QueryRow(ctx, `
			SELECT balance::text
			FROM company_funds
			WHERE company_id = $1 AND currency = $2
			FOR UPDATE
		`, in.CompanyID, company.Currency).Scan(&funds); err != nil {
			if err == pgx.ErrNoRows {
				funds = money.Zero
			} else {
				return err
			}
		}
		newFunds, err := money.Add(funds, net)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO company_funds (company_id, currency, balance)
			VALUES ($1, $2, $3::numeric)
			ON CONFLICT (company_id, currency) DO UPDATE
			SET balance = EXCLUDED.balance, updated_at = now()
		`, in.CompanyID, company.Currency, newFunds); err != nil {
			return err
		}

		// A deposit re-capitalizes an insolvent employer once it can
		// plausibly cover payroll again.
		if company.Status == CompanyInsolvent {
			if _, err := tx.Exec(ctx, `
				UPDATE companies SET status = $1, updated_at = now() WHERE id = $2
			`, CompanyActive, in.CompanyID); err != nil {
				return err
			}
		}

		if err := treasury.Collect(ctx, tx, CategoryFor(TypeTransfer), company.Currency, tax); err != nil {
			return err
		}

		entry := &ledger.Entry{
			TxID:         uuid.NewString(),
			SenderID:     in.OwnerID,
			SenderName:   owner.DisplayName,
			ReceiverID:   fmt.Sprintf("company:%d", in.CompanyID),
			ReceiverName: company.Name,
			Currency:     company.Currency,
			Gross:        gross,
			Tax:          tax,
			Net:          net,
			TxType:       TypeTransfer,
			Description:  fmt.Sprintf("capital deposit to %s", company.Name),
		}
		if err := ledger.Append(ctx, tx, entry); err != nil {
			return err
		}

		out = DepositResult{
			Company:    company.Name,
			Currency:   company.Currency,
			Gross:      gross,
			Tax:        tax,
			Net:        net,
			OwnerAfter: after,
			Funds:      newFunds,
			TxID:       entry.TxID,
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return DepositResult{}, err
	}
	return out, nil
}

// GetCompany reads one company with its payroll-currency funds.
func (s *Service) GetCompany(ctx context.Context, companyID int64) (Company, error) {
	var out Company
	err := s.db.QueryRow(ctx, `
		SELECT c.id, c.name, c.owner_id, c.currency, c.wage::text, c.productivity::text,
		       c.status, c.max_employees, c.employee_count,
		       COALESCE(f.balance, 0)::text, c.created_at
		FROM companies c
		LEFT JOIN company_funds f ON f.company_id = c.id AND f.currency = c.currency
		WHERE c.id = $1
	`, companyID).Scan(&out.ID, &out.Name, &out.OwnerID, &out.Currency, &out.Wage, &out.Productivity,
		&out.Status, &out.MaxEmployees, &out.EmployeeCount, &out.Funds, &out.CreatedAt)
	if err == pgx.ErrNoRows {
		return out, fmt.Errorf("%w: %d", ErrCompanyNotFound, companyID)
	}
	return out, err
}
