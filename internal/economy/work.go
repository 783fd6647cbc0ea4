package economy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mintage/internal/ledger"
	"mintage/internal/money"
	"mintage/internal/treasury"
)

// WorkShift pays a player one shift's wage from their employer's funds.
// Gating checks (energy floor, cooldown) run before any transaction is
// opened; a rejected shift touches nothing. If the employer cannot cover
// the gross wage it is marked INSOLVENT and that state transition commits
// even though the payment itself is rejected.
func (s *Service) WorkShift(ctx context.Context, accountID string) (WorkResult, error) {
	var out WorkResult
	accountID = strings.TrimSpace(accountID)

	var energy, happiness int
	var companyID *int64
	var lastShift *time.Time
	err := s.db.QueryRow(ctx, `
		SELECT energy, happiness, company_id, last_shift_at
		FROM players
		WHERE account_id = $1
	`, accountID).Scan(&energy, &happiness, &companyID, &lastShift)
	if err == pgx.ErrNoRows {
		return out, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return out, err
	}
	if companyID == nil {
		return out, ErrNoEmployer
	}
	if energy < MinEnergyToWork {
		return out, fmt.Errorf("%w: energy %d, need %d", ErrTooExhausted, energy, MinEnergyToWork)
	}
	if lastShift != nil {
		if until := lastShift.Add(ShiftCooldown); time.Now().Before(until) {
			return out, fmt.Errorf("%w: next shift at %s", ErrShiftCooldown, until.UTC().Format(time.RFC3339))
		}
	}

	rate, err := RateFor(TypeWork)
	if err != nil {
		return out, err
	}

	err = s.runSerializable(ctx, func(tx pgx.Tx) error {
		// Re-read the gates under lock; the pre-check above is only a
		// cheap fast-fail and cannot be trusted across transactions.
		if err := tx.QueryRow(ctx, `
			SELECT energy, happiness, company_id, last_shift_at
			FROM players
			WHERE account_id = $1
			FOR UPDATE
		`, accountID).Scan(&energy, &happiness, &companyID, &lastShift); err != nil {
			return err
		}
		if companyID == nil {
			return ErrNoEmployer
		}
		cID := *companyID
		if energy < MinEnergyToWork {
			return fmt.Errorf("%w: energy %d, need %d", ErrTooExhausted, energy, MinEnergyToWork)
		}
		if lastShift != nil && time.Now().Before(lastShift.Add(ShiftCooldown)) {
			return ErrShiftCooldown
		}

		var company struct {
			Name         string
			Currency     string
			Wage         string
			Productivity string
			Status       string
		}
		err := tx.QueryRow(ctx, `
			SELECT name, currency, wage::text, productivity::text, status
			FROM companies
			WHERE id = $1
			FOR UPDATE
		`, cID).Scan(&company.Name, &company.Currency, &company.Wage, &company.Productivity, &company.Status)
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: %d", ErrCompanyNotFound, cID)
		}
		if err != nil {
			return err
		}
		switch company.Status {
		case CompanyActive:
		case CompanySuspended:
			return fmt.Errorf("%w: %s", ErrCompanySuspended, company.Name)
		default:
			return fmt.Errorf("%w: %s", ErrCompanyInsolvent, company.Name)
		}

		grossWanted, mods, err := grossWage(company.Wage, energy, happiness, company.Productivity)
		if err != nil {
			return err
		}

		var funds string
		if err := tx.QueryRow(ctx, `
			SELECT balance::text
			FROM company_funds
			WHERE company_id = $1 AND currency = $2
			FOR UPDATE
		`, cID, company.Currency).Scan(&funds); err != nil {
			if err == pgx.ErrNoRows {
				funds = money.Zero
			} else {
				return err
			}
		}

		short, err := money.LT(funds, grossWanted)
		if err != nil {
			return err
		}
		if short {
			// The insolvency transition is a real side effect of the
			// rejection and must survive it: commit, then reject.
			if _, err := tx.Exec(ctx, `
				UPDATE companies
				SET status = $1, updated_at = now()
				WHERE id = $2
			`, CompanyInsolvent, cID); err != nil {
				return err
			}
			if err := tx.Commit(ctx); err != nil {
				return err
			}
			s.log.Warn("employer went insolvent during payroll",
				"company", company.Name, "wanted", grossWanted, "funds", funds)
			return fmt.Errorf("%w: %s cannot cover %s %s", ErrCompanyInsolvent, company.Name, grossWanted, company.Currency)
		}

		gross, tax, net, err := money.TaxSplit(grossWanted, rate)
		if err != nil {
			return err
		}
		if err := s.verifySplit(gross, tax, net, TypeWork); err != nil {
			return err
		}

		newFunds, err := money.Sub(funds, gross)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE company_funds
			SET balance = $1::numeric, updated_at = now()
			WHERE company_id = $2 AND currency = $3
		`, newFunds, cID, company.Currency); err != nil {
			return err
		}

		balances, err := lockBalances(ctx, tx, company.Currency, []string{accountID})
		if err != nil {
			return err
		}
		newBalance, err := money.Add(balances[accountID], net)
		if err != nil {
			return err
		}
		if err := setBalance(ctx, tx, accountID, company.Currency, newBalance); err != nil {
			return err
		}

		if err := treasury.Collect(ctx, tx, CategoryFor(TypeWork), company.Currency, tax); err != nil {
			return err
		}

		worker, err := getAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		entry := &ledger.Entry{
			TxID:         uuid.NewString(),
			SenderID:     fmt.Sprintf("company:%d", cID),
			SenderName:   company.Name,
			ReceiverID:   accountID,
			ReceiverName: worker.DisplayName,
			Currency:     company.Currency,
			Gross:        gross,
			Tax:          tax,
			Net:          net,
			TxType:       TypeWork,
			Description:  fmt.Sprintf("shift wages from %s", company.Name),
		}
		if err := ledger.Append(ctx, tx, entry); err != nil {
			return err
		}

		nextEnergy := clampVital(energy - ShiftEnergyCost)
		nextHappiness := clampVital(happiness - ShiftHappinessCost)
		if _, err := tx.Exec(ctx, `
			UPDATE players
			SET energy = $1, happiness = $2, last_shift_at = now()
			WHERE account_id = $3
		`, nextEnergy, nextHappiness, accountID); err != nil {
			return err
		}

		out = WorkResult{
			Company:    company.Name,
			Earnings:   Earnings{Gross: gross, Taxes: tax, Net: net},
			Modifiers:  mods,
			Costs:      ShiftCosts{Energy: ShiftEnergyCost, Happiness: ShiftHappinessCost},
			Stats:      Vitals{Energy: nextEnergy, Happiness: nextHappiness},
			NewBalance: newBalance,
			Currency:   company.Currency,
			TxID:       entry.TxID,
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return WorkResult{}, err
	}
	return out, nil
}
