// Package treasury accumulates withheld taxes per category and currency.
// The accumulators are a global hot spot: every taxed transaction touches
// them, so mutation is a single in-place increment executed by the store
// rather than a read-modify-write in application code.
package treasury

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mintage/internal/money"
)

// TotalCategory is the running per-currency total; it must always equal the
// sum of the other categories for that currency.
const TotalCategory = "total"

type Accrual struct {
	Category string `json:"category"`
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

// Collect increments the category accumulator and the running total inside
// the caller's transaction. The upsert's DO UPDATE arithmetic happens in the
// store, so concurrent contributions never overwrite each other.
func Collect(ctx context.Context, tx pgx.Tx, category, currency, amount string) error {
	pos, err := money.IsPositive(amount)
	if err != nil {
		return err
	}
	if !pos {
		return fmt.Errorf("treasury: amount must be positive, got %q", amount)
	}
	for _, cat := range []string{category, TotalCategory} {
		if _, err := tx.Exec(ctx, `
			INSERT INTO treasury (category, currency, amount)
			VALUES ($1, $2, $3::numeric)
			ON CONFLICT (category, currency)
			DO UPDATE SET amount = treasury.amount + EXCLUDED.amount
		`, cat, currency, amount); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot returns every accumulator including the totals rows.
func Snapshot(ctx context.Context, pool *pgxpool.Pool) ([]Accrual, error) {
	rows, err := pool.Query(ctx, `
		SELECT category, currency, amount::text
		FROM treasury
		ORDER BY currency, category
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Accrual
	for rows.Next() {
		var a Accrual
		if err := rows.Scan(&a.Category, &a.Currency, &a.Amount); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Reconcile checks the total-equals-sum invariant over a snapshot. Pure so
// the stats tick and tests can run it without a round trip per category.
func Reconcile(accruals []Accrual) error {
	sums := map[string]string{}
	totals := map[string]string{}
	for _, a := range accruals {
		if a.Category == TotalCategory {
			totals[a.Currency] = a.Amount
			continue
		}
		prev, ok := sums[a.Currency]
		if !ok {
			prev = money.Zero
		}
		next, err := money.Add(prev, a.Amount)
		if err != nil {
			return err
		}
		sums[a.Currency] = next
	}
	for currency, total := range totals {
		sum, ok := sums[currency]
		if !ok {
			sum = money.Zero
		}
		eq, err := money.EQ(total, sum)
		if err != nil {
			return err
		}
		if !eq {
			return fmt.Errorf("treasury %s total %s != category sum %s", currency, total, sum)
		}
	}
	return nil
}
