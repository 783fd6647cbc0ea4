// Package economy is the transaction orchestrator: every value movement in
// the world goes through one of its operations, each of which is a single
// serializable transaction against the store. Balance mutation, treasury
// increment and ledger append always commit together or not at all.
package economy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"mintage/internal/ledger"
	"mintage/internal/money"
	"mintage/internal/treasury"
)

type Service struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func NewService(db *pgxpool.Pool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, log: logger}
}

// EnsureAccount registers a player account with zero balances in every
// currency and fresh vitals. Safe to call repeatedly. The system id is
// reserved; players cannot claim it.
func (s *Service) EnsureAccount(ctx context.Context, accountID, displayName string) error {
	if err := ValidatePlayerAccountID(accountID); err != nil {
		return err
	}
	return s.ensureAccount(ctx, strings.TrimSpace(accountID), displayName, true)
}

// EnsureSystemAccount provisions the reserved mint/burn counterparty at
// startup. It carries balances but no player vitals.
func (s *Service) EnsureSystemAccount(ctx context.Context, displayName string) error {
	return s.ensureAccount(ctx, SystemAccountID, displayName, false)
}

// ValidatePlayerAccountID reports whether an id may be registered by a
// player. Pure check, no store access.
func ValidatePlayerAccountID(accountID string) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" || accountID == SystemAccountID {
		return fmt.Errorf("%w: invalid account id", ErrAccountNotFound)
	}
	return nil
}

func (s *Service) ensureAccount(ctx context.Context, accountID, displayName string, withVitals bool) error {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = accountID
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO accounts (id, display_name, is_active, is_frozen)
		VALUES ($1, $2, true, false)
		ON CONFLICT (id) DO NOTHING
	`, accountID, displayName); err != nil {
		return err
	}
	for _, currency := range Currencies {
		if _, err := tx.Exec(ctx, `
			INSERT INTO account_balances (account_id, currency, balance)
			VALUES ($1, $2, 0)
			ON CONFLICT (account_id, currency) DO NOTHING
		`, accountID, currency); err != nil {
			return err
		}
	}
	if withVitals {
		if _, err := tx.Exec(ctx, `
			INSERT INTO players (account_id, energy, happiness)
			VALUES ($1, 100, 100)
			ON CONFLICT (account_id) DO NOTHING
		`, accountID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// Transfer executes one atomic money movement between two parties.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (Receipt, error) {
	var out Receipt

	in.Amount = strings.TrimSpace(in.Amount)
	pos, err := money.IsPositive(in.Amount)
	if err != nil {
		return out, err
	}
	if !pos {
		return out, fmt.Errorf("%w: amount must be positive, got %q", money.ErrInvalidAmount, in.Amount)
	}
	if !ValidCurrency(in.Currency) {
		return out, fmt.Errorf("%w: %q", ErrUnknownCurrency, in.Currency)
	}
	if !ValidType(in.TxType) {
		return out, fmt.Errorf("%w: %q", ErrUnknownType, in.TxType)
	}

	// Mint and burn have the system as their fixed counterparty; value
	// enters or leaves the closed economy only through these two types.
	mint := in.TxType == TypeSystemMint
	burn := in.TxType == TypeSystemBurn
	if mint {
		in.SenderID = SystemAccountID
	}
	if burn {
		in.ReceiverID = SystemAccountID
	}
	system := IsSystemType(in.TxType)

	in.SenderID = strings.TrimSpace(in.SenderID)
	in.ReceiverID = strings.TrimSpace(in.ReceiverID)
	if in.SenderID == "" || in.ReceiverID == "" {
		return out, ErrEmptyParty
	}
	if in.SenderID == in.ReceiverID && !system {
		return out, ErrSameParty
	}
	if len(in.Description) > 256 {
		in.Description = in.Description[:256]
	}

	rate, err := RateFor(in.TxType)
	if err != nil {
		return out, err
	}

	initiator := in.SenderID
	if mint {
		initiator = in.ReceiverID
	}

	err = s.runSerializable(ctx, func(tx pgx.Tx) error {
		if err := claimIdempotency(ctx, tx, initiator, in.IdempotencyKey, "transfer"); err != nil {
			return err
		}

		gross, tax, net, err := money.TaxSplit(in.Amount, rate)
		if err != nil {
			return err
		}
		if err := s.verifySplit(gross, tax, net, in.TxType); err != nil {
			return err
		}

		senderName := "System"
		if !mint {
			sender, err := getAccount(ctx, tx, in.SenderID)
			if err != nil {
				return err
			}
			if sender.Frozen {
				return fmt.Errorf("%w: %s", ErrAccountFrozen, sender.ID)
			}
			if !sender.Active && !system {
				return fmt.Errorf("%w: %s", ErrAccountInactive, sender.ID)
			}
			senderName = sender.DisplayName
		}

		receiverName := "System"
		if !burn {
			receiver, err := getAccount(ctx, tx, in.ReceiverID)
			if err != nil {
				return err
			}
			if !system && (!receiver.Active || receiver.Frozen) {
				if receiver.Frozen {
					return fmt.Errorf("%w: %s", ErrAccountFrozen, receiver.ID)
				}
				return fmt.Errorf("%w: %s", ErrAccountInactive, receiver.ID)
			}
			receiverName = receiver.DisplayName
		}

		var lockIDs []string
		if !mint {
			lockIDs = append(lockIDs, in.SenderID)
		}
		if !burn {
			lockIDs = append(lockIDs, in.ReceiverID)
		}
		balances, err := lockBalances(ctx, tx, in.Currency, lockIDs)
		if err != nil {
			return err
		}

		out = Receipt{
			TxID:           uuid.NewString(),
			TxType:         in.TxType,
			Currency:       in.Currency,
			Gross:          gross,
			Tax:            tax,
			Net:            net,
			SenderBefore:   money.Zero,
			SenderAfter:    money.Zero,
			ReceiverBefore: money.Zero,
			ReceiverAfter:  money.Zero,
		}

		if !mint {
			before := balances[in.SenderID]
			short, err := money.LT(before, gross)
			if err != nil {
				return err
			}
			if short {
				return fmt.Errorf("%w: required %s, available %s %s", ErrInsufficientFunds, gross, before, in.Currency)
			}
			after, err := money.Sub(before, gross)
			if err != nil {
				return err
			}
			if err := setBalance(ctx, tx, in.SenderID, in.Currency, after); err != nil {
				return err
			}
			out.SenderBefore, out.SenderAfter = before, after
		}

		if !burn {
			before := balances[in.ReceiverID]
			after, err := money.Add(before, net)
			if err != nil {
				return err
			}
			if err := setBalance(ctx, tx, in.ReceiverID, in.Currency, after); err != nil {
				return err
			}
			out.ReceiverBefore, out.ReceiverAfter = before, after
		}

		zeroTax, err := money.IsZero(tax)
		if err != nil {
			return err
		}
		if !zeroTax {
			if err := treasury.Collect(ctx, tx, CategoryFor(in.TxType), in.Currency, tax); err != nil {
				return err
			}
		}

		entry := &ledger.Entry{
			TxID:         out.TxID,
			SenderID:     in.SenderID,
			SenderName:   senderName,
			ReceiverID:   in.ReceiverID,
			ReceiverName: receiverName,
			Currency:     in.Currency,
			Gross:        gross,
			Tax:          tax,
			Net:          net,
			TxType:       in.TxType,
			Description:  strings.TrimSpace(in.Description),
		}
		if err := ledger.Append(ctx, tx, entry); err != nil {
			return err
		}
		out.LedgerPosition = entry.Position

		return tx.Commit(ctx)
	})
	if err != nil {
		return Receipt{}, err
	}
	return out, nil
}

// History returns the newest ledger entries involving accountID.
func (s *Service) History(ctx context.Context, accountID string, limit int) ([]ledger.Entry, error) {
	return ledger.History(ctx, s.db, accountID, limit)
}

// VerifyIntegrity re-walks the full hash chain.
func (s *Service) VerifyIntegrity(ctx context.Context) (bool, int, error) {
	return ledger.VerifyChain(ctx, s.db)
}

// Stats returns the aggregates last written by the world tick. The
// orchestrator only ever reads them.
func (s *Service) Stats(ctx context.Context) (WorldStats, error) {
	var out WorldStats
	var supply []byte
	err := s.db.QueryRow(ctx, `
		SELECT money_supply, accounts, treasury_total::text, computed_at
		FROM world_stats
		WHERE id = true
	`).Scan(&supply, &out.Accounts, &out.TreasuryTotal, &out.ComputedAt)
	if err == pgx.ErrNoRows {
		return WorldStats{MoneySupply: map[string]string{}, TreasuryTotal: money.Zero}, nil
	}
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(supply, &out.MoneySupply); err != nil {
		return out, err
	}
	return out, nil
}

// verifySplit re-checks net + tax == gross before anything commits. The
// split function already guarantees this; the recheck catches a mismatched
// rate table or arithmetic regression before it reaches the ledger.
func (s *Service) verifySplit(gross, tax, net, txType string) error {
	sum, err := money.Add(net, tax)
	if err != nil {
		return err
	}
	ok, err := money.EQ(sum, gross)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Error("tax split does not reconcile",
			"tx_type", txType, "gross", gross, "tax", tax, "net", net)
		return fmt.Errorf("%w: tax split gross=%s tax=%s net=%s", ErrIntegrityViolation, gross, tax, net)
	}
	return nil
}

const maxTxAttempts = 8

// runSerializable runs fn inside a serializable transaction, retrying on
// serialization failures with capped backoff. fn is responsible for the
// final Commit; the deferred rollback is a no-op after a successful commit.
func (s *Service) runSerializable(ctx context.Context, fn func(tx pgx.Tx) error) error {
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		err = func() error {
			defer tx.Rollback(ctx)
			return fn(tx)
		}()
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		if attempt == maxTxAttempts-1 {
			return ErrTxConflict
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return ErrTxConflict
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type accountRow struct {
	ID          string
	DisplayName string
	Active      bool
	Frozen      bool
}

func getAccount(ctx context.Context, tx pgx.Tx, id string) (accountRow, error) {
	var a accountRow
	err := tx.QueryRow(ctx, `
		SELECT id, display_name, is_active, is_frozen
		FROM accounts
		WHERE id = $1
	`, id).Scan(&a.ID, &a.DisplayName, &a.Active, &a.Frozen)
	if err == pgx.ErrNoRows {
		return a, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return a, err
}

// lockBalances locks every requested balance row in one statement, ordered
// by account id so two transfers touching the same pair cannot deadlock.
func lockBalances(ctx context.Context, tx pgx.Tx, currency string, ids []string) (map[string]string, error) {
	rows, err := tx.Query(ctx, `
		SELECT account_id, balance::text
		FROM account_balances
		WHERE currency = $1 AND account_id = ANY($2)
		ORDER BY account_id
		FOR UPDATE
	`, currency, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string, len(ids))
	for rows.Next() {
		var id, balance string
		if err := rows.Scan(&id, &balance); err != nil {
			return nil, err
		}
		out[id] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("%w: no %s balance for %s", ErrAccountNotFound, currency, id)
		}
	}
	return out, nil
}

func setBalance(ctx context.Context, tx pgx.Tx, accountID, currency, balance string) error {
	neg, err := money.IsNegative(balance)
	if err != nil {
		return err
	}
	if neg {
		return fmt.Errorf("%w: balance would go negative", ErrInsufficientFunds)
	}
	_, err = tx.Exec(ctx, `
		UPDATE account_balances
		SET balance = $1::numeric, updated_at = now()
		WHERE account_id = $2 AND currency = $3
	`, balance, accountID, currency)
	return err
}

func claimIdempotency(ctx context.Context, tx pgx.Tx, accountID, key, action string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("idempotency key is required")
	}
	cmd, err := tx.Exec(ctx, `
		INSERT INTO idempotency_keys (account_id, key, action, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (account_id, key) DO NOTHING
	`, accountID, key, action)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDuplicateIdempotency
	}
	return nil
}
