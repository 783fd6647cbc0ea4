// Package ledger is the append-only, hash-chained record of completed
// transactions. Entries are written only inside the orchestrator's
// transaction and are never updated or deleted; corrections are new
// REFUND entries referencing the original.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mintage/internal/money"
)

// Genesis is the previous_hash sentinel carried by the first entry.
const Genesis = "0000000000000000000000000000000000000000000000000000000000000000"

var ErrReconciliation = errors.New("ledger entry does not reconcile: net + tax != gross")

type Entry struct {
	Position     int64     `json:"position"`
	TxID         string    `json:"tx_id"`
	SenderID     string    `json:"sender_id"`
	SenderName   string    `json:"sender_name"`
	ReceiverID   string    `json:"receiver_id"`
	ReceiverName string    `json:"receiver_name"`
	Currency     string    `json:"currency"`
	Gross        string    `json:"gross"`
	Tax          string    `json:"tax"`
	Net          string    `json:"net"`
	TxType       string    `json:"tx_type"`
	Description  string    `json:"description"`
	PreviousHash string    `json:"previous_hash"`
	CurrentHash  string    `json:"current_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// HashOf digests the fields an entry commits to. The previous hash is part
// of the preimage, which is what links the chain: rewriting any committed
// entry invalidates every hash after it.
func HashOf(e Entry) string {
	preimage := strings.Join([]string{
		e.PreviousHash,
		e.TxID,
		e.SenderID,
		e.ReceiverID,
		e.Currency,
		e.Gross,
		e.Tax,
		e.Net,
		e.TxType,
	}, "|")
	sum := sha256.Sum256([]byte(preimage))
	return hex.EncodeToString(sum[:])
}

// reconciles reports whether net + tax equals gross at the fixed scale.
func reconciles(e Entry) bool {
	sum, err := money.Add(e.Net, e.Tax)
	if err != nil {
		return false
	}
	ok, err := money.EQ(sum, e.Gross)
	return err == nil && ok
}

// Append links e onto the current chain tail and inserts it as part of the
// caller's transaction. The tail row is locked so two racing appends
// serialize; under Serializable isolation the loser retries the whole
// orchestration.
func Append(ctx context.Context, tx pgx.Tx, e *Entry) error {
	if !reconciles(*e) {
		return fmt.Errorf("%w (gross=%s tax=%s net=%s)", ErrReconciliation, e.Gross, e.Tax, e.Net)
	}

	prev := Genesis
	err := tx.QueryRow(ctx, `
		SELECT current_hash
		FROM ledger_entries
		ORDER BY position DESC
		LIMIT 1
		FOR UPDATE
	`).Scan(&prev)
	if err != nil && err != pgx.ErrNoRows {
		return err
	}

	e.PreviousHash = prev
	e.CurrentHash = HashOf(*e)

	return tx.QueryRow(ctx, `
		INSERT INTO ledger_entries
		    (tx_id, sender_id, sender_name, receiver_id, receiver_name,
		     currency, gross, tax, net, tx_type, description,
		     previous_hash, current_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING position, created_at
	`, e.TxID, e.SenderID, e.SenderName, e.ReceiverID, e.ReceiverName,
		e.Currency, e.Gross, e.Tax, e.Net, e.TxType, e.Description,
		e.PreviousHash, e.CurrentHash).Scan(&e.Position, &e.CreatedAt)
}

// Verify walks entries in chain order, recomputing every hash and checking
// each link against its predecessor. It returns the index of the first
// broken entry, or (true, -1) for an intact chain. Pure so it can run over
// any slice, not just a full table scan.
func Verify(entries []Entry) (ok bool, brokenAt int) {
	prev := Genesis
	for i, e := range entries {
		if e.PreviousHash != prev {
			return false, i
		}
		if HashOf(e) != e.CurrentHash {
			return false, i
		}
		if !reconciles(e) {
			return false, i
		}
		prev = e.CurrentHash
	}
	return true, -1
}

// VerifyChain loads the full chain from genesis and verifies it.
func VerifyChain(ctx context.Context, pool *pgxpool.Pool) (ok bool, brokenAt int, err error) {
	rows, err := pool.Query(ctx, `
		SELECT position, tx_id, sender_id, sender_name, receiver_id, receiver_name,
		       currency, gross::text, tax::text, net::text, tx_type, description,
		       previous_hash, current_hash, created_at
		FROM ledger_entries
		ORDER BY position ASC
	`)
	if err != nil {
		return false, -1, err
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return false, -1, err
	}
	ok, brokenAt = Verify(entries)
	return ok, brokenAt, nil
}

// History returns the most recent entries involving accountID, newest first.
func History(ctx context.Context, pool *pgxpool.Pool, accountID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := pool.Query(ctx, `
		SELECT position, tx_id, sender_id, sender_name, receiver_id, receiver_name,
		       currency, gross::text, tax::text, net::text, tx_type, description,
		       previous_hash, current_hash, created_at
		FROM ledger_entries
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY position DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Position, &e.TxID, &e.SenderID, &e.SenderName,
			&e.ReceiverID, &e.ReceiverName, &e.Currency, &e.Gross, &e.Tax, &e.Net,
			&e.TxType, &e.Description, &e.PreviousHash, &e.CurrentHash, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
