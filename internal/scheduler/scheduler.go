// Package scheduler drives the recurring world tick exactly once per
// interval across any number of live worker processes. Coordination is a
// single row in the store mutated only by atomic conditional updates; the
// workers themselves share nothing.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mintage/internal/money"
	"mintage/internal/treasury"
)

// LockName keys the singleton lock row.
const LockName = "world_tick"

// Per-tick entropy applied to every player.
const (
	TickEnergyDecay    = 5
	TickHappinessDecay = 2
)

// AcquireResult is an explicit outcome, not an error: losing the race for
// the tick is the normal case for all but one instance.
type AcquireResult int

const (
	Locked AcquireResult = iota
	Acquired
)

func (r AcquireResult) String() string {
	if r == Acquired {
		return "acquired"
	}
	return "locked"
}

type Scheduler struct {
	db          *pgxpool.Pool
	log         *slog.Logger
	holder      string
	interval    time.Duration
	lockTimeout time.Duration
}

func New(db *pgxpool.Pool, logger *slog.Logger, interval, lockTimeout time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		db:          db,
		log:         logger,
		holder:      holderSignature(),
		interval:    interval,
		lockTimeout: lockTimeout,
	}
}

func holderSignature() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}

// nextBoundary returns the next wall-clock firing instant after now.
// Boundaries are evaluated in UTC so every instance agrees on them.
func nextBoundary(now time.Time, interval time.Duration) time.Time {
	return now.UTC().Truncate(interval).Add(interval)
}

// currentBoundary returns the boundary of the interval containing now.
func currentBoundary(now time.Time, interval time.Duration) time.Time {
	return now.UTC().Truncate(interval)
}

// epochOf numbers the interval a boundary belongs to.
func epochOf(boundary time.Time, interval time.Duration) int64 {
	return boundary.UTC().Unix() / int64(interval.Seconds())
}

// EnsureLock creates the singleton lock row if it does not exist yet.
func (s *Scheduler) EnsureLock(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO scheduler_lock (name, processing, holder, locked_at, last_epoch, last_duration_ms, failures)
		VALUES ($1, false, '', now(), 0, 0, 0)
		ON CONFLICT (name) DO NOTHING
	`, LockName)
	return err
}

// TryAcquire attempts to take the tick mutex with one conditional update.
// The WHERE clause is the whole correctness story: it matches a free lock
// or a zombie lock held past the timeout, and the store evaluates it
// atomically with the write. The zombie cutoff is computed against the
// store's own clock; worker clocks can skew and locked_at was written by
// the store. RowsAffected 0 means someone else holds it.
func (s *Scheduler) TryAcquire(ctx context.Context) (AcquireResult, error) {
	cmd, err := s.db.Exec(ctx, `
		UPDATE scheduler_lock
		SET processing = true, holder = $1, locked_at = now()
		WHERE name = $2 AND (processing = false OR locked_at < now() - make_interval(secs => $3))
	`, s.holder, LockName, s.lockTimeout.Seconds())
	if err != nil {
		return Locked, err
	}
	if cmd.RowsAffected() == 0 {
		return Locked, nil
	}
	return Acquired, nil
}

func (s *Scheduler) releaseSuccess(ctx context.Context, epoch int64, took time.Duration) error {
	_, err := s.db.Exec(ctx, `
		UPDATE scheduler_lock
		SET processing = false, last_epoch = $1, last_duration_ms = $2, failures = 0
		WHERE name = $3 AND holder = $4
	`, epoch, took.Milliseconds(), LockName, s.holder)
	return err
}

func (s *Scheduler) releaseFailure(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		UPDATE scheduler_lock
		SET processing = false, failures = failures + 1
		WHERE name = $1 AND holder = $2
	`, LockName, s.holder)
	return err
}

// Run fires at every interval boundary until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.EnsureLock(ctx); err != nil {
		return fmt.Errorf("ensure scheduler lock: %w", err)
	}
	s.log.Info("scheduler started", "holder", s.holder, "interval", s.interval.String(), "lock_timeout", s.lockTimeout.String())

	for {
		boundary := nextBoundary(time.Now(), s.interval)
		timer := time.NewTimer(time.Until(boundary))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		s.fire(ctx, boundary)
	}
}

// Fire runs a single tick attempt immediately. Exposed for run-once mode.
// The tick is recorded against the boundary of the interval in progress,
// so an ad-hoc run numbers its epoch the same way the loop would.
func (s *Scheduler) Fire(ctx context.Context) {
	s.fire(ctx, currentBoundary(time.Now(), s.interval))
}

func (s *Scheduler) fire(ctx context.Context, boundary time.Time) {
	res, err := s.TryAcquire(ctx)
	if err != nil {
		s.log.Error("lock acquisition failed", "err", err)
		return
	}
	if res == Locked {
		// Another instance owns this tick; not an error.
		return
	}

	epoch := epochOf(boundary, s.interval)
	start := time.Now()
	if err := s.runTick(ctx); err != nil {
		// Fatal to this tick only. Force-release so a crashed or failing
		// instance cannot starve future ticks.
		s.log.Error("world tick failed", "epoch", epoch, "err", err)
		if relErr := s.releaseFailure(ctx); relErr != nil {
			s.log.Error("lock release failed", "err", relErr)
		}
		return
	}
	took := time.Since(start)
	if err := s.releaseSuccess(ctx, epoch, took); err != nil {
		s.log.Error("lock release failed", "err", err)
		return
	}
	s.log.Info("world tick complete", "epoch", epoch, "took_ms", took.Milliseconds())
}

// runTick performs the guarded work: vitals entropy for every player and a
// fresh aggregate snapshot for the stats singleton the API reads from.
func (s *Scheduler) runTick(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE players
		SET energy = GREATEST(energy - $1, 0),
		    happiness = GREATEST(happiness - $2, 0)
	`, TickEnergyDecay, TickHappinessDecay); err != nil {
		return err
	}

	supply := map[string]string{}
	rows, err := tx.Query(ctx, `
		SELECT currency, COALESCE(SUM(balance), 0)::text
		FROM account_balances
		GROUP BY currency
	`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var currency, total string
		if err := rows.Scan(&currency, &total); err != nil {
			rows.Close()
			return err
		}
		supply[currency] = total
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	var accounts int
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM accounts WHERE is_active
	`).Scan(&accounts); err != nil {
		return err
	}

	treasuryTotal := money.Zero
	err = tx.QueryRow(ctx, `
		SELECT amount::text
		FROM treasury
		WHERE category = $1 AND currency = $2
	`, treasury.TotalCategory, "COIN").Scan(&treasuryTotal)
	if err != nil && err != pgx.ErrNoRows {
		return err
	}

	raw, err := json.Marshal(supply)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO world_stats (id, money_supply, accounts, treasury_total, computed_at)
		VALUES (true, $1::jsonb, $2, $3::numeric, now())
		ON CONFLICT (id) DO UPDATE
		SET money_supply = EXCLUDED.money_supply,
		    accounts = EXCLUDED.accounts,
		    treasury_total = EXCLUDED.treasury_total,
		    computed_at = EXCLUDED.computed_at
	`, string(raw), accounts, treasuryTotal); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	// Treasury drift would mean a lost concurrent increment somewhere;
	// surface it loudly, never paper over it.
	accruals, err := treasury.Snapshot(ctx, s.db)
	if err != nil {
		return err
	}
	if err := treasury.Reconcile(accruals); err != nil {
		s.log.Error("treasury reconciliation failed", "err", err)
		return err
	}
	return nil
}
