package economy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

type itemEffect struct {
	Resource string // "energy" or "happiness"
	Base     int    // effect per unit at quality 1
}

// itemEffects is the consumable catalog. Effect per unit scales linearly
// with quality (1..5).
var itemEffects = map[string]itemEffect{
	"bread":  {Resource: "energy", Base: 5},
	"steak":  {Resource: "energy", Base: 12},
	"coffee": {Resource: "energy", Base: 8},
	"wine":   {Resource: "happiness", Base: 8},
	"ticket": {Resource: "happiness", Base: 15},
}

const (
	minQuality = 1
	maxQuality = 5
)

// Consume applies a consumable's effect to the player's vitals and reduces
// the quantity on hand, in one transaction. No money moves, but the commit
// discipline is the same as a transfer: the vitals change and the inventory
// decrement are never visible separately.
func (s *Service) Consume(ctx context.Context, in ConsumeInput) (ConsumeResult, error) {
	var out ConsumeResult
	in.AccountID = strings.TrimSpace(in.AccountID)
	in.ItemCode = strings.ToLower(strings.TrimSpace(in.ItemCode))

	effect, ok := itemEffects[in.ItemCode]
	if !ok {
		return out, fmt.Errorf("%w: %q", ErrUnknownItem, in.ItemCode)
	}
	if in.Quality < minQuality || in.Quality > maxQuality {
		return out, fmt.Errorf("%w: quality %d out of range", ErrUnknownItem, in.Quality)
	}
	if in.Quantity <= 0 {
		return out, fmt.Errorf("%w: quantity must be > 0", ErrUnknownItem)
	}

	err := s.runSerializable(ctx, func(tx pgx.Tx) error {
		var energy, happiness int
		var lastMeal *time.Time
		err := tx.QueryRow(ctx, `
			SELECT energy, happiness, last_meal_at
			FROM players
			WHERE account_id = $1
			FOR UPDATE
		`, in.AccountID).Scan(&energy, &happiness, &lastMeal)
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, in.AccountID)
		}
		if err != nil {
			return err
		}
		if lastMeal != nil {
			if until := lastMeal.Add(MealCooldown); time.Now().Before(until) {
				return fmt.Errorf("%w: next consumption at %s", ErrMealCooldown, until.UTC().Format(time.RFC3339))
			}
		}

		var onHand int
		err = tx.QueryRow(ctx, `
			SELECT quantity
			FROM inventories
			WHERE account_id = $1 AND item_code = $2 AND quality = $3
			FOR UPDATE
		`, in.AccountID, in.ItemCode, in.Quality).Scan(&onHand)
		if err == pgx.ErrNoRows || (err == nil && onHand < in.Quantity) {
			return fmt.Errorf("%w: %s q%d", ErrNotInInventory, in.ItemCode, in.Quality)
		}
		if err != nil {
			return err
		}

		before := Vitals{Energy: energy, Happiness: happiness}
		gain := effect.Base * in.Quality * in.Quantity
		after := before
		switch effect.Resource {
		case "energy":
			after.Energy = clampVital(energy + gain)
		case "happiness":
			after.Happiness = clampVital(happiness + gain)
		}
		applied := map[string]int{effect.Resource: gain}

		if onHand == in.Quantity {
			if _, err := tx.Exec(ctx, `
				DELETE FROM inventories
				WHERE account_id = $1 AND item_code = $2 AND quality = $3
			`, in.AccountID, in.ItemCode, in.Quality); err != nil {
				return err
			}
		} else {
			if _, err := tx.Exec(ctx, `
				UPDATE inventories
				SET quantity = quantity - $1
				WHERE account_id = $2 AND item_code = $3 AND quality = $4
			`, in.Quantity, in.AccountID, in.ItemCode, in.Quality); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if _, err := tx.Exec(ctx, `
			UPDATE players
			SET energy = $1, happiness = $2, last_meal_at = $3
			WHERE account_id = $4
		`, after.Energy, after.Happiness, now, in.AccountID); err != nil {
			return err
		}

		out = ConsumeResult{
			EffectsApplied: applied,
			StateBefore:    before,
			StateAfter:     after,
			CooldownUntil:  now.Add(MealCooldown),
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return ConsumeResult{}, err
	}
	return out, nil
}
