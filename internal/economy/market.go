package economy

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mintage/internal/ledger"
	"mintage/internal/money"
	"mintage/internal/treasury"
)

// Purchase settles one marketplace trade: the buyer pays the gross price,
// the seller receives the net after VAT, the treasury takes the VAT, the
// goods move from listing escrow to the buyer's inventory and the listing
// shrinks or disappears. One transaction, all or nothing.
func (s *Service) Purchase(ctx context.Context, in PurchaseInput) (PurchaseResult, error) {
	var out PurchaseResult
	in.BuyerID = strings.TrimSpace(in.BuyerID)
	if in.Quantity <= 0 {
		return out, fmt.Errorf("%w: quantity must be > 0", money.ErrInvalidAmount)
	}

	rate, err := RateFor(TypeMarketBuy)
	if err != nil {
		return out, err
	}

	err = s.runSerializable(ctx, func(tx pgx.Tx) error {
		if err := claimIdempotency(ctx, tx, in.BuyerID, in.IdempotencyKey, "purchase"); err != nil {
			return err
		}

		var l Listing
		err := tx.QueryRow(ctx, `
			SELECT id, seller_id, item_code, quality, quantity, unit_price::text, currency
			FROM listings
			WHERE id = $1
			FOR UPDATE
		`, in.ListingID).Scan(&l.ID, &l.SellerID, &l.ItemCode, &l.Quality, &l.Quantity, &l.UnitPrice, &l.Currency)
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: %d", ErrListingNotFound, in.ListingID)
		}
		if err != nil {
			return err
		}
		if l.SellerID == in.BuyerID {
			return ErrSameParty
		}
		if in.Quantity > l.Quantity {
			return fmt.Errorf("%w: want %d, listed %d", ErrInsufficientStock, in.Quantity, l.Quantity)
		}

		buyer, err := getAccount(ctx, tx, in.BuyerID)
		if err != nil {
			return err
		}
		if buyer.Frozen {
			return fmt.Errorf("%w: %s", ErrAccountFrozen, buyer.ID)
		}
		if !buyer.Active {
			return fmt.Errorf("%w: %s", ErrAccountInactive, buyer.ID)
		}
		seller, err := getAccount(ctx, tx, l.SellerID)
		if err != nil {
			return err
		}
		if !seller.Active {
			return fmt.Errorf("%w: %s", ErrAccountInactive, seller.ID)
		}

		grossWanted, err := money.Mul(l.UnitPrice, strconv.Itoa(in.Quantity))
		if err != nil {
			return err
		}
		gross, vat, net, err := money.TaxSplit(grossWanted, rate)
		if err != nil {
			return err
		}
		if err := s.verifySplit(gross, vat, net, TypeMarketBuy); err != nil {
			return err
		}

		balances, err := lockBalances(ctx, tx, l.Currency, []string{in.BuyerID, l.SellerID})
		if err != nil {
			return err
		}

		buyerBefore := balances[in.BuyerID]
		short, err := money.LT(buyerBefore, gross)
		if err != nil {
			return err
		}
		if short {
			return fmt.Errorf("%w: required %s, available %s %s", ErrInsufficientFunds, gross, buyerBefore, l.Currency)
		}
		buyerAfter, err := money.Sub(buyerBefore, gross)
		if err != nil {
			return err
		}
		if err := setBalance(ctx, tx, in.BuyerID, l.Currency, buyerAfter); err != nil {
			return err
		}

		sellerAfter, err := money.Add(balances[l.SellerID], net)
		if err != nil {
			return err
		}
		if err := setBalance(ctx, tx, l.SellerID, l.Currency, sellerAfter); err != nil {
			return err
		}

		if err := treasury.Collect(ctx, tx, CategoryFor(TypeMarketBuy), l.Currency, vat); err != nil {
			return err
		}

		// Goods leave listing escrow and land in the buyer's inventory.
		if in.Quantity == l.Quantity {
			if _, err := tx.Exec(ctx, `DELETE FROM listings WHERE id = $1`, l.ID); err != nil {
				return err
			}
		} else {
			if _, err := tx.Exec(ctx, `
				UPDATE listings
				SET quantity = quantity - $1, updated_at = now()
				WHERE id = $2
			`, in.Quantity, l.ID); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO inventories (account_id, item_code, quality, quantity)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (account_id, item_code, quality)
			DO UPDATE SET quantity = inventories.quantity + EXCLUDED.quantity
		`, in.BuyerID, l.ItemCode, l.Quality, in.Quantity); err != nil {
			return err
		}

		entry := &ledger.Entry{
			TxID:         uuid.NewString(),
			SenderID:     in.BuyerID,
			SenderName:   buyer.DisplayName,
			ReceiverID:   l.SellerID,
			ReceiverName: seller.DisplayName,
			Currency:     l.Currency,
			Gross:        gross,
			Tax:          vat,
			Net:          net,
			TxType:       TypeMarketBuy,
			Description:  fmt.Sprintf("listing #%d: %dx %s q%d", l.ID, in.Quantity, l.ItemCode, l.Quality),
		}
		if err := ledger.Append(ctx, tx, entry); err != nil {
			return err
		}

		out = PurchaseResult{
			Item:       l.ItemCode,
			Quality:    l.Quality,
			Quantity:   in.Quantity,
			Currency:   l.Currency,
			NetPrice:   net,
			VAT:        vat,
			GrossPrice: gross,
			NewBalance: buyerAfter,
			TxID:       entry.TxID,
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return PurchaseResult{}, err
	}
	return out, nil
}

// CreateListing escrows inventory into a marketplace listing. No money
// moves; the financial settlement happens at purchase time.
func (s *Service) CreateListing(ctx context.Context, sellerID, itemCode string, quality, quantity int, unitPrice, currency string) (int64, error) {
	sellerID = strings.TrimSpace(sellerID)
	itemCode = strings.ToLower(strings.TrimSpace(itemCode))
	pos, err := money.IsPositive(unitPrice)
	if err != nil {
		return 0, err
	}
	if !pos {
		return 0, fmt.Errorf("%w: unit price must be positive", money.ErrInvalidAmount)
	}
	if !ValidCurrency(currency) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCurrency, currency)
	}
	if quantity <= 0 {
		return 0, fmt.Errorf("%w: quantity must be > 0", money.ErrInvalidAmount)
	}

	var id int64
	err = s.runSerializable(ctx, func(tx pgx.Tx) error {
		seller, err := getAccount(ctx, tx, sellerID)
		if err != nil {
			return err
		}
		if seller.Frozen {
			return fmt.Errorf("%w: %s", ErrAccountFrozen, sellerID)
		}
		if !seller.Active {
			return fmt.Errorf("%w: %s", ErrAccountInactive, sellerID)
		}

		var onHand int
		err = tx.QueryRow(ctx, `
			SELECT quantity
			FROM inventories
			WHERE account_id = $1 AND item_code = $2 AND quality = $3
			FOR UPDATE
		`, sellerID, itemCode, quality).Scan(&onHand)
		if err == pgx.ErrNoRows || (err == nil && onHand < quantity) {
			return fmt.Errorf("%w: %s q%d", ErrNotInInventory, itemCode, quality)
		}
		if err != nil {
			return err
		}

		if onHand == quantity {
			if _, err := tx.Exec(ctx, `
				DELETE FROM inventories
				WHERE account_id = $1 AND item_code = $2 AND quality = $3
			`, sellerID, itemCode, quality); err != nil {
				return err
			}
		} else {
			if _, err := tx.Exec(ctx, `
				UPDATE inventories
				SET quantity = quantity - $1
				WHERE account_id = $2 AND item_code = $3 AND quality = $4
			`, quantity, sellerID, itemCode, quality); err != nil {
				return err
			}
		}

		if err := tx.QueryRow(ctx, `
			INSERT INTO listings (seller_id, item_code, quality, quantity, unit_price, currency)
			VALUES ($1, $2, $3, $4, $5::numeric, $6)
			RETURNING id
		`, sellerID, itemCode, quality, quantity, unitPrice, currency).Scan(&id); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	return id, err
}

// ListListings returns open marketplace listings, newest first.
func (s *Service) ListListings(ctx context.Context, limit int) ([]Listing, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, seller_id, item_code, quality, quantity, unit_price::text, currency, created_at
		FROM listings
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Listing
	for rows.Next() {
		var l Listing
		if err := rows.Scan(&l.ID, &l.SellerID, &l.ItemCode, &l.Quality, &l.Quantity,
			&l.UnitPrice, &l.Currency, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
