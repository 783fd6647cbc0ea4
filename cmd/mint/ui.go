package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"mintage/internal/economy"
	"mintage/internal/ledger"

	"github.com/fatih/color"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
	neutral = color.New(color.FgHiWhite)
)

type listingsPayload struct {
	Listings []economy.Listing `json:"listings"`
}

type historyPayload struct {
	Entries []ledger.Entry `json:"entries"`
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func renderReceipt(raw map[string]any) error {
	r, err := decodeInto[economy.Receipt](raw)
	if err != nil {
		return err
	}
	accent.Printf("Transfer %s\n", r.TxID)
	fmt.Printf("  gross %s %s  tax %s  net %s\n", r.Gross, r.Currency, r.Tax, r.Net)
	fmt.Printf("  sender   %s -> %s\n", r.SenderBefore, r.SenderAfter)
	fmt.Printf("  receiver %s -> %s\n", r.ReceiverBefore, r.ReceiverAfter)
	fmt.Printf("  ledger position %d\n", r.LedgerPosition)
	return nil
}

func renderWorkResult(raw map[string]any) error {
	r, err := decodeInto[economy.WorkResult](raw)
	if err != nil {
		return err
	}
	accent.Printf("Shift at %s\n", r.Company)
	fmt.Printf("  gross %s %s  taxes %s  net %s\n", r.Earnings.Gross, r.Currency, r.Earnings.Taxes, r.Earnings.Net)
	fmt.Printf("  energy -%d  happiness -%d  now %d/%d\n", r.Costs.Energy, r.Costs.Happiness, r.Stats.Energy, r.Stats.Happiness)
	fmt.Printf("  balance %s %s\n", r.NewBalance, r.Currency)
	return nil
}

func renderCompany(raw map[string]any) error {
	c, err := decodeInto[economy.Company](raw)
	if err != nil {
		return err
	}
	accent.Printf("%s (id %d)\n", c.Name, c.ID)
	fmt.Printf("  owner %s  status %s\n", c.OwnerID, c.Status)
	fmt.Printf("  wage %s %s  productivity %s\n", c.Wage, c.Currency, c.Productivity)
	fmt.Printf("  staff %d/%d  funds %s %s\n", c.EmployeeCount, c.MaxEmployees, c.Funds, c.Currency)
	return nil
}

func renderDeposit(raw map[string]any) error {
	r, err := decodeInto[economy.DepositResult](raw)
	if err != nil {
		return err
	}
	accent.Printf("Deposit to %s\n", r.Company)
	fmt.Printf("  gross %s %s  tax %s  net %s\n", r.Gross, r.Currency, r.Tax, r.Net)
	fmt.Printf("  your balance %s  company funds %s\n", r.OwnerAfter, r.Funds)
	return nil
}

func renderPurchase(raw map[string]any) error {
	r, err := decodeInto[economy.PurchaseResult](raw)
	if err != nil {
		return err
	}
	accent.Printf("Bought %dx %s (q%d)\n", r.Quantity, r.Item, r.Quality)
	fmt.Printf("  net %s %s  vat %s  gross %s\n", r.NetPrice, r.Currency, r.VAT, r.GrossPrice)
	fmt.Printf("  balance %s %s\n", r.NewBalance, r.Currency)
	return nil
}

func renderConsume(raw map[string]any) error {
	r, err := decodeInto[economy.ConsumeResult](raw)
	if err != nil {
		return err
	}
	parts := make([]string, 0, len(r.EffectsApplied))
	for stat, gain := range r.EffectsApplied {
		parts = append(parts, fmt.Sprintf("%s +%d", stat, gain))
	}
	printSuccess("Consumed: " + strings.Join(parts, ", "))
	fmt.Printf("  energy %d -> %d  happiness %d -> %d\n",
		r.StateBefore.Energy, r.StateAfter.Energy,
		r.StateBefore.Happiness, r.StateAfter.Happiness)
	return nil
}

func renderListings(raw map[string]any) error {
	p, err := decodeInto[listingsPayload](raw)
	if err != nil {
		return err
	}
	if len(p.Listings) == 0 {
		printInfo("No open listings.")
		return nil
	}
	accent.Println("ID      ITEM            Q  QTY    UNIT PRICE      SELLER")
	for _, l := range p.Listings {
		fmt.Printf("%-7d %-15s %-2d %-6d %-15s %s\n",
			l.ID, truncate(l.ItemCode, 15), l.Quality, l.Quantity,
			l.UnitPrice+" "+l.Currency, truncate(l.SellerID, 20))
	}
	return nil
}

func renderHistory(raw map[string]any, accountID string) error {
	p, err := decodeInto[historyPayload](raw)
	if err != nil {
		return err
	}
	if len(p.Entries) == 0 {
		printInfo("No ledger entries.")
		return nil
	}
	accent.Printf("Ledger history for %s\n", accountID)
	for _, e := range p.Entries {
		amount := e.Net
		if e.SenderID == accountID {
			amount = "-" + e.Gross
		}
		fmt.Printf("%-8d %-12s %14s %s  %s -> %s\n",
			e.Position, e.TxType, amount+" "+e.Currency,
			e.CreatedAt.Format("2006-01-02 15:04"),
			truncate(e.SenderID, 16), truncate(e.ReceiverID, 16))
	}
	return nil
}

func renderStats(raw map[string]any) error {
	s, err := decodeInto[economy.WorldStats](raw)
	if err != nil {
		return err
	}
	accent.Println("World economy")
	fmt.Printf("  accounts       %d\n", s.Accounts)
	for currency, total := range s.MoneySupply {
		fmt.Printf("  supply %-6s  %s\n", currency, total)
	}
	fmt.Printf("  treasury total %s\n", s.TreasuryTotal)
	if !s.ComputedAt.IsZero() {
		fmt.Printf("  computed at    %s\n", s.ComputedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
