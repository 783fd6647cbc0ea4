package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	cl "mintage/internal/cli"
	"mintage/internal/config"
	"mintage/internal/syncq"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "mint",
		Short:        "Mintage economy client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")

	root.AddCommand(
		newRegisterCmd(&apiBase),
		newUseCmd(),
		newWhoamiCmd(),
		newSendCmd(&apiBase, cfg),
		newSyncCmd(&apiBase),
		newWorkCmd(&apiBase, cfg),
		newCompanyCmd(&apiBase, cfg),
		newQuitCmd(&apiBase, cfg),
		newMarketCmd(&apiBase, cfg),
		newEatCmd(&apiBase, cfg),
		newHistoryCmd(&apiBase, cfg),
		newVerifyCmd(&apiBase),
		newStatsCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

// actingAccount resolves who signs the request: the MINT_ACCOUNT_ID
// environment variable wins, then the saved profile.
func actingAccount(cfg config.CLIConfig) (string, error) {
	if cfg.AccountID != "" {
		return cfg.AccountID, nil
	}
	p, err := cl.LoadProfile()
	if err != nil {
		return "", fmt.Errorf("no account selected, run `mint use <account-id>`: %w", err)
	}
	return p.AccountID, nil
}

func newRegisterCmd(apiBase *string) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "register <account-id>",
		Short: "Create an account and select it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if _, err := newClient(apiBase).CreateAccount(ctx, id, name); err != nil {
				return err
			}
			if err := cl.SaveProfile(cl.Profile{AccountID: id, Name: name}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Account %s ready.", id))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}

func newUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <account-id>",
		Short: "Select the acting account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return fmt.Errorf("account id is required")
			}
			if err := cl.SaveProfile(cl.Profile{AccountID: id}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Acting as %s.", id))
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the acting account",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := cl.LoadProfile()
			if err != nil {
				printWarn("No account selected.")
				return nil
			}
			printInfo(p.AccountID)
			return nil
		},
	}
}

func newSendCmd(apiBase *string, cfg config.CLIConfig) *cobra.Command {
	var currency, desc string
	var queue bool
	cmd := &cobra.Command{
		Use:   "send <receiver> <amount>",
		Short: "Transfer money to another account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := actingAccount(cfg)
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			if queue {
				if err := syncq.Push(syncq.Transfer{
					SenderID:       account,
					ReceiverID:     args[0],
					Amount:         args[1],
					Currency:       currency,
					Description:    desc,
					IdempotencyKey: idem,
				}); err != nil {
					return err
				}
				printInfo("Transfer queued. Run `mint sync` when online.")
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Transfer(ctx, account, args[0], args[1], currency, desc, idem)
			if err != nil {
				return err
			}
			return renderReceipt(out)
		},
	}
	cmd.Flags().StringVar(&currency, "currency", "COIN", "currency code")
	cmd.Flags().StringVar(&desc, "desc", "", "transfer description")
	cmd.Flags().BoolVar(&queue, "queue", false, "queue locally instead of sending now")
	return cmd
}

func newSyncCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay locally queued transfers",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := syncq.Load()
			if err != nil {
				return err
			}
			if len(queue) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			remaining := make([]syncq.Transfer, 0, len(queue))
			sent := 0
			for _, q := range queue {
				_, err := client.Transfer(ctx, q.SenderID, q.ReceiverID, q.Amount, q.Currency, q.Description, q.IdempotencyKey)
				if err != nil {
					remaining = append(remaining, q)
					printError(fmt.Sprintf("Sync failed for %s -> %s %s: %v", q.SenderID, q.ReceiverID, q.Amount, err))
					continue
				}
				sent++
			}
			if err := syncq.Save(remaining); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Sync complete: sent=%d remaining=%d", sent, len(remaining)))
			return nil
		},
	}
}

func newWorkCmd(apiBase *string, cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "work",
		Short: "Work a shift at your employer",
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := actingAccount(cfg)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Work(ctx, account)
			if err != nil {
				return err
			}
			return renderWorkResult(out)
		},
	}
}

func newCompanyCmd(apiBase *string, cfg config.CLIConfig) *cobra.Command {
	company := &cobra.Command{
		Use:   "company",
		Short: "Create and run an employer",
	}

	var currency, wage string
	var maxEmployees int
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Found a company you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := actingAccount(cfg)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).CreateCompany(ctx, account, args[0], currency, wage, maxEmployees)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Company created: %v (id %v)", out["name"], out["id"]))
			return nil
		},
	}
	create.Flags().StringVar(&currency, "currency", "COIN", "payroll currency")
	create.Flags().StringVar(&wage, "wage", "", "base wage per shift (required)")
	create.Flags().IntVar(&maxEmployees, "max-employees", 0, "headcount limit (0 = default)")
	_ = create.MarkFlagRequired("wage")

	show := &cobra.Command{
		Use:   "show <company-id>",
		Short: "Show a company's status and funds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid company id %q", args[0])
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).GetCompany(ctx, companyID)
			if err != nil {
				return err
			}
			return renderCompany(out)
		},
	}

	hire := &cobra.Command{
		Use:   "hire <company-id> <account-id>",
		Short: "Put a player on your payroll",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := actingAccount(cfg)
			if err != nil {
				return err
			}
			companyID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid company id %q", args[0])
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if _, err := newClient(apiBase).Hire(ctx, account, companyID, args[1]); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Hired %s into company %d", args[1], companyID))
			return nil
		},
	}

	fund := &cobra.Command{
		Use:   "fund <company-id> <amount>",
		Short: "Deposit capital into company funds",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := actingAccount(cfg)
			if err != nil {
				return err
			}
			companyID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid company id %q", args[0])
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).FundCompany(ctx, account, companyID, args[1])
			if err != nil {
				return err
			}
			return renderDeposit(out)
		},
	}

	company.AddCommand(create, show, hire, fund)
	return company
}

func newQuitCmd(apiBase *string, cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "quit",
		Short: "Leave your current employer",
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := actingAccount(cfg)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if _, err := newClient(apiBase).Quit(ctx, account); err != nil {
				return err
			}
			printSuccess("You are no longer employed")
			return nil
		},
	}
}

func newMarketCmd(apiBase *string, cfg config.CLIConfig) *cobra.Command {
	market := &cobra.Command{
		Use:   "market",
		Short: "Browse and trade on the marketplace",
	}

	var listLimit int
	list := &cobra.Command{
		Use:   "list",
		Short: "Show open listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).ListListings(ctx, listLimit)
			if err != nil {
				return err
			}
			return renderListings(out)
		},
	}
	list.Flags().IntVar(&listLimit, "limit", 0, "max listings to show")

	var sellQuality int
	var sellCurrency string
	sell := &cobra.Command{
		Use:   "sell <item> <quantity> <unit-price>",
		Short: "List items from your inventory for sale",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := actingAccount(cfg)
			if err != nil {
				return err
			}
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).CreateListing(ctx, account, args[0], sellQuality, quantity, args[2], sellCurrency)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Listing created: %v", out["id"]))
			return nil
		},
	}
	sell.Flags().IntVar(&sellQuality, "quality", 1, "item quality 1..5")
	sell.Flags().StringVar(&sellCurrency, "currency", "COIN", "currency code")

	buy := &cobra.Command{
		Use:   "buy <listing-id> <quantity>",
		Short: "Buy from a listing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := actingAccount(cfg)
			if err != nil {
				return err
			}
			listingID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid listing id %q", args[0])
			}
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Purchase(ctx, account, listingID, quantity, uuid.NewString())
			if err != nil {
				return err
			}
			return renderPurchase(out)
		},
	}

	market.AddCommand(list, sell, buy)
	return market
}

func newEatCmd(apiBase *string, cfg config.CLIConfig) *cobra.Command {
	var quality, quantity int
	cmd := &cobra.Command{
		Use:   "eat <item>",
		Short: "Consume an item to restore vitals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := actingAccount(cfg)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Consume(ctx, account, args[0], quality, quantity)
			if err != nil {
				return err
			}
			return renderConsume(out)
		},
	}
	cmd.Flags().IntVar(&quality, "quality", 1, "item quality 1..5")
	cmd.Flags().IntVar(&quantity, "quantity", 1, "how many to consume")
	return cmd
}

func newHistoryCmd(apiBase *string, cfg config.CLIConfig) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [account-id]",
		Short: "Show ledger history for an account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account := ""
			if len(args) == 1 {
				account = args[0]
			} else {
				a, err := actingAccount(cfg)
				if err != nil {
					return err
				}
				account = a
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).History(ctx, account, limit)
			if err != nil {
				return err
			}
			return renderHistory(out, account)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max entries to show")
	return cmd
}

func newVerifyCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the ledger hash chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			out, err := newClient(apiBase).VerifyLedger(ctx)
			if err != nil {
				return err
			}
			if ok, _ := out["ok"].(bool); ok {
				printSuccess("Ledger intact.")
				return nil
			}
			printError(fmt.Sprintf("Ledger broken at position %v.", out["broken_at"]))
			return nil
		},
	}
}

func newStatsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show world economy stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Stats(ctx)
			if err != nil {
				return err
			}
			return renderStats(out)
		},
	}
}
