package economy

import "time"

type TransferInput struct {
	SenderID       string
	ReceiverID     string
	Amount         string
	Currency       string
	TxType         string
	Description    string
	IdempotencyKey string
}

// Receipt reports a committed transfer: both parties' balances before and
// after, the tax breakdown, and the ledger entry that documents it.
type Receipt struct {
	TxID           string `json:"tx_id"`
	LedgerPosition int64  `json:"ledger_position"`
	TxType         string `json:"tx_type"`
	Currency       string `json:"currency"`
	Gross          string `json:"gross"`
	Tax            string `json:"tax"`
	Net            string `json:"net"`
	SenderBefore   string `json:"sender_before"`
	SenderAfter    string `json:"sender_after"`
	ReceiverBefore string `json:"receiver_before"`
	ReceiverAfter  string `json:"receiver_after"`
}

type Earnings struct {
	Gross string `json:"gross"`
	Taxes string `json:"taxes"`
	Net   string `json:"net"`
}

type ShiftCosts struct {
	Energy    int `json:"energy"`
	Happiness int `json:"happiness"`
}

type Vitals struct {
	Energy    int `json:"energy"`
	Happiness int `json:"happiness"`
}

type WorkResult struct {
	Company    string        `json:"company"`
	Earnings   Earnings      `json:"earnings"`
	Modifiers  WorkModifiers `json:"modifiers"`
	Costs      ShiftCosts    `json:"costs"`
	Stats      Vitals        `json:"stats"`
	NewBalance string        `json:"new_balance"`
	Currency   string        `json:"currency"`
	TxID       string        `json:"tx_id"`
}

type PurchaseInput struct {
	BuyerID        string
	ListingID      int64
	Quantity       int
	IdempotencyKey string
}

type PurchaseResult struct {
	Item       string `json:"item"`
	Quality    int    `json:"quality"`
	Quantity   int    `json:"quantity"`
	Currency   string `json:"currency"`
	NetPrice   string `json:"net_price"`
	VAT        string `json:"vat"`
	GrossPrice string `json:"gross_price"`
	NewBalance string `json:"new_balance"`
	TxID       string `json:"tx_id"`
}

type ConsumeInput struct {
	AccountID string
	ItemCode  string
	Quality   int
	Quantity  int
}

type ConsumeResult struct {
	EffectsApplied map[string]int `json:"effects_applied"`
	StateBefore    Vitals         `json:"state_before"`
	StateAfter     Vitals         `json:"state_after"`
	CooldownUntil  time.Time      `json:"cooldown_until"`
}

type Listing struct {
	ID        int64     `json:"id"`
	SellerID  string    `json:"seller_id"`
	ItemCode  string    `json:"item_code"`
	Quality   int       `json:"quality"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateCompanyInput struct {
	OwnerID        string
	Name           string
	Currency       string
	Wage           string
	Productivity   string
	MaxEmployees   int
	IdempotencyKey string
}

type Company struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	OwnerID       string    `json:"owner_id"`
	Currency      string    `json:"currency"`
	Wage          string    `json:"wage"`
	Productivity  string    `json:"productivity"`
	Status        string    `json:"status"`
	MaxEmployees  int       `json:"max_employees"`
	EmployeeCount int       `json:"employee_count"`
	Funds         string    `json:"funds"`
	CreatedAt     time.Time `json:"created_at"`
}

type HireInput struct {
	OwnerID        string
	CompanyID      int64
	PlayerID       string
	IdempotencyKey string
}

type FundCompanyInput struct {
	OwnerID        string
	CompanyID      int64
	Amount         string
	IdempotencyKey string
}

// DepositResult reports a committed capital deposit into company funds.
type DepositResult struct {
	Company    string `json:"company"`
	Currency   string `json:"currency"`
	Gross      string `json:"gross"`
	Tax        string `json:"tax"`
	Net        string `json:"net"`
	OwnerAfter string `json:"owner_balance"`
	Funds      string `json:"company_funds"`
	TxID       string `json:"tx_id"`
}

type WorldStats struct {
	MoneySupply   map[string]string `json:"money_supply"`
	Accounts      int               `json:"accounts"`
	TreasuryTotal string            `json:"treasury_total"`
	ComputedAt    time.Time         `json:"computed_at"`
}
