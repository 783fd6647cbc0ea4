package economy

import (
	"errors"
	"fmt"
	"time"

	"mintage/internal/money"
)

const (
	CurrencyCoin  = "COIN"
	CurrencyGem   = "GEM"
	CurrencyScrip = "SCRIP"
)

// Currencies lists every currency an account carries a balance row for.
var Currencies = []string{CurrencyCoin, CurrencyGem, CurrencyScrip}

func ValidCurrency(c string) bool {
	for _, cur := range Currencies {
		if c == cur {
			return true
		}
	}
	return false
}

const (
	TypeTransfer   = "TRANSFER"
	TypeWork       = "WORK"
	TypeMarketBuy  = "MARKET_BUY"
	TypeMarketSell = "MARKET_SELL"
	TypeSalary     = "SALARY"
	TypeReward     = "REWARD"
	TypeSystemMint = "SYSTEM_MINT"
	TypeSystemBurn = "SYSTEM_BURN"
	TypeRefund     = "REFUND"
)

// SystemAccountID is the counterparty recorded on mint and burn entries.
// It is the only identity allowed to create or destroy value.
const SystemAccountID = "system"

// taxRates holds the withholding rate per transaction type as decimal
// strings; rates never pass through binary floating point.
var taxRates = map[string]string{
	TypeTransfer:   "0.05",
	TypeWork:       "0.15",
	TypeSalary:     "0.15",
	TypeMarketBuy:  "0.10",
	TypeMarketSell: "0.10",
	TypeReward:     "0",
	TypeSystemMint: "0",
	TypeSystemBurn: "0",
	TypeRefund:     "0",
}

// taxCategories maps taxed types onto treasury accumulators.
var taxCategories = map[string]string{
	TypeTransfer:   "transfer_tax",
	TypeWork:       "income_tax",
	TypeSalary:     "income_tax",
	TypeMarketBuy:  "vat",
	TypeMarketSell: "vat",
}

// systemTypes originate from the system rather than a player action:
// receiver status checks are skipped and sender==receiver is permitted.
var systemTypes = map[string]bool{
	TypeReward:     true,
	TypeSystemMint: true,
	TypeSystemBurn: true,
	TypeRefund:     true,
}

func ValidType(t string) bool {
	_, ok := taxRates[t]
	return ok
}

func IsSystemType(t string) bool {
	return systemTypes[t]
}

// RateFor returns the withholding rate for a transaction type.
func RateFor(t string) (string, error) {
	rate, ok := taxRates[t]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	return rate, nil
}

// CategoryFor returns the treasury accumulator fed by a transaction type,
// or "" for untaxed types.
func CategoryFor(t string) string {
	return taxCategories[t]
}

const (
	CompanyActive    = "ACTIVE"
	CompanyInsolvent = "INSOLVENT"
	CompanyBankrupt  = "BANKRUPT"
	CompanySuspended = "SUSPENDED"
)

// Headcount bounds for new companies.
const (
	DefaultMaxEmployees = 10
	MaxEmployeesCap     = 100
)

// Work mechanics. Thresholds and penalties are part of the economy's
// balance and must not drift: the salary formula rounds at every
// multiplication step on purpose.
const (
	MinEnergyToWork     = 10
	ExhaustionThreshold = 50
	CriticalHappiness   = 25

	ShiftEnergyCost    = 10
	ShiftHappinessCost = 3

	ShiftCooldown = time.Hour
	MealCooldown  = 10 * time.Minute
)

const (
	exhaustionPenalty = "0.85"
	criticalPenalty   = "0.50"
)

var (
	ErrInvalidAmount   = money.ErrInvalidAmount
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrUnknownType     = errors.New("unknown transaction type")
	ErrSameParty       = errors.New("sender and receiver must differ")
	ErrEmptyParty      = errors.New("sender and receiver are required")

	ErrAccountNotFound = errors.New("account not found")
	ErrAccountFrozen   = errors.New("account is frozen")
	ErrAccountInactive = errors.New("account is inactive")

	ErrInsufficientFunds = errors.New("insufficient funds")

	ErrNoEmployer       = errors.New("player has no employer")
	ErrCompanyNotFound  = errors.New("company not found")
	ErrCompanyInsolvent = errors.New("company is insolvent")
	ErrCompanySuspended = errors.New("company is suspended")
	ErrInvalidCompany   = errors.New("invalid company input")
	ErrNotCompanyOwner  = errors.New("not the company owner")
	ErrCompanyFull      = errors.New("company has no open positions")
	ErrAlreadyEmployed  = errors.New("player already has an employer")
	ErrTooExhausted     = errors.New("not enough energy to work")
	ErrShiftCooldown    = errors.New("shift cooldown has not elapsed")

	ErrListingNotFound   = errors.New("listing not found")
	ErrInsufficientStock = errors.New("listing has insufficient quantity")
	ErrNotInInventory    = errors.New("item not in inventory")
	ErrUnknownItem       = errors.New("unknown item code")
	ErrMealCooldown      = errors.New("consumption cooldown has not elapsed")

	ErrIntegrityViolation   = errors.New("integrity violation")
	ErrTxConflict           = errors.New("transaction conflict, retry")
	ErrDuplicateIdempotency = errors.New("duplicate idempotency key")
)

// WorkModifiers records the factors that shaped a shift's gross wage.
type WorkModifiers struct {
	EnergyFactor    string `json:"energy_factor"`
	HappinessFactor string `json:"happiness_factor"`
	Productivity    string `json:"productivity"`
	Exhausted       bool   `json:"exhausted"`
	Unhappy         bool   `json:"unhappy"`
}

// grossWage computes the shift's gross pay. Each factor is rounded at the
// fixed scale, and the wage is rounded again after every multiplication;
// collapsing this into one multiplication changes cent-level output.
func grossWage(wage string, energy, happiness int, productivity string) (string, WorkModifiers, error) {
	var mods WorkModifiers
	mods.Productivity = productivity

	ef, err := money.Div(fmt.Sprintf("%d", energy), "100")
	if err != nil {
		return "", mods, err
	}
	if energy < ExhaustionThreshold {
		mods.Exhausted = true
		if ef, err = money.Mul(ef, exhaustionPenalty); err != nil {
			return "", mods, err
		}
	}
	mods.EnergyFactor = ef

	hf, err := money.Div(fmt.Sprintf("%d", happiness), "100")
	if err != nil {
		return "", mods, err
	}
	if happiness < CriticalHappiness {
		mods.Unhappy = true
		if hf, err = money.Mul(hf, criticalPenalty); err != nil {
			return "", mods, err
		}
	}
	mods.HappinessFactor = hf

	gross := wage
	for _, factor := range []string{ef, hf, productivity} {
		if gross, err = money.Mul(gross, factor); err != nil {
			return "", mods, err
		}
	}
	return gross, mods, nil
}

func clampVital(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
