package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types.
const (
	TransactionIncome   = "income"
	TransactionExpense  = "expense"
	TransactionTransfer = "transfer"
)

// Category kinds. A category's kind must match the type of any transaction
// that references it.
const (
	CategoryIncome  = "income"
	CategoryExpense = "expense"
)

// Account types.
const (
	AccountCash       = "cash"
	AccountBank       = "bank"
	AccountEWallet    = "ewallet"
	AccountSavings    = "savings"
	AccountInvestment = "investment"
	AccountCredit     = "credit"
)

const DefaultCurrency = "IDR"

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdTimestamp"`
	UpdatedAt    time.Time `json:"updatedTimestamp"`
}

// Account is the stored account row. Its balance is never stored; see
// AccountView.CurrentBalance.
type Account struct {
	ID             string          `json:"id"`
	UserID         string          `json:"-"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	Currency       string          `json:"currency"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	Archived       bool            `json:"archived"`
	CreatedAt      time.Time       `json:"createdTimestamp"`
	UpdatedAt      time.Time       `json:"updatedTimestamp"`
}

type Category struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"createdTimestamp"`
	UpdatedAt time.Time `json:"updatedTimestamp"`
}

// Transaction is a single ledger entry. Income and expense rows carry
// AccountID; transfers carry FromAccountID and ToAccountID and never a
// category.
type Transaction struct {
	ID            string          `json:"id"`
	UserID        string          `json:"-"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	AccountID     string          `json:"accountId,omitempty"`
	FromAccountID string          `json:"fromAccountId,omitempty"`
	ToAccountID   string          `json:"toAccountId,omitempty"`
	CategoryID    string          `json:"categoryId,omitempty"`
	OccurredOn    time.Time       `json:"occurredOn"`
	Note          string          `json:"note,omitempty"`
	CreatedAt     time.Time       `json:"createdTimestamp"`
	UpdatedAt     time.Time       `json:"updatedTimestamp"`
}

// AccountIDs returns every account the transaction touches.
func (t *Transaction) AccountIDs() []string {
	if t.Type == TransactionTransfer {
		return []string{t.FromAccountID, t.ToAccountID}
	}
	return []string{t.AccountID}
}

// Budget caps expense spending for one category in one calendar month.
// Month is always the first day of the month in UTC.
type Budget struct {
	ID         string          `json:"id"`
	UserID     string          `json:"-"`
	CategoryID string          `json:"categoryId"`
	Month      time.Time       `json:"month"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedAt  time.Time       `json:"createdTimestamp"`
	UpdatedAt  time.Time       `json:"updatedTimestamp"`
}
