package cqrs

import (
	"time"

	"github.com/shopspring/decimal"
)

type RegisterUserCommand struct {
	Name     string
	Email    string
	Password string
}

type LoginCommand struct {
	Email    string
	Password string
}

type RefreshTokenCommand struct {
	Token string
}

// ---------- Account commands ----------

type CreateAccountCommand struct {
	UserID         string
	Name           string
	Type           string
	Currency       string
	OpeningBalance decimal.Decimal
}

// UpdateAccountCommand patches an account. Nil fields are left unchanged.
type UpdateAccountCommand struct {
	AccountID        string
	RequestingUserID string
	Name             *string
	Type             *string
	Currency         *string
	OpeningBalance   *decimal.Decimal
	Archived         *bool
}

type DeleteAccountCommand struct {
	AccountID        string
	RequestingUserID string
}

// ---------- Category commands ----------

type CreateCategoryCommand struct {
	UserID string
	Name   string
	Kind   string
	Color  string
}

type UpdateCategoryCommand struct {
	CategoryID       string
	RequestingUserID string
	Name             *string
	Color            *string
}

type DeleteCategoryCommand struct {
	CategoryID       string
	RequestingUserID string
}

// ---------- Transaction commands ----------

// TransactionFields is the mutable content of a transaction, shared by
// create and full-replacement update.
type TransactionFields struct {
	Type          string
	Amount        decimal.Decimal
	AccountID     string
	FromAccountID string
	ToAccountID   string
	CategoryID    string
	OccurredOn    time.Time
	Note          string
}

// CreateTransactionCommand records a new transaction. TransactionID is
// normally empty; offline clients set it to the id they generated locally.
type CreateTransactionCommand struct {
	TransactionID string
	UserID        string
	TransactionFields
}

type UpdateTransactionCommand struct {
	TransactionID    string
	RequestingUserID string
	TransactionFields
}

type DeleteTransactionCommand struct {
	TransactionID    string
	RequestingUserID string
}

// ---------- Budget commands ----------

type SetBudgetCommand struct {
	UserID     string
	CategoryID string
	Month      time.Time
	Amount     decimal.Decimal
}

type DeleteBudgetCommand struct {
	BudgetID         string
	RequestingUserID string
}
