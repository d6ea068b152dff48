package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserView is the read projection of a user. It never exposes PasswordHash.
type UserView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdTimestamp"`
	UpdatedAt time.Time `json:"updatedTimestamp"`
}

func (u *User) View() *UserView {
	return &UserView{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// AccountView is an account merged with its derived balance.
// CurrentBalance is nil when the ledger did not return the account, in which
// case the field is omitted rather than reported as zero.
type AccountView struct {
	Account
	CurrentBalance *decimal.Decimal `json:"currentBalance,omitempty"`
}

// NewAccountView merges a ledger result into the account.
func NewAccountView(a Account, balances map[string]decimal.Decimal) AccountView {
	view := AccountView{Account: a}
	if b, ok := balances[a.ID]; ok {
		view.CurrentBalance = &b
	}
	return view
}

// BudgetView is a budget with its spending progress for the month.
type BudgetView struct {
	Budget
	CategoryName string          `json:"categoryName,omitempty"`
	Spent        decimal.Decimal `json:"spent"`
	Remaining    decimal.Decimal `json:"remaining"`
}

// MonthSummary totals income and expense for one month. Transfers are not
// part of either side.
type MonthSummary struct {
	Month   string          `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// CategoryTotal is one row of a per-category report.
type CategoryTotal struct {
	CategoryID   string          `json:"categoryId,omitempty"`
	CategoryName string          `json:"categoryName"`
	Total        decimal.Decimal `json:"total"`
}
