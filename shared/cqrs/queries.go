package cqrs

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------- User queries ----------

type GetUserQuery struct {
	UserID string
}

// ---------- Account queries ----------

// GetAccountQuery fetches a single account, subject to ownership check.
type GetAccountQuery struct {
	AccountID        string
	RequestingUserID string
}

// ListAccountsQuery fetches all accounts belonging to a user.
type ListAccountsQuery struct {
	UserID          string
	IncludeArchived bool
}

// ---------- Category queries ----------

type GetCategoryQuery struct {
	CategoryID       string
	RequestingUserID string
}

type ListCategoriesQuery struct {
	UserID string
	Kind   string
}

// ---------- Transaction queries ----------

type GetTransactionQuery struct {
	TransactionID    string
	RequestingUserID string
}

// ListTransactionsQuery filters a user's transactions. AccountID matches
// the primary account and both transfer legs. Zero-valued fields do not
// filter.
type ListTransactionsQuery struct {
	UserID     string
	AccountID  string
	CategoryID string
	Type       string
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// ---------- Budget queries ----------

type ListBudgetsQuery struct {
	UserID string
	Month  time.Time
}

// ---------- Dashboard / report queries ----------

type DashboardQuery struct {
	UserID string
	Month  time.Time
}

type MonthlyReportQuery struct {
	UserID string
	From   time.Time
	To     time.Time
}

type CategoryReportQuery struct {
	UserID string
	Month  time.Time
	Kind   string
}

// ---------- Zakat ----------

type ZakatQuery struct {
	UserID             string
	NisabBasis         string
	GoldPricePerGram   *decimal.Decimal
	SilverPricePerGram *decimal.Decimal
	AdditionalAssets   decimal.Decimal
	Liabilities        decimal.Decimal
}
