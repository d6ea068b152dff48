package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/monli/monli/shared/models"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go

// Key names the transaction column a grouped sum is keyed by.
type Key string

const (
	ByAccount     Key = "account_id"
	ByFromAccount Key = "from_account_id"
	ByToAccount   Key = "to_account_id"
)

// Leg is one grouped sum that contributes to account balances. Credit legs
// are added, debit legs subtracted.
type Leg struct {
	Type   string
	Key    Key
	Credit bool
}

// Legs lists every contribution to a balance after the opening balance.
var Legs = []Leg{
	{Type: models.TransactionIncome, Key: ByAccount, Credit: true},
	{Type: models.TransactionExpense, Key: ByAccount, Credit: false},
	{Type: models.TransactionTransfer, Key: ByFromAccount, Credit: false},
	{Type: models.TransactionTransfer, Key: ByToAccount, Credit: true},
}

// Store reads committed ledger state. Every method is scoped to userID and
// ignores soft-deleted rows. Ids that are not visible are simply absent from
// the returned maps.
type Store interface {
	OpeningBalances(ctx context.Context, userID string, accountIDs []string) (map[string]decimal.Decimal, error)
	SumAmounts(ctx context.Context, userID string, accountIDs []string, leg Leg) (map[string]decimal.Decimal, error)
}
