package ledger

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/monli/monli/internal/storage"
	"github.com/monli/monli/shared/utils"
)

// PostgresStore runs the ledger queries against a connection or a
// transaction. Bound to a *sql.Tx it sees the transaction's own writes and
// the row locks it holds.
type PostgresStore struct {
	q storage.DBTX
}

func NewPostgresStore(q storage.DBTX) *PostgresStore {
	return &PostgresStore{q: q}
}

// OpeningBalances skips ids that are not UUIDs. No such account can exist,
// and the uuid[] cast would otherwise fail the whole query.
func (s *PostgresStore) OpeningBalances(ctx context.Context, userID string, accountIDs []string) (map[string]decimal.Decimal, error) {
	accountIDs = validIDs(accountIDs)
	if len(accountIDs) == 0 {
		return map[string]decimal.Decimal{}, nil
	}
	query := `
		SELECT id, opening_balance
		FROM accounts
		WHERE user_id = $1 AND id = ANY($2::uuid[]) AND deleted_at IS NULL
	`
	return s.scanSums(ctx, query, userID, pq.Array(accountIDs))
}

func (s *PostgresStore) SumAmounts(ctx context.Context, userID string, accountIDs []string, leg Leg) (map[string]decimal.Decimal, error) {
	var column string
	switch leg.Key {
	case ByAccount, ByFromAccount, ByToAccount:
		column = string(leg.Key)
	default:
		return nil, fmt.Errorf("unknown ledger key %q", leg.Key)
	}

	accountIDs = validIDs(accountIDs)
	if len(accountIDs) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %[1]s, SUM(amount)
		FROM transactions
		WHERE user_id = $1 AND type = $2 AND %[1]s = ANY($3::uuid[]) AND deleted_at IS NULL
		GROUP BY %[1]s
	`, column)
	return s.scanSums(ctx, query, userID, leg.Type, pq.Array(accountIDs))
}

func (s *PostgresStore) scanSums(ctx context.Context, query string, args ...any) (map[string]decimal.Decimal, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var id string
		var amount decimal.Decimal
		if err := rows.Scan(&id, &amount); err != nil {
			return nil, err
		}
		out[id] = amount
	}
	return out, rows.Err()
}

func validIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if utils.ValidateID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}
