package query

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/events"
	"github.com/monli/monli/shared/models"
	"github.com/monli/monli/shared/utils"
)

// MaxReportMonths bounds the monthly report range, both ends inclusive.
const MaxReportMonths = 24

// SummaryStore computes report aggregates from the ledger tables.
type SummaryStore interface {
	MonthSummaries(ctx context.Context, userID string, from, to time.Time) ([]models.MonthSummary, error)
	CategoryTotals(ctx context.Context, userID, kind string, from, to time.Time) ([]models.CategoryTotal, error)
}

// SummaryCache is the subset of redis.ViewCache used for month summaries.
type SummaryCache interface {
	GetMany(ctx context.Context, keys []string) map[string]models.MonthSummary
	SetMany(ctx context.Context, entries map[string]models.MonthSummary)
	Delete(ctx context.Context, keys ...string)
}

type ReportQueryService struct {
	store  SummaryStore
	cache  SummaryCache
	logger *zap.Logger
}

func NewReportQueryService(store SummaryStore, cache SummaryCache, logger *zap.Logger) *ReportQueryService {
	return &ReportQueryService{store: store, cache: cache, logger: logger}
}

func summaryKey(userID, month string) string {
	return "report:summary:" + userID + ":" + month
}

// MonthlyReport returns one summary per month from q.From to q.To inclusive,
// zero-filled for months without activity. Cached months are served from
// Redis and the rest come from a single grouped query.
func (s *ReportQueryService) MonthlyReport(ctx context.Context, q cqrs.MonthlyReportQuery) ([]models.MonthSummary, error) {
	from, to := utils.MonthStart(q.From), utils.MonthStart(q.To)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: to is before from", cqrs.ErrInvalidRange)
	}
	months := monthsBetween(from, to)
	if len(months) > MaxReportMonths {
		return nil, fmt.Errorf("%w: at most %d months", cqrs.ErrInvalidRange, MaxReportMonths)
	}

	keys := make([]string, len(months))
	for i, m := range months {
		keys[i] = summaryKey(q.UserID, utils.MonthKey(m))
	}
	cached := s.cache.GetMany(ctx, keys)

	out := make([]models.MonthSummary, len(months))
	var missing []int
	for i, m := range months {
		if hit, ok := cached[keys[i]]; ok {
			out[i] = hit
			continue
		}
		out[i] = emptySummary(utils.MonthKey(m))
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	first, last := months[missing[0]], months[missing[len(missing)-1]]
	rows, err := s.store.MonthSummaries(ctx, q.UserID, first, last.AddDate(0, 1, 0))
	if err != nil {
		return nil, err
	}
	computed := make(map[string]models.MonthSummary, len(rows))
	for _, r := range rows {
		computed[r.Month] = r
	}
	fill := make(map[string]models.MonthSummary, len(missing))
	for _, i := range missing {
		if r, ok := computed[out[i].Month]; ok {
			out[i] = r
		}
		fill[keys[i]] = out[i]
	}
	s.cache.SetMany(ctx, fill)
	return out, nil
}

// CategoryReport totals one month's transactions of q.Kind per category.
// It is always computed from the database.
func (s *ReportQueryService) CategoryReport(ctx context.Context, q cqrs.CategoryReportQuery) ([]models.CategoryTotal, error) {
	kind := q.Kind
	if kind == "" {
		kind = models.TransactionExpense
	}
	month := utils.MonthStart(q.Month)
	return s.store.CategoryTotals(ctx, q.UserID, kind, month, month.AddDate(0, 1, 0))
}

// HandleTransactionEvent drops the cached summaries of every month a
// transaction mutation touched.
func (s *ReportQueryService) HandleTransactionEvent(ctx context.Context, event events.Event) error {
	var payload events.TransactionEvent
	if err := event.Decode(&payload); err != nil {
		return err
	}
	if payload.UserID == "" || len(payload.Months) == 0 {
		return nil
	}
	keys := make([]string, len(payload.Months))
	for i, m := range payload.Months {
		keys[i] = summaryKey(payload.UserID, m)
	}
	s.cache.Delete(ctx, keys...)
	s.logger.Debug("Invalidated month summaries",
		zap.String("userId", payload.UserID),
		zap.Strings("months", payload.Months))
	return nil
}

func monthsBetween(from, to time.Time) []time.Time {
	var months []time.Time
	for m := from; !m.After(to); m = m.AddDate(0, 1, 0) {
		months = append(months, m)
		if len(months) > MaxReportMonths {
			break
		}
	}
	return months
}

func emptySummary(month string) models.MonthSummary {
	return models.MonthSummary{Month: month, Income: decimal.Zero, Expense: decimal.Zero, Net: decimal.Zero}
}
