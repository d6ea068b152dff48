package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	accountquery "github.com/monli/monli/internal/account/query"
	"github.com/monli/monli/internal/ledger"
	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/models"
)

const (
	NisabGold   = "gold"
	NisabSilver = "silver"
)

var (
	GoldNisabGrams   = decimal.NewFromInt(85)
	SilverNisabGrams = decimal.NewFromInt(595)
	ZakatRate        = decimal.RequireFromString("0.025")
)

// PriceSource supplies metal prices per gram in the base currency.
type PriceSource interface {
	PricesPerGram(ctx context.Context) (gold, silver decimal.Decimal, err error)
}

// StaticPriceSource serves fixed prices, normally from configuration.
type StaticPriceSource struct {
	Gold   decimal.Decimal
	Silver decimal.Decimal
}

func (s StaticPriceSource) PricesPerGram(context.Context) (decimal.Decimal, decimal.Decimal, error) {
	return s.Gold, s.Silver, nil
}

type AccountLister interface {
	ListByUserID(ctx context.Context, userID string, includeArchived bool) ([]models.Account, error)
}

type Result struct {
	BaseCurrency     string               `json:"baseCurrency"`
	NisabBasis       string               `json:"nisabBasis"`
	PricePerGram     decimal.Decimal      `json:"pricePerGram"`
	Nisab            decimal.Decimal      `json:"nisab"`
	AccountsTotal    decimal.Decimal      `json:"accountsTotal"`
	AdditionalAssets decimal.Decimal      `json:"additionalAssets"`
	Liabilities      decimal.Decimal      `json:"liabilities"`
	Wealth           decimal.Decimal      `json:"wealth"`
	Eligible         bool                 `json:"eligible"`
	ZakatDue         decimal.Decimal      `json:"zakatDue"`
	IncludedAccounts []models.AccountView `json:"includedAccounts"`
	ExcludedAccounts []models.AccountView `json:"excludedAccounts"`
}

type ZakatQueryService struct {
	accounts     AccountLister
	balances     ledger.BalanceComputer
	prices       PriceSource
	baseCurrency string
}

func NewZakatQueryService(accounts AccountLister, balances ledger.BalanceComputer, prices PriceSource, baseCurrency string) *ZakatQueryService {
	return &ZakatQueryService{
		accounts:     accounts,
		balances:     balances,
		prices:       prices,
		baseCurrency: strings.ToUpper(baseCurrency),
	}
}

// Calculate values the caller's live, non-archived accounts in the base
// currency and applies the nisab test. Prices in q override the source.
func (s *ZakatQueryService) Calculate(ctx context.Context, q cqrs.ZakatQuery) (*Result, error) {
	basis := q.NisabBasis
	if basis == "" {
		basis = NisabGold
	}
	price, grams, err := s.price(ctx, basis, q)
	if err != nil {
		return nil, err
	}

	accounts, err := s.accounts.ListByUserID(ctx, q.UserID, false)
	if err != nil {
		return nil, err
	}
	views, err := accountquery.WithBalances(ctx, s.balances, q.UserID, accounts)
	if err != nil {
		return nil, err
	}

	r := &Result{
		BaseCurrency:     s.baseCurrency,
		NisabBasis:       basis,
		PricePerGram:     price,
		AccountsTotal:    decimal.Zero,
		AdditionalAssets: q.AdditionalAssets,
		Liabilities:      q.Liabilities,
		IncludedAccounts: []models.AccountView{},
		ExcludedAccounts: []models.AccountView{},
	}
	for _, v := range views {
		if v.CurrentBalance == nil || !strings.EqualFold(v.Currency, s.baseCurrency) {
			r.ExcludedAccounts = append(r.ExcludedAccounts, v)
			continue
		}
		r.IncludedAccounts = append(r.IncludedAccounts, v)
		r.AccountsTotal = r.AccountsTotal.Add(*v.CurrentBalance)
	}

	r.Nisab = grams.Mul(price)
	r.Wealth = r.AccountsTotal.Add(q.AdditionalAssets).Sub(q.Liabilities)
	r.Eligible, r.ZakatDue = Due(r.Wealth, r.Nisab)
	return r, nil
}

// Due applies the nisab test: 2.5% of wealth, rounded to cents, once wealth
// reaches nisab.
func Due(wealth, nisab decimal.Decimal) (bool, decimal.Decimal) {
	if !wealth.IsPositive() || wealth.LessThan(nisab) {
		return false, decimal.Zero
	}
	return true, wealth.Mul(ZakatRate).Round(2)
}

func (s *ZakatQueryService) price(ctx context.Context, basis string, q cqrs.ZakatQuery) (decimal.Decimal, decimal.Decimal, error) {
	var override *decimal.Decimal
	var grams decimal.Decimal
	switch basis {
	case NisabGold:
		override, grams = q.GoldPricePerGram, GoldNisabGrams
	case NisabSilver:
		override, grams = q.SilverPricePerGram, SilverNisabGrams
	default:
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: unknown nisab basis %q", cqrs.ErrInvalidAmount, basis)
	}
	if override != nil {
		if !override.IsPositive() {
			return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %s price must be positive", cqrs.ErrInvalidAmount, basis)
		}
		return *override, grams, nil
	}

	gold, silver, err := s.prices.PricesPerGram(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to load metal prices: %w", err)
	}
	price := gold
	if basis == NisabSilver {
		price = silver
	}
	if !price.IsPositive() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: no %s price configured", cqrs.ErrInvalidAmount, basis)
	}
	return price, grams, nil
}
