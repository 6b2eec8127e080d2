// Package normalize maps provider-native payloads onto the canonical account
// balance and holding list. It performs no I/O.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/models"
	"wealthsync/internal/providers"
)

// Normalized is the canonical view of one remote account.
type Normalized struct {
	Balance  decimal.Decimal
	Ref      models.AccountRef
	Holdings []models.Holding
}

// position is a provider position before rounding and de-duplication.
// price and total are nil when the provider omitted them.
type position struct {
	symbol   string
	name     string
	shares   decimal.Decimal
	price    *decimal.Decimal
	total    *decimal.Decimal
	change   decimal.Decimal
	category models.Category
}

// Normalize converts a raw account and its positions. Holdings come back
// without AccountID; the caller owns that relation.
func Normalize(account providers.RawAccount, positions providers.RawPositions) (*Normalized, error) {
	var (
		provider models.Provider
		rows     []position
		balance  *decimal.Decimal
		err      error
	)

	switch p := positions.(type) {
	case providers.ETradePortfolio:
		provider = models.ProviderETrade
		rows, balance, err = fromETrade(p)
	case providers.SchwabAccount:
		provider = models.ProviderSchwab
		rows, balance, err = fromSchwab(p)
	case providers.PlaidHoldings:
		provider = models.ProviderPlaid
		rows, balance, err = fromPlaid(p, account)
	case providers.DemoPortfolio:
		provider = models.ProviderDemo
		rows, err = fromDemo(p)
	default:
		return nil, apperrors.WithMessage(apperrors.ErrProviderSchema,
			fmt.Sprintf("unsupported positions payload %T", positions))
	}
	if err != nil {
		return nil, err
	}

	holdings, err := buildHoldings(provider, rows)
	if err != nil {
		return nil, err
	}

	out := &Normalized{Holdings: holdings}
	if account != nil {
		out.Ref = account.Ref()
	}
	if balance != nil {
		out.Balance = balance.Round(2)
	} else {
		sum := decimal.Zero
		for _, h := range holdings {
			sum = sum.Add(h.TotalValue)
		}
		out.Balance = sum.Round(2)
	}
	return out, nil
}

func fromETrade(p providers.ETradePortfolio) ([]position, *decimal.Decimal, error) {
	rows := make([]position, 0, len(p.Positions))
	for i, pos := range p.Positions {
		shares, err := required(models.ProviderETrade, i, "quantity", pos.Quantity)
		if err != nil {
			return nil, nil, err
		}
		if strings.EqualFold(pos.PositionType, "SHORT") && shares.IsPositive() {
			shares = shares.Neg()
		}
		price, err := optional(models.ProviderETrade, i, "lastTrade", pos.Quick.LastTrade)
		if err != nil {
			return nil, nil, err
		}
		total, err := optional(models.ProviderETrade, i, "marketValue", pos.MarketValue)
		if err != nil {
			return nil, nil, err
		}
		change, err := optional(models.ProviderETrade, i, "changePct", pos.Quick.ChangePct)
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, position{
			symbol:   pos.Product.Symbol,
			name:     pos.SymbolDescription,
			shares:   shares,
			price:    price,
			total:    total,
			change:   orZero(change),
			category: etradeCategories.classify(pos.Product.SecurityType),
		})
	}

	balance, err := optional(models.ProviderETrade, -1, "netAccountValue", p.Totals.NetAccountValue)
	if err != nil || balance != nil {
		return rows, balance, err
	}
	market, err := optional(models.ProviderETrade, -1, "totalMarketValue", p.Totals.TotalMarketValue)
	if err != nil || market == nil {
		return rows, nil, err
	}
	cash, err := optional(models.ProviderETrade, -1, "cashBalance", p.Totals.CashBalance)
	if err != nil {
		return nil, nil, err
	}
	sum := market.Add(orZero(cash))
	return rows, &sum, nil
}

func fromSchwab(p providers.SchwabAccount) ([]position, *decimal.Decimal, error) {
	acct := p.SecuritiesAccount
	rows := make([]position, 0, len(acct.Positions))
	for i, pos := range acct.Positions {
		long, err := optional(models.ProviderSchwab, i, "longQuantity", pos.LongQuantity)
		if err != nil {
			return nil, nil, err
		}
		short, err := optional(models.ProviderSchwab, i, "shortQuantity", pos.ShortQuantity)
		if err != nil {
			return nil, nil, err
		}
		if long == nil && short == nil {
			return nil, nil, schemaError(models.ProviderSchwab, i, "quantity", "missing")
		}
		total, err := required(models.ProviderSchwab, i, "marketValue", pos.MarketValue)
		if err != nil {
			return nil, nil, err
		}
		change, err := optional(models.ProviderSchwab, i, "currentDayProfitLossPercentage", pos.CurrentDayProfitLossPercentage)
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, position{
			symbol:   pos.Instrument.Symbol,
			name:     pos.Instrument.Description,
			shares:   orZero(long).Sub(orZero(short)),
			total:    &total,
			change:   orZero(change),
			category: schwabCategories.classify(pos.Instrument.Type, pos.Instrument.AssetType),
		})
	}

	balance, err := optional(models.ProviderSchwab, -1, "liquidationValue", acct.CurrentBalances.LiquidationValue)
	if err != nil {
		return nil, nil, err
	}
	return rows, balance, nil
}

func fromPlaid(p providers.PlaidHoldings, account providers.RawAccount) ([]position, *decimal.Decimal, error) {
	securities := make(map[string]providers.PlaidSecurity, len(p.Securities))
	for _, s := range p.Securities {
		securities[s.SecurityID] = s
	}

	rows := make([]position, 0, len(p.Holdings))
	for i, h := range p.Holdings {
		if p.AccountID != "" && h.AccountID != p.AccountID {
			continue
		}
		sec, ok := securities[h.SecurityID]
		if !ok {
			return nil, nil, schemaError(models.ProviderPlaid, i, "security_id", "references an unknown security")
		}
		shares, err := required(models.ProviderPlaid, i, "quantity", h.Quantity)
		if err != nil {
			return nil, nil, err
		}
		price, err := optional(models.ProviderPlaid, i, "institution_price", h.InstitutionPrice)
		if err != nil {
			return nil, nil, err
		}
		total, err := optional(models.ProviderPlaid, i, "institution_value", h.InstitutionValue)
		if err != nil {
			return nil, nil, err
		}

		symbol := sec.SecurityID
		if sec.TickerSymbol != nil && strings.TrimSpace(*sec.TickerSymbol) != "" {
			symbol = *sec.TickerSymbol
		}
		category := plaidCategories.classify(sec.Type)
		if sec.IsCashEquivalent {
			category = models.CategoryCash
		}
		rows = append(rows, position{
			symbol:   symbol,
			name:     sec.Name,
			shares:   shares,
			price:    price,
			total:    total,
			category: category,
		})
	}

	for _, a := range p.Accounts {
		if a.AccountID == p.AccountID {
			balance, err := optional(models.ProviderPlaid, -1, "balances.current", a.Balances.Current)
			if err != nil || balance != nil {
				return rows, balance, err
			}
		}
	}
	if acct, ok := account.(providers.PlaidAccount); ok {
		balance, err := optional(models.ProviderPlaid, -1, "balances.current", acct.Balances.Current)
		if err != nil {
			return nil, nil, err
		}
		return rows, balance, nil
	}
	return rows, nil, nil
}

func fromDemo(p providers.DemoPortfolio) ([]position, error) {
	rows := make([]position, 0, len(p.Positions))
	for i, pos := range p.Positions {
		shares, err := required(models.ProviderDemo, i, "quantity", pos.Quantity)
		if err != nil {
			return nil, err
		}
		price, err := optional(models.ProviderDemo, i, "price", pos.Price)
		if err != nil {
			return nil, err
		}
		total, err := optional(models.ProviderDemo, i, "value", pos.Value)
		if err != nil {
			return nil, err
		}
		change, err := optional(models.ProviderDemo, i, "changePct", pos.ChangePct)
		if err != nil {
			return nil, err
		}
		rows = append(rows, position{
			symbol:   pos.Symbol,
			name:     pos.Name,
			shares:   shares,
			price:    price,
			total:    total,
			change:   orZero(change),
			category: demoCategories.classify(pos.Type),
		})
	}
	return rows, nil
}

// buildHoldings derives missing price or total, collapses duplicate symbols
// and rounds. Order follows first appearance.
func buildHoldings(provider models.Provider, rows []position) ([]models.Holding, error) {
	holdings := make([]models.Holding, 0, len(rows))
	index := make(map[string]int, len(rows))

	for i, row := range rows {
		symbol := strings.TrimSpace(row.symbol)
		if symbol == "" {
			return nil, schemaError(provider, i, "symbol", "missing")
		}
		price, total, err := priceAndTotal(provider, i, row)
		if err != nil {
			return nil, err
		}

		if j, dup := index[symbol]; dup {
			h := &holdings[j]
			h.Shares = h.Shares.Add(row.shares)
			h.TotalValue = h.TotalValue.Add(total)
			if !h.Shares.IsZero() {
				h.CurrentPrice = h.TotalValue.Div(h.Shares)
			}
			continue
		}

		index[symbol] = len(holdings)
		holdings = append(holdings, models.Holding{
			Symbol:        symbol,
			Name:          strings.TrimSpace(row.name),
			Shares:        row.shares,
			CurrentPrice:  price,
			TotalValue:    total,
			Category:      row.category,
			ChangePercent: row.change,
		})
	}

	for i := range holdings {
		h := &holdings[i]
		h.Shares = h.Shares.Round(4)
		h.CurrentPrice = h.CurrentPrice.Round(2)
		h.TotalValue = h.TotalValue.Round(2)
		h.ChangePercent = h.ChangePercent.Round(2)
	}
	return holdings, nil
}

func priceAndTotal(provider models.Provider, i int, row position) (decimal.Decimal, decimal.Decimal, error) {
	switch {
	case row.price != nil && row.total != nil:
		return *row.price, *row.total, nil
	case row.price != nil:
		return *row.price, row.shares.Mul(*row.price), nil
	case row.total != nil:
		if row.shares.IsZero() {
			return decimal.Zero, *row.total, nil
		}
		return row.total.Div(row.shares), *row.total, nil
	default:
		return decimal.Zero, decimal.Zero, schemaError(provider, i, "price", "neither price nor value present")
	}
}

func required(provider models.Provider, i int, field string, n json.Number) (decimal.Decimal, error) {
	d, err := optional(provider, i, field, n)
	if err != nil {
		return decimal.Zero, err
	}
	if d == nil {
		return decimal.Zero, schemaError(provider, i, field, "missing")
	}
	return *d, nil
}

// optional parses n, returning nil when the provider omitted the field.
func optional(provider models.Provider, i int, field string, n json.Number) (*decimal.Decimal, error) {
	if n == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return nil, apperrors.WrapMessage(apperrors.ErrProviderSchema, location(provider, i, field)+" is not a number", err)
	}
	return &d, nil
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func schemaError(provider models.Provider, i int, field, problem string) error {
	return apperrors.WithMessage(apperrors.ErrProviderSchema, location(provider, i, field)+" "+problem)
}

func location(provider models.Provider, i int, field string) string {
	if i < 0 {
		return fmt.Sprintf("%s: %s", provider, field)
	}
	return fmt.Sprintf("%s: position %d %s", provider, i, field)
}
