package syncer

import (
	"testing"

	"github.com/shopspring/decimal"

	"wealthsync/internal/models"
)

func holding(id, symbol, shares, price string) models.Holding {
	s, p := decimal.RequireFromString(shares), decimal.RequireFromString(price)
	h := models.Holding{
		Symbol:       symbol,
		Name:         symbol,
		Shares:       s,
		CurrentPrice: p,
		TotalValue:   s.Mul(p).Round(2),
		Category:     models.CategoryStocks,
	}
	h.ID = id
	return h
}

func TestPlanReconcile(t *testing.T) {
	existing := []models.Holding{
		holding("h-aapl", "AAPL", "10", "150"),
		holding("h-tsla", "TSLA", "5", "200"),
		holding("h-vti", "VTI", "3", "250"),
	}
	incoming := []models.Holding{
		holding("", "AAPL", "12", "150"),
		holding("", "MSFT", "4", "400"),
		holding("", "VTI", "3", "250"),
	}

	plan := PlanReconcile(existing, incoming)

	if len(plan.Insert) != 1 || plan.Insert[0].Symbol != "MSFT" {
		t.Errorf("Insert = %+v, want MSFT", plan.Insert)
	}
	if len(plan.Update) != 1 || plan.Update[0].ID != "h-aapl" || !plan.Update[0].Holding.Shares.Equal(decimal.NewFromInt(12)) {
		t.Errorf("Update = %+v, want AAPL to 12 shares", plan.Update)
	}
	if len(plan.Delete) != 1 || plan.Delete[0] != "h-tsla" {
		t.Errorf("Delete = %v, want [h-tsla]", plan.Delete)
	}
	if plan.Unchanged != 1 {
		t.Errorf("Unchanged = %d, want 1", plan.Unchanged)
	}
}

func TestPlanReconcileMatchesSymbolsExactly(t *testing.T) {
	existing := []models.Holding{holding("h-1", "brk.b", "1", "400")}
	incoming := []models.Holding{holding("", "BRK.B", "1", "400")}

	plan := PlanReconcile(existing, incoming)
	if len(plan.Insert) != 1 || len(plan.Delete) != 1 {
		t.Errorf("symbols differing in case must not match: %+v", plan)
	}
}

func TestPlanReconcileEmpty(t *testing.T) {
	plan := PlanReconcile(nil, nil)
	if len(plan.Insert)+len(plan.Update)+len(plan.Delete)+plan.Unchanged != 0 {
		t.Errorf("expected empty plan, got %+v", plan)
	}

	plan = PlanReconcile([]models.Holding{holding("h-1", "AAPL", "1", "1")}, nil)
	if len(plan.Delete) != 1 {
		t.Errorf("empty position list should delete every holding, got %+v", plan)
	}
}
