package syncer

import (
	"context"

	"wealthsync/internal/models"
	"wealthsync/internal/repository"
)

// HoldingChange is an update of a stored holding to newly reported values.
type HoldingChange struct {
	ID      string
	Holding models.Holding
}

// Plan is the set of writes that makes stored holdings equal the reported
// positions.
type Plan struct {
	Insert    []models.Holding
	Update    []HoldingChange
	Delete    []string
	Unchanged int
}

// PlanReconcile diffs existing holdings against incoming ones, matched by
// exact symbol. Matched rows whose values did not change produce no write.
func PlanReconcile(existing, incoming []models.Holding) Plan {
	bySymbol := make(map[string]*models.Holding, len(existing))
	for i := range existing {
		bySymbol[existing[i].Symbol] = &existing[i]
	}

	var plan Plan
	seen := make(map[string]bool, len(incoming))
	for _, h := range incoming {
		seen[h.Symbol] = true
		current, ok := bySymbol[h.Symbol]
		switch {
		case !ok:
			plan.Insert = append(plan.Insert, h)
		case current.SameValues(&h):
			plan.Unchanged++
		default:
			plan.Update = append(plan.Update, HoldingChange{ID: current.ID, Holding: h})
		}
	}
	for _, h := range existing {
		if !seen[h.Symbol] {
			plan.Delete = append(plan.Delete, h.ID)
		}
	}
	return plan
}

// reconcile applies the plan and the account update inside one transaction.
func reconcile(ctx context.Context, repo repository.Repository, accountID string, holdings []models.Holding, update repository.AccountUpdate) (Plan, error) {
	var plan Plan
	err := repo.Transaction(ctx, func(tx repository.Repository) error {
		existing, err := tx.GetHoldingsByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		plan = PlanReconcile(existing, holdings)

		for _, id := range plan.Delete {
			if err := tx.DeleteHolding(ctx, id); err != nil {
				return err
			}
		}
		for _, change := range plan.Update {
			h := change.Holding
			if err := tx.UpdateHolding(ctx, change.ID, repository.HoldingUpdate{
				Name:          &h.Name,
				Shares:        &h.Shares,
				CurrentPrice:  &h.CurrentPrice,
				TotalValue:    &h.TotalValue,
				Category:      &h.Category,
				ChangePercent: &h.ChangePercent,
			}); err != nil {
				return err
			}
		}
		for i := range plan.Insert {
			h := plan.Insert[i]
			h.AccountID = accountID
			if err := tx.CreateHolding(ctx, &h); err != nil {
				return err
			}
		}

		_, err = tx.UpdateAccount(ctx, accountID, update)
		return err
	})
	return plan, err
}
