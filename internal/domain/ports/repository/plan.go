package repository

import (
	"context"

	"saas-subscription-api/internal/domain/model"
)

// PlanRepository is the port for the plan catalog. The catalog is a static
// tier -> price/features table; the port exists so tests can swap it.
type PlanRepository interface {
	FindByID(ctx context.Context, id string) (*model.Plan, error)
	ListAll(ctx context.Context) ([]*model.Plan, error)
}
