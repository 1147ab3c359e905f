package catalog

import (
	"context"

	"saas-subscription-api/internal/domain"
	"saas-subscription-api/internal/domain/model"
	"saas-subscription-api/internal/domain/ports/repository"
)

var _ repository.PlanRepository = (*StaticCatalog)(nil)

// StaticCatalog serves the fixed tier -> price/features table. Prices are in
// major NGN units; paid tiers run on 30-day periods.
type StaticCatalog struct {
	plans map[model.SubscriptionTier]*model.Plan
	order []model.SubscriptionTier
}

func NewStaticCatalog() *StaticCatalog {
	plans := []*model.Plan{
		{
			ID:       model.TierFree,
			Name:     "Free",
			Price:    0,
			Currency: "NGN",
			Features: []string{"Basic access", "Limited storage"},
		},
		{
			ID:         model.TierBasic,
			Name:       "Basic",
			Price:      5000,
			Currency:   "NGN",
			PeriodDays: 30,
			Features:   []string{"Full access", "10GB storage", "Email support"},
		},
		{
			ID:         model.TierPro,
			Name:       "Pro",
			Price:      15000,
			Currency:   "NGN",
			PeriodDays: 30,
			Features:   []string{"Everything in Basic", "100GB storage", "Priority support", "API access"},
		},
		{
			ID:         model.TierEnterprise,
			Name:       "Enterprise",
			Price:      50000,
			Currency:   "NGN",
			PeriodDays: 30,
			Features:   []string{"Everything in Pro", "Unlimited storage", "Dedicated support"},
		},
	}
	c := &StaticCatalog{plans: make(map[model.SubscriptionTier]*model.Plan, len(plans))}
	for _, p := range plans {
		c.plans[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c
}

func (c *StaticCatalog) FindByID(ctx context.Context, id string) (*model.Plan, error) {
	tier, err := model.ParseTier(id)
	if err != nil {
		return nil, domain.ErrPlanNotFound
	}
	p, ok := c.plans[tier]
	if !ok {
		return nil, domain.ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}

func (c *StaticCatalog) ListAll(ctx context.Context) ([]*model.Plan, error) {
	out := make([]*model.Plan, 0, len(c.order))
	for _, id := range c.order {
		cp := *c.plans[id]
		out = append(out, &cp)
	}
	return out, nil
}
