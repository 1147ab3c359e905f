//go:build !integration

package catalog

import (
	"context"
	"errors"
	"testing"

	"saas-subscription-api/internal/domain"
	"saas-subscription-api/internal/domain/model"
)

func TestStaticCatalog(t *testing.T) {
	ctx := context.Background()
	c := NewStaticCatalog()

	t.Run("lists the four tiers in order", func(t *testing.T) {
		plans, err := c.ListAll(ctx)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		want := []model.SubscriptionTier{model.TierFree, model.TierBasic, model.TierPro, model.TierEnterprise}
		if len(plans) != len(want) {
			t.Fatalf("expected %d plans, got %d", len(want), len(plans))
		}
		for i, p := range plans {
			if p.ID != want[i] {
				t.Errorf("plan %d: expected %s, got %s", i, want[i], p.ID)
			}
		}
	})

	t.Run("prices and periods", func(t *testing.T) {
		for _, tc := range []struct {
			id     string
			price  int64
			period int
		}{
			{"free", 0, 0},
			{"basic", 5000, 30},
			{"pro", 15000, 30},
			{"enterprise", 50000, 30},
		} {
			p, err := c.FindByID(ctx, tc.id)
			if err != nil {
				t.Fatalf("FindByID(%s): %v", tc.id, err)
			}
			if p.Price != tc.price || p.PeriodDays != tc.period {
				t.Errorf("%s: got price %d period %d", tc.id, p.Price, p.PeriodDays)
			}
			if p.Currency != "NGN" {
				t.Errorf("%s: expected NGN, got %s", tc.id, p.Currency)
			}
		}
	})

	t.Run("unknown tier", func(t *testing.T) {
		if _, err := c.FindByID(ctx, "platinum"); !errors.Is(err, domain.ErrPlanNotFound) {
			t.Errorf("expected ErrPlanNotFound, got %v", err)
		}
	})

	t.Run("returned plans are copies", func(t *testing.T) {
		p, _ := c.FindByID(ctx, "basic")
		p.Price = 1
		again, _ := c.FindByID(ctx, "basic")
		if again.Price != 5000 {
			t.Error("mutating a returned plan must not change the catalog")
		}
	})
}
