package model

import (
	"time"

	"github.com/google/uuid"

	"saas-subscription-api/internal/domain"
)

type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "free"
	TierBasic      SubscriptionTier = "basic"
	TierPro        SubscriptionTier = "pro"
	TierEnterprise SubscriptionTier = "enterprise"
)

func ParseTier(s string) (SubscriptionTier, error) {
	switch SubscriptionTier(s) {
	case TierFree, TierBasic, TierPro, TierEnterprise:
		return SubscriptionTier(s), nil
	}
	return "", domain.ErrPlanNotFound
}

// User is the account entity carrying the current entitlement. The tier and
// the validity window move together: tier is free exactly when both dates are
// nil.
type User struct {
	ID           string // UUID
	Email        string
	PasswordHash string
	FullName     string

	SubscriptionTier      SubscriptionTier
	SubscriptionStartDate *time.Time
	SubscriptionEndDate   *time.Time
	AutoRenew             bool

	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewUser(email, passwordHash, fullName string) (*User, error) {
	if email == "" || passwordHash == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:               uuid.NewString(),
		Email:            email,
		PasswordHash:     passwordHash,
		FullName:         fullName,
		SubscriptionTier: TierFree,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// IsSubscriptionActive evaluates the entitlement at the given instant. Free is
// always active; a paid tier is active while its end date lies in the future,
// regardless of whether the sweeper has caught up yet.
func (u *User) IsSubscriptionActive(at time.Time) bool {
	if u.SubscriptionTier == TierFree {
		return true
	}
	return u.SubscriptionEndDate != nil && u.SubscriptionEndDate.After(at)
}

// Activate moves the user onto a paid tier with the given validity window.
// AutoRenew defaults on for a fresh paid activation and is otherwise left as
// the user set it.
func (u *User) Activate(tier SubscriptionTier, start, end time.Time) error {
	if tier == TierFree || !end.After(start) {
		return domain.ErrInvalidArgument
	}
	if u.SubscriptionTier == TierFree {
		u.AutoRenew = true
	}
	u.SubscriptionTier = tier
	u.SubscriptionStartDate = &start
	u.SubscriptionEndDate = &end
	u.UpdatedAt = time.Now()
	return nil
}

// Downgrade is the single "become free" transition shared by the zero-cost
// subscribe path and the expiry sweeper.
func (u *User) Downgrade() {
	u.SubscriptionTier = TierFree
	u.SubscriptionStartDate = nil
	u.SubscriptionEndDate = nil
	u.AutoRenew = false
	u.UpdatedAt = time.Now()
}
