package model

// Plan is one entry in the static subscription catalog. Price is in major
// currency units; the conversion to minor units happens once, at the gateway
// boundary.
type Plan struct {
	ID         SubscriptionTier
	Name       string
	Price      int64
	Currency   string
	PeriodDays int // 0 means no expiration (free)
	Features   []string
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

func (p *Plan) IsFree() bool { return p.ID == TierFree }
