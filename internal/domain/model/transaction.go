package model

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"saas-subscription-api/internal/domain"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"   // ledger entry created; awaiting gateway outcome
	TransactionStatusSuccess   TransactionStatus = "success"   // gateway confirmed the charge
	TransactionStatusFailed    TransactionStatus = "failed"    // gateway reported failure or init errored
	TransactionStatusAbandoned TransactionStatus = "abandoned" // customer never completed checkout
)

// IsTerminal reports whether the status can no longer change.
// pending may only move to success or failed; terminal states never revert.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusFailed || s == TransactionStatusAbandoned
}

// Transaction is one ledger entry for a payment attempt. Rows are appended and
// resolved in place, never deleted. Reference is the idempotency key shared
// with the gateway across every reconciliation path.
type Transaction struct {
	ID                   string // ULID
	UserID               string // UUID
	Reference            string // unique, immutable after creation
	GatewayTransactionID *string
	Amount               int64 // major currency units, as quoted at init
	Currency             string
	Status               TransactionStatus
	PlanID               string
	PaymentChannel       *string
	PaidAt               *time.Time
	GatewayResponse      *string                // raw diagnostic from the gateway on resolution
	Meta                 map[string]interface{} // mirrored to the gateway as metadata (JSONB in DB)
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Metadata keys carried to the gateway so asynchronous resolution can recover
// the validity window without re-querying local state.
const (
	MetaUserID    = "user_id"
	MetaPlanID    = "plan_id"
	MetaReference = "reference"
	MetaStartDate = "start_date"
	MetaEndDate   = "end_date"
)

// NewPendingTransaction builds a pending ledger entry for a paid subscribe.
// The validity window is embedded in Meta; webhook and poll must both recover
// it from there rather than recompute it.
func NewPendingTransaction(userID, planID string, amount int64, currency string, start, end time.Time) (*Transaction, error) {
	if userID == "" || planID == "" || amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	ref, err := NewReference(userID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Transaction{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Reference: ref,
		Amount:    amount,
		Currency:  currency,
		Status:    TransactionStatusPending,
		PlanID:    planID,
		Meta: map[string]interface{}{
			MetaUserID:    userID,
			MetaPlanID:    planID,
			MetaReference: ref,
			MetaStartDate: start.UTC().Format(time.RFC3339),
			MetaEndDate:   end.UTC().Format(time.RFC3339),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NewReference generates a gateway-visible reference embedding the owning user
// id plus a high-entropy suffix for collision avoidance.
func NewReference(userID string) (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("reference entropy: %w", err)
	}
	return fmt.Sprintf("sub_%s_%08x", userID, b), nil
}

// UserIDFromReference recovers the embedded user id. Used by the manual
// verification path to reconstruct a ledger entry without a lookup.
func UserIDFromReference(ref string) (string, error) {
	parts := strings.Split(ref, "_")
	if len(parts) < 3 || parts[0] != "sub" || parts[1] == "" {
		return "", domain.ErrInvalidReference
	}
	if _, err := uuid.Parse(parts[1]); err != nil {
		return "", domain.ErrInvalidReference
	}
	return parts[1], nil
}

// Window returns the validity window recorded at initiation, or ok=false when
// the metadata is missing or unparseable.
func (t *Transaction) Window() (start, end time.Time, ok bool) {
	s, e := metaTime(t.Meta, MetaStartDate), metaTime(t.Meta, MetaEndDate)
	if s == nil || e == nil {
		return time.Time{}, time.Time{}, false
	}
	return *s, *e, true
}

func metaTime(meta map[string]interface{}, key string) *time.Time {
	raw, ok := meta[key].(string)
	if !ok {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &ts
}
