package adapter

import (
	"context"
	"time"
)

// VerifyResult is the provider-agnostic view of an authoritative gateway
// status report for one reference.
type VerifyResult struct {
	Status      string // gateway charge status, "success" when paid
	GatewayID   string // gateway-assigned transaction id
	Channel     string // card, bank, ussd, ...
	PaidAt      *time.Time
	AmountMinor int64 // minor currency units as settled
	Currency    string
	Metadata    map[string]interface{} // echoed back from initialization
	Raw         string                 // raw gateway message for the ledger diagnostic
}

func (v *VerifyResult) Succeeded() bool { return v != nil && v.Status == "success" }

// PaymentGateway is the hex port for the payment provider. It is treated as an
// untrusted, possibly-slow, possibly-duplicating collaborator: calls carry the
// request context and the implementation must enforce a bounded timeout.
type PaymentGateway interface {
	Name() string

	// Initialize creates a payment intent and returns the checkout URL the
	// customer is redirected to. Amount is in minor currency units; the
	// conversion from display amount happens once, at this boundary.
	Initialize(ctx context.Context, email string, amountMinor int64, reference, callbackURL string, meta map[string]interface{}) (authorizationURL string, err error)

	// Verify asks the provider for the authoritative status of a reference.
	Verify(ctx context.Context, reference string) (*VerifyResult, error)

	// VerifySignature checks the webhook HMAC over the raw, unparsed body.
	VerifySignature(signature string, body []byte) bool
}
