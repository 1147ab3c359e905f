package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"saas-subscription-api/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopGateway)(nil)

// NoopGateway is a simple in-memory gateway to use in tests and dev mode.
type NoopGateway struct {
	mu      sync.Mutex
	intents map[string]noopIntent // reference -> intent
}

type noopIntent struct {
	amountMinor int64
	currency    string
	meta        map[string]interface{}
}

func NewNoopGateway() *NoopGateway {
	return &NoopGateway{intents: make(map[string]noopIntent)}
}

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) Initialize(ctx context.Context, email string, amountMinor int64, reference, callbackURL string, meta map[string]interface{}) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[reference] = noopIntent{amountMinor: amountMinor, currency: "NGN", meta: meta}
	return "https://checkout.example.test/" + reference, nil
}

func (g *NoopGateway) Verify(ctx context.Context, reference string) (*adapter.VerifyResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[reference]
	if !ok {
		return nil, fmt.Errorf("noop: reference not found")
	}
	now := time.Now()
	return &adapter.VerifyResult{
		Status:      "success",
		GatewayID:   "noop-" + reference,
		Channel:     "card",
		PaidAt:      &now,
		AmountMinor: in.amountMinor,
		Currency:    in.currency,
		Metadata:    in.meta,
		Raw:         "Approved",
	}, nil
}

func (g *NoopGateway) VerifySignature(signature string, body []byte) bool { return true }
