package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"saas-subscription-api/internal/config"
	"saas-subscription-api/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*PaystackGateway)(nil)

// PaystackGateway implements the PaymentGateway port against the Paystack
// HTTP API. Every call inherits the request context and is additionally
// bounded by the configured client timeout, so a hung provider can never
// leave a ledger entry pending forever.
type PaystackGateway struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	dev           bool
	client        *http.Client
}

func NewPaystackGateway(cfg *config.PaystackConfig, dev bool) *PaystackGateway {
	return &PaystackGateway{
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		baseURL:       cfg.BaseURL,
		dev:           dev,
		client:        &http.Client{Timeout: cfg.Timeout},
	}
}

func (g *PaystackGateway) Name() string { return "paystack" }

type paystackInitResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

type paystackVerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID       int64                  `json:"id"`
		Status   string                 `json:"status"`
		Channel  string                 `json:"channel"`
		PaidAt   *time.Time             `json:"paid_at"`
		Amount   int64                  `json:"amount"`
		Currency string                 `json:"currency"`
		Metadata map[string]interface{} `json:"metadata"`
		Gateway  string                 `json:"gateway_response"`
	} `json:"data"`
}

func (g *PaystackGateway) Initialize(ctx context.Context, email string, amountMinor int64, reference, callbackURL string, meta map[string]interface{}) (string, error) {
	payload := map[string]interface{}{
		"email":     email,
		"amount":    amountMinor,
		"reference": reference,
	}
	if callbackURL != "" {
		payload["callback_url"] = callbackURL
	}
	if meta != nil {
		payload["metadata"] = meta
	}

	var out paystackInitResponse
	if err := g.post(ctx, "/transaction/initialize", payload, &out); err != nil {
		return "", err
	}
	if !out.Status {
		return "", fmt.Errorf("paystack initialize: %s", out.Message)
	}
	return out.Data.AuthorizationURL, nil
}

func (g *PaystackGateway) Verify(ctx context.Context, reference string) (*adapter.VerifyResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, fmt.Errorf("paystack verify: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paystack verify: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("paystack verify: read response: %w", err)
	}
	var out paystackVerifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("paystack verify: decode response: %w, body: %s", err, string(body))
	}
	if !out.Status {
		return nil, fmt.Errorf("paystack verify: %s", out.Message)
	}

	return &adapter.VerifyResult{
		Status:      out.Data.Status,
		GatewayID:   fmt.Sprintf("%d", out.Data.ID),
		Channel:     out.Data.Channel,
		PaidAt:      out.Data.PaidAt,
		AmountMinor: out.Data.Amount,
		Currency:    out.Data.Currency,
		Metadata:    out.Data.Metadata,
		Raw:         out.Data.Gateway,
	}, nil
}

// VerifySignature checks the HMAC-SHA512 of the raw webhook body against the
// shared secret using a constant-time compare. An empty secret accepts
// everything only when the gateway was constructed in dev mode; production
// configuration requires the secret (enforced at config load).
func (g *PaystackGateway) VerifySignature(signature string, body []byte) bool {
	if g.webhookSecret == "" {
		return g.dev
	}
	mac := hmac.New(sha512.New, []byte(g.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (g *PaystackGateway) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("paystack: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("paystack: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("paystack: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("paystack: read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("paystack: decode response: %w, body: %s", err, string(body))
	}
	return nil
}
