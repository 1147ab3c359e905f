package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"saas-subscription-api/internal/domain"
	"saas-subscription-api/internal/infra/metrics"
)

const signatureHeader = "X-Paystack-Signature"

type webhookPayload struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// handlePaystackWebhook verifies the HMAC over the raw body before parsing
// anything, then dispatches on event type. The gateway delivers at least
// once, so unrecognized events and duplicates are acknowledged, never errors.
func (s *Server) handlePaystackWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if !s.gateway.VerifySignature(r.Header.Get(signatureHeader), body) {
		metrics.IncWebhookEvent("unknown", "rejected")
		s.log.Warn().Msg("webhook signature rejected")
		writeError(w, http.StatusUnauthorized, domain.ErrInvalidSignature.Error())
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	switch payload.Event {
	case "charge.success":
		s.handleChargeSuccess(w, r, payload)
	case "invoice.payment_failed":
		// Renewal failure notice; the sweeper handles the eventual downgrade.
		metrics.IncWebhookEvent(payload.Event, "processed")
		s.log.Info().Str("event", payload.Event).Msg("renewal payment failed notice")
		writeJSON(w, http.StatusOK, map[string]string{"status": "success", "event": payload.Event})
	default:
		metrics.IncWebhookEvent(payload.Event, "ignored")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "event": payload.Event})
	}
}

func (s *Server) handleChargeSuccess(w http.ResponseWriter, r *http.Request, payload webhookPayload) {
	reference, _ := payload.Data["reference"].(string)
	if reference == "" {
		// Malformed but authenticated; acknowledge so the gateway stops
		// retrying a payload we can never use.
		metrics.IncWebhookEvent(payload.Event, "ignored")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "no reference"})
		return
	}

	// The payload itself is not trusted for the outcome; Reconcile asks the
	// gateway for the authoritative status over the same routine the poll
	// path uses.
	out, err := s.reconcileSerialized(r, reference)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			// Reference we never issued (or a different environment's).
			metrics.IncWebhookEvent(payload.Event, "ignored")
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "unknown reference"})
			return
		}
		metrics.IncWebhookEvent(payload.Event, "rejected")
		s.writeReconcileError(w, err)
		return
	}

	metrics.IncWebhookEvent(payload.Event, "processed")
	writeJSON(w, http.StatusOK, outcomeResponse(out))
}
