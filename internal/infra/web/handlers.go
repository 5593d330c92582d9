package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/infra/adapters/provider"
	"telegram-vpn-subscription/internal/infra/metrics"
)

// CryptoPayVerifier is the slice of the crypto gateway the server needs.
type CryptoPayVerifier interface {
	VerifyWebhook(body []byte, signature string) bool
	ParseWebhook(body []byte) (*model.ProviderEvent, error)
}

// CardlinkParser is the slice of the card gateway the server needs.
type CardlinkParser interface {
	ParseCallback(cb *provider.CardlinkCallback) (*model.ProviderEvent, error)
}

const maxWebhookBody = 1 << 20 // 1 MiB

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleCryptoPayWebhook authenticates the delivery by its body signature,
// then hands the normalized event to the reconciler. Unknown or irrelevant
// updates are acknowledged so the provider stops retrying them.
func (s *Server) handleCryptoPayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		metrics.IncWebhookEvent("cryptopay", "bad_request")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	sig := r.Header.Get("Crypto-Pay-Api-Signature")
	if !s.cryptopay.VerifyWebhook(body, sig) {
		metrics.IncWebhookEvent("cryptopay", "bad_signature")
		s.log.Warn().Msg("cryptopay webhook signature mismatch")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	ev, err := s.cryptopay.ParseWebhook(body)
	if err != nil {
		metrics.IncWebhookEvent("cryptopay", "bad_request")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if ev == nil {
		// update type we do not act on
		metrics.IncWebhookEvent("cryptopay", "ignored")
		w.WriteHeader(http.StatusOK)
		return
	}
	s.processEvent(w, r, ev)
}

// handleCardlinkCallback validates the postback token inside ParseCallback
// before any field is trusted.
func (s *Server) handleCardlinkCallback(w http.ResponseWriter, r *http.Request) {
	var cb provider.CardlinkCallback
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&cb); err != nil {
		metrics.IncWebhookEvent("cardlink", "bad_request")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	ev, err := s.cardlink.ParseCallback(&cb)
	if err != nil {
		if errors.Is(err, domain.ErrSignatureInvalid) {
			metrics.IncWebhookEvent("cardlink", "bad_signature")
			s.log.Warn().Str("bill_id", cb.BillID).Msg("cardlink callback token rejected")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		metrics.IncWebhookEvent("cardlink", "bad_request")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if ev == nil {
		metrics.IncWebhookEvent("cardlink", "ignored")
		w.WriteHeader(http.StatusOK)
		return
	}
	s.processEvent(w, r, ev)
}

// processEvent runs the reconciler and maps its outcome to an HTTP status.
// Only a validation failure on a matched intent becomes a client error; an
// unmatched event is acknowledged so providers do not retry forever.
func (s *Server) processEvent(w http.ResponseWriter, r *http.Request, ev *model.ProviderEvent) {
	p := string(ev.Provider)
	if err := s.reconciler.Process(r.Context(), ev); err != nil {
		switch {
		case errors.Is(err, domain.ErrAmountMismatch),
			errors.Is(err, domain.ErrProviderMismatch),
			errors.Is(err, domain.ErrInvalidArgument):
			metrics.IncWebhookEvent(p, "rejected")
			s.log.Warn().Err(err).Str("intent_id", ev.IntentID).Msg("webhook event rejected")
			http.Error(w, "bad request", http.StatusBadRequest)
		default:
			metrics.IncWebhookEvent(p, "error")
			s.log.Error().Err(err).Str("intent_id", ev.IntentID).Msg("webhook processing failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	metrics.IncWebhookEvent(p, "ok")
	w.WriteHeader(http.StatusOK)
}
