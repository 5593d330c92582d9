// File: internal/infra/adapters/provider/cardlink_gateway.go
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/domain/ports/adapter"
)

var _ adapter.ProviderAdapter = (*CardlinkGateway)(nil)

// CardlinkGateway creates card/SBP bills and validates postbacks. Bills are
// denominated in rubles only.
type CardlinkGateway struct {
	apiKey         string
	merchantSecret []byte
	successURL     string
	failURL        string
	baseURL        string
	client         *http.Client
	codec          *Codec
}

func NewCardlinkGateway(apiKey, merchantSecret, successURL, failURL string, codec *Codec) (*CardlinkGateway, error) {
	if apiKey == "" || merchantSecret == "" {
		return nil, errors.New("cardlink credentials empty")
	}
	return &CardlinkGateway{
		apiKey:         apiKey,
		merchantSecret: []byte(merchantSecret),
		successURL:     successURL,
		failURL:        failURL,
		baseURL:        "https://cardlink.link/api/v1",
		client:         &http.Client{Timeout: 15 * time.Second},
		codec:          codec,
	}, nil
}

func (g *CardlinkGateway) Name() model.Provider { return model.ProviderCardlink }

func (g *CardlinkGateway) Currencies() []string { return []string{"RUB"} }

func (g *CardlinkGateway) CreateCheckout(ctx context.Context, req adapter.CheckoutRequest) (*adapter.Checkout, error) {
	const billTTL = 15 * time.Minute

	payload := g.codec.Encode(req.IntentID, time.Now().UTC())
	body := map[string]any{
		"amount":      minorToDecimal(req.Amount),
		"currency_in": req.Currency,
		"order_id":    payload,
		"name":        req.Description,
		"ttl":         int(billTTL.Seconds()),
		"success_url": g.successURL,
		"fail_url":    g.failURL,
	}
	b, _ := json.Marshal(body)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/bill/create", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	key := g.apiKey
	if req.AuthToken != "" {
		key = req.AuthToken
	}
	httpReq.Header.Set("Authorization", "Bearer "+key)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		Success bool   `json:"success"`
		BillID  string `json:"bill_id"`
		LinkURL string `json:"link_page_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if !out.Success || out.BillID == "" {
		return nil, fmt.Errorf("cardlink bill/create failed: http %d", resp.StatusCode)
	}
	return &adapter.Checkout{
		ExternalID:    out.BillID,
		CheckoutURL:   out.LinkURL,
		SignedPayload: payload,
		TTL:           billTTL,
	}, nil
}

// CardlinkCallback is the postback body. None of its fields may be trusted
// before Token verifies against the merchant secret.
type CardlinkCallback struct {
	BillID     string `json:"bill_id"`
	OrderID    string `json:"order_id"`
	Status     string `json:"status"`
	Amount     string `json:"amount"`
	CurrencyIn string `json:"currency_in"`
	TrsID      string `json:"trs_id"`
	Token      string `json:"token"`
}

// VerifyCallbackToken validates the HS256 header.payload.signature token the
// provider attaches to every postback. This authenticates the provider to us
// and is independent of our own order_id payload scheme, which authenticates
// the checkout session to the provider.
func (g *CardlinkGateway) VerifyCallbackToken(token string) error {
	tkn, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return g.merchantSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tkn.Valid {
		return domain.ErrSignatureInvalid
	}
	return nil
}

// ParseCallback maps a postback to a normalized event. A nil event with nil
// error means the status is not one we act on.
func (g *CardlinkGateway) ParseCallback(cb *CardlinkCallback) (*model.ProviderEvent, error) {
	if err := g.VerifyCallbackToken(cb.Token); err != nil {
		return nil, err
	}

	var kind model.EventKind
	switch strings.ToUpper(cb.Status) {
	case "SUCCESS", "OVERPAID":
		kind = model.EventConfirmed
	case "FAIL", "UNDERPAID":
		kind = model.EventCanceled
	case "CHARGEBACK", "REFUND":
		kind = model.EventChargeback
	default:
		return nil, nil
	}

	amount, err := decimalToMinor(cb.Amount)
	if err != nil {
		return nil, err
	}
	payKey := cb.TrsID
	if payKey == "" {
		payKey = cb.BillID
	}
	ev := &model.ProviderEvent{
		Provider:    model.ProviderCardlink,
		Kind:        kind,
		ExternalIDs: []string{cb.BillID},
		PayKey:      payKey,
		Amount:      amount,
		Currency:    cb.CurrencyIn,
	}
	if p, perr := g.codec.Verify(cb.OrderID); perr == nil {
		ev.IntentID = p.IntentID
	}
	return ev, nil
}
