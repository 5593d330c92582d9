// File: internal/infra/adapters/provider/cryptopay_gateway.go
package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/domain/ports/adapter"
)

var _ adapter.ProviderAdapter = (*CryptoPayGateway)(nil)

// cryptoPayCurrencies is the curated fiat set invoices may be denominated in;
// the payer settles in whatever crypto asset the provider quotes.
var cryptoPayCurrencies = []string{"USD", "EUR", "RUB", "UAH", "KZT"}

// CryptoPayGateway creates crypto invoices through the Crypto Pay HTTP API
// and validates its webhook deliveries.
type CryptoPayGateway struct {
	token     string
	returnURL string
	baseURL   string
	client    *http.Client
	codec     *Codec
}

func NewCryptoPayGateway(token, returnURL string, codec *Codec) (*CryptoPayGateway, error) {
	if token == "" {
		return nil, errors.New("cryptopay api token empty")
	}
	return &CryptoPayGateway{
		token:     token,
		returnURL: returnURL,
		baseURL:   "https://pay.crypt.bot/api",
		client:    &http.Client{Timeout: 15 * time.Second},
		codec:     codec,
	}, nil
}

func (g *CryptoPayGateway) Name() model.Provider { return model.ProviderCryptoPay }

func (g *CryptoPayGateway) Currencies() []string { return cryptoPayCurrencies }

func (g *CryptoPayGateway) CreateCheckout(ctx context.Context, req adapter.CheckoutRequest) (*adapter.Checkout, error) {
	const expiresIn = 24 * time.Hour

	payload := g.codec.Encode(req.IntentID, time.Now().UTC())
	body := map[string]any{
		"currency_type": "fiat",
		"fiat":          req.Currency,
		"amount":        minorToDecimal(req.Amount),
		"description":   req.Description,
		"payload":       payload,
		"expires_in":    int(expiresIn.Seconds()),
	}
	if g.returnURL != "" {
		body["paid_btn_name"] = "callback"
		body["paid_btn_url"] = g.returnURL
	}
	b, _ := json.Marshal(body)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/createInvoice", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	token := g.token
	if req.AuthToken != "" {
		token = req.AuthToken
	}
	httpReq.Header.Set("Crypto-Pay-API-Token", token)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		Ok     bool `json:"ok"`
		Result struct {
			InvoiceID     int64  `json:"invoice_id"`
			Hash          string `json:"hash"`
			BotInvoiceURL string `json:"bot_invoice_url"`
		} `json:"result"`
		Error any `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if !out.Ok || out.Result.InvoiceID == 0 {
		return nil, fmt.Errorf("cryptopay createInvoice failed: %v", out.Error)
	}
	return &adapter.Checkout{
		ExternalID:    strconv.FormatInt(out.Result.InvoiceID, 10),
		CheckoutURL:   out.Result.BotInvoiceURL,
		SignedPayload: payload,
		TTL:           expiresIn,
	}, nil
}

// cryptoPayUpdate is the webhook envelope.
type cryptoPayUpdate struct {
	UpdateType string `json:"update_type"`
	Payload    struct {
		InvoiceID int64  `json:"invoice_id"`
		Hash      string `json:"hash"`
		Status    string `json:"status"`
		Amount    string `json:"amount"`
		Fiat      string `json:"fiat"`
		Payload   string `json:"payload"`
	} `json:"payload"`
}

// VerifyWebhook checks the Crypto-Pay-Api-Signature header: HMAC-SHA256 over
// the raw body, keyed by SHA256 of the api token.
func (g *CryptoPayGateway) VerifyWebhook(body []byte, signature string) bool {
	key := sha256.Sum256([]byte(g.token))
	h := hmac.New(sha256.New, key[:])
	h.Write(body)
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// ParseWebhook maps a verified webhook body to a normalized event. A nil
// event with nil error means the update type is not ours to handle.
func (g *CryptoPayGateway) ParseWebhook(body []byte) (*model.ProviderEvent, error) {
	var upd cryptoPayUpdate
	if err := json.Unmarshal(body, &upd); err != nil {
		return nil, err
	}
	if upd.UpdateType != "invoice_paid" {
		return nil, nil
	}

	amount, err := decimalToMinor(upd.Payload.Amount)
	if err != nil {
		return nil, err
	}
	// Numeric invoice id first (it is what checkout stored as external_id),
	// then the invoice hash as a second correlation handle.
	externals := []string{strconv.FormatInt(upd.Payload.InvoiceID, 10)}
	if upd.Payload.Hash != "" {
		externals = append(externals, upd.Payload.Hash)
	}
	ev := &model.ProviderEvent{
		Provider:    model.ProviderCryptoPay,
		Kind:        model.EventConfirmed,
		ExternalIDs: externals,
		PayKey:      strconv.FormatInt(upd.Payload.InvoiceID, 10),
		Amount:      amount,
		Currency:    upd.Payload.Fiat,
	}
	// Prefer our own intent id when the echoed payload verifies; a tampered
	// payload degrades to invoice-id correlation rather than failing the event.
	if p, err := g.codec.Verify(upd.Payload.Payload); err == nil {
		ev.IntentID = p.IntentID
	}
	return ev, nil
}

// minorToDecimal renders minor units as "12.34" the way fiat APIs expect.
func minorToDecimal(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}

func decimalToMinor(s string) (int64, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(s), ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, domain.ErrInvalidArgument
	}
	minor := units * 100
	if frac != "" {
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		cents, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, domain.ErrInvalidArgument
		}
		minor += cents
	}
	return minor, nil
}
