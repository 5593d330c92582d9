// File: internal/infra/adapters/provider/stars_gateway.go
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/domain/ports/adapter"
	"telegram-vpn-subscription/internal/infra/cache"
)

var _ adapter.ProviderAdapter = (*StarsGateway)(nil)

// botAPI is the narrow slice of the Bot API client the gateway needs.
type botAPI interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	GetMe() (tgbotapi.User, error)
}

// StarsGateway issues Telegram Stars invoice links and normalizes the two
// in-band payment updates (pre_checkout_query and successful_payment).
//
// The invoice payload is capped at 128 bytes by the Bot API, so the compact
// codec format is used instead of the standard one.
type StarsGateway struct {
	bot      botAPI
	codec    *Codec
	identity *cache.Cache[tgbotapi.User]
}

func NewStarsGateway(bot botAPI, codec *Codec) *StarsGateway {
	return &StarsGateway{
		bot:      bot,
		codec:    codec,
		identity: cache.New[tgbotapi.User](time.Hour),
	}
}

func (g *StarsGateway) Name() model.Provider { return model.ProviderStars }

func (g *StarsGateway) Currencies() []string { return []string{"XTR"} }

// BotUsername resolves the bot identity, cached for an hour. Call
// InvalidateIdentity after a token rotation.
func (g *StarsGateway) BotUsername() (string, error) {
	if u, ok := g.identity.Get(); ok {
		return u.UserName, nil
	}
	u, err := g.bot.GetMe()
	if err != nil {
		return "", err
	}
	g.identity.Set(u)
	return u.UserName, nil
}

func (g *StarsGateway) InvalidateIdentity() { g.identity.Invalidate() }

func (g *StarsGateway) CreateCheckout(ctx context.Context, req adapter.CheckoutRequest) (*adapter.Checkout, error) {
	const invoiceTTL = 15 * time.Minute

	if req.Currency != "XTR" {
		return nil, fmt.Errorf("stars invoices must be XTR, got %q", req.Currency)
	}
	payload := g.codec.EncodeCompact(req.IntentID, time.Now().UTC())

	prices := fmt.Sprintf(`[{"label":%s,"amount":%d}]`, strconv.Quote(req.Description), req.Amount)
	params := tgbotapi.Params{
		"title":       req.Description,
		"description": req.Description,
		"payload":     payload,
		"currency":    "XTR",
		"prices":      prices,
	}
	resp, err := g.bot.MakeRequest("createInvoiceLink", params)
	if err != nil {
		return nil, err
	}
	link, err := strconv.Unquote(string(resp.Result))
	if err != nil || link == "" {
		return nil, errors.New("createInvoiceLink returned no link")
	}
	return &adapter.Checkout{
		// Stars has no provider-side invoice id at creation time; the payload
		// itself is the correlation handle until successful_payment arrives.
		ExternalID:    payload,
		CheckoutURL:   link,
		SignedPayload: payload,
		TTL:           invoiceTTL,
	}, nil
}

// ParsePreCheckout verifies the echoed payload and lifts the query into the
// synchronous pre-authorization gate input.
func (g *StarsGateway) ParsePreCheckout(q *tgbotapi.PreCheckoutQuery) (*model.PreCheckout, error) {
	p, err := g.codec.VerifyCompact(q.InvoicePayload)
	if err != nil {
		return nil, err
	}
	return &model.PreCheckout{
		QueryID:   q.ID,
		PayerTgID: int64(q.From.ID),
		IntentID:  p.IntentID,
		Amount:    int64(q.TotalAmount),
		Currency:  q.Currency,
	}, nil
}

// ParseSuccessfulPayment normalizes the settlement update. The Telegram
// payment charge id is the idempotency key: redelivered updates collapse onto
// the same Payment row.
func (g *StarsGateway) ParseSuccessfulPayment(payerTgID int64, sp *tgbotapi.SuccessfulPayment) (*model.ProviderEvent, error) {
	p, err := g.codec.VerifyCompact(sp.InvoicePayload)
	if err != nil {
		return nil, err
	}
	return &model.ProviderEvent{
		Provider:    model.ProviderStars,
		Kind:        model.EventConfirmed,
		IntentID:    p.IntentID,
		ExternalIDs: []string{sp.TelegramPaymentChargeID, sp.InvoicePayload},
		PayKey:      sp.TelegramPaymentChargeID,
		Amount:      int64(sp.TotalAmount),
		Currency:    sp.Currency,
		PayerTgID:   payerTgID,
	}, nil
}

// DeepLink renders a start link for an invoice slug, used when the checkout
// url must be shared outside the originating chat.
func (g *StarsGateway) DeepLink(slug string) (string, error) {
	name, err := g.BotUsername()
	if err != nil {
		return "", err
	}
	return "https://t.me/" + name + "?start=" + url.QueryEscape(slug), nil
}
