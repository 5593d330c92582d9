package telegram

import (
	"context"
	"errors"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/infra/metrics"
	"telegram-vpn-subscription/internal/usecase"
)

// StarsEventParser is the slice of the stars gateway the bot needs.
type StarsEventParser interface {
	ParsePreCheckout(q *tgbotapi.PreCheckoutQuery) (*model.PreCheckout, error)
	ParseSuccessfulPayment(payerTgID int64, sp *tgbotapi.SuccessfulPayment) (*model.ProviderEvent, error)
}

// PaymentsBotAdapter polls Telegram updates and routes the two in-band stars
// payment updates into the reconciler: pre_checkout_query is the synchronous
// gate that must be answered within Telegram's deadline, successful_payment
// is the settlement notification.
type PaymentsBotAdapter struct {
	bot        *tgbotapi.BotAPI
	stars      StarsEventParser
	reconciler usecase.ReconcilerUseCase
	workers    int
	log        *zerolog.Logger

	cancelPolling context.CancelFunc
}

func NewPaymentsBotAdapter(bot *tgbotapi.BotAPI, stars StarsEventParser, reconciler usecase.ReconcilerUseCase, workers int, logger *zerolog.Logger) (*PaymentsBotAdapter, error) {
	if bot == nil {
		return nil, errors.New("bot api is nil")
	}
	if workers <= 0 {
		workers = 5
	}
	l := logger.With().Str("component", "PaymentsBot").Logger()
	return &PaymentsBotAdapter{
		bot:        bot,
		stars:      stars,
		reconciler: reconciler,
		workers:    workers,
		log:        &l,
	}, nil
}

func (r *PaymentsBotAdapter) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "pre_checkout_query"}
	updates := r.bot.GetUpdatesChan(u)
	defer r.bot.StopReceivingUpdates()

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	return r.dispatch(ctx, updates)
}

// dispatch fans updates out to the worker pool. The send into the pool is
// guarded by ctx so a full channel cannot wedge shutdown, and workers treat a
// closed channel as the stop signal.
func (r *PaymentsBotAdapter) dispatch(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)
	defer func() {
		close(updateChan)
		wg.Wait()
	}()

	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case up, ok := <-updateChan:
					if !ok {
						return
					}
					r.handleUpdate(ctx, up)
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up := <-updates:
			select {
			case updateChan <- up:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (r *PaymentsBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

func (r *PaymentsBotAdapter) handleUpdate(ctx context.Context, up tgbotapi.Update) {
	switch {
	case up.PreCheckoutQuery != nil:
		r.handlePreCheckout(ctx, up.PreCheckoutQuery)
	case up.Message != nil && up.Message.SuccessfulPayment != nil:
		r.handleSuccessfulPayment(ctx, up.Message)
	}
}

// handlePreCheckout answers the provider's synchronous gate. This is the only
// place a bad stars payment can still be declined; after it money has moved.
func (r *PaymentsBotAdapter) handlePreCheckout(ctx context.Context, q *tgbotapi.PreCheckoutQuery) {
	gate, err := r.stars.ParsePreCheckout(q)
	if err != nil {
		metrics.IncWebhookEvent("stars", "bad_signature")
		r.answerPreCheckout(q.ID, false, "This invoice is no longer valid.")
		return
	}
	if err := r.reconciler.PreAuthorize(ctx, gate); err != nil {
		metrics.IncWebhookEvent("stars", "rejected")
		r.log.Warn().Err(err).Str("intent_id", gate.IntentID).Msg("pre-checkout declined")
		r.answerPreCheckout(q.ID, false, declineText(err))
		return
	}
	metrics.IncWebhookEvent("stars", "pre_checkout_ok")
	r.answerPreCheckout(q.ID, true, "")
}

func (r *PaymentsBotAdapter) handleSuccessfulPayment(ctx context.Context, msg *tgbotapi.Message) {
	ev, err := r.stars.ParseSuccessfulPayment(msg.From.ID, msg.SuccessfulPayment)
	if err != nil {
		// Money already moved; log loudly, never drop silently.
		metrics.IncWebhookEvent("stars", "bad_signature")
		r.log.Error().Err(err).Int64("tg_id", msg.From.ID).Msg("successful_payment with unverifiable payload")
		return
	}
	if err := r.reconciler.Process(ctx, ev); err != nil {
		metrics.IncWebhookEvent("stars", "error")
		r.log.Error().Err(err).Str("intent_id", ev.IntentID).Msg("successful_payment processing failed")
		return
	}
	metrics.IncWebhookEvent("stars", "ok")
	r.sendText(msg.Chat.ID, "Payment received, your access is active. Thank you!")
}

func (r *PaymentsBotAdapter) answerPreCheckout(queryID string, ok bool, errMsg string) {
	cfg := tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: queryID,
		OK:                 ok,
		ErrorMessage:       errMsg,
	}
	if _, err := r.bot.Request(cfg); err != nil {
		r.log.Error().Err(err).Str("query_id", queryID).Msg("answerPreCheckoutQuery failed")
	}
}

func (r *PaymentsBotAdapter) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Error().Err(err).Int64("chat_id", chatID).Msg("send message failed")
	}
}

func declineText(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "This invoice has expired. Please start a new purchase."
	case errors.Is(err, domain.ErrPayerMismatch):
		return "This invoice was issued for a different account."
	case errors.Is(err, domain.ErrAmountMismatch):
		return "The price of this plan has changed. Please start a new purchase."
	case errors.Is(err, domain.ErrPlanInactive), errors.Is(err, domain.ErrVariantInactive):
		return "This plan is no longer available."
	default:
		return "Payment cannot be completed right now. Please try again later."
	}
}
