package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-vpn-subscription/internal/usecase"
)

// ExpiryWorker periodically sweeps pending intents past their expiry.
type ExpiryWorker struct {
	interval time.Duration
	intentUC usecase.PaymentIntentUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, intentUC usecase.PaymentIntentUseCase, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		intentUC: intentUC,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.intentUC.MarkExpiredIntents(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("expiry worker error")
			}
			if n > 0 {
				w.log.Info().Int64("count", n).Msg("pending intents expired")
			}
		}
	}
}
