// File: cmd/app/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-vpn-subscription/internal/config"
	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/domain/ports/adapter"
	"telegram-vpn-subscription/internal/infra/adapters/provider"
	tele "telegram-vpn-subscription/internal/infra/adapters/telegram"
	pg "telegram-vpn-subscription/internal/infra/db/postgres"
	"telegram-vpn-subscription/internal/infra/logging"
	"telegram-vpn-subscription/internal/infra/metrics"
	red "telegram-vpn-subscription/internal/infra/redis"
	"telegram-vpn-subscription/internal/infra/sched"
	"telegram-vpn-subscription/internal/infra/web"
	"telegram-vpn-subscription/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	txm := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	// ---- Repositories ----
	userRepo := pg.NewUserRepo(pool)
	planRepo := pg.NewPlanRepoCacheDecorator(pg.NewPlanRepo(pool), redisClient)
	subRepo := pg.NewSubscriptionRepo(pool)
	intentRepo := pg.NewPaymentIntentRepo(pool)
	payRepo := pg.NewPaymentRepo(pool)

	// ---- Provider adapters ----
	codec := provider.NewCodec(cfg.Security.PayloadSecret)

	cryptoGw, err := provider.NewCryptoPayGateway(cfg.Providers.CryptoPay.APIToken, cfg.Providers.CryptoPay.ReturnURL, codec)
	if err != nil {
		logger.Fatal().Err(err).Msg("cryptopay gateway")
	}
	cardGw, err := provider.NewCardlinkGateway(
		cfg.Providers.Cardlink.APIKey,
		cfg.Providers.Cardlink.MerchantSecret,
		cfg.Providers.Cardlink.SuccessURL,
		cfg.Providers.Cardlink.FailURL,
		codec,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("cardlink gateway")
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram bot api")
	}
	starsGw := provider.NewStarsGateway(botAPI, codec)

	adapters := map[model.Provider]adapter.ProviderAdapter{
		model.ProviderCryptoPay: cryptoGw,
		model.ProviderCardlink:  cardGw,
		model.ProviderStars:     starsGw,
	}

	// ---- Use cases ----
	accessSync := usecase.NewUserAccessSync(userRepo, nil)
	ledgerUC := usecase.NewLedgerUseCase(subRepo, userRepo, accessSync, txm, logger)
	revokerUC := usecase.NewRevokerUseCase(subRepo, userRepo, accessSync, logger)
	reconcilerUC := usecase.NewReconcilerUseCase(intentRepo, payRepo, subRepo, planRepo, userRepo, ledgerUC, revokerUC, txm, logger)
	intentUC := usecase.NewPaymentIntentUseCase(intentRepo, planRepo, userRepo, adapters, usecase.LocalePolicy{
		Provider:     model.ProviderCardlink,
		Allowed:      cfg.Providers.Cardlink.AllowedLocales,
		AllowUnknown: cfg.Providers.Cardlink.AllowUnknownLocale,
	}, logger)

	// ---- Telegram polling (stars payment updates) ----
	botAdapter, err := tele.NewPaymentsBotAdapter(botAPI, starsGw, reconcilerUC, 8, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram adapter")
	}
	go func() {
		if err := botAdapter.StartPolling(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("telegram polling stopped")
		}
	}()

	// ---- Webhook server ----
	srv := web.NewServer(cfg.Web.Port, reconcilerUC, cryptoGw, cardGw, logger)
	go func() {
		if err := srv.Run(); err != nil {
			logger.Error().Err(err).Msg("web server error")
		}
	}()

	// ---- Expiry worker ----
	worker := sched.NewExpiryWorker(cfg.Scheduler.ExpiryCheckInterval, intentUC, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("web server shutdown")
	}
	botAdapter.StopPolling()
	cancel()
}
