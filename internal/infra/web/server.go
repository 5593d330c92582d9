package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-vpn-subscription/internal/usecase"
)

// Server exposes the provider webhook endpoints plus health and metrics.
type Server struct {
	reconciler usecase.ReconcilerUseCase
	cryptopay  CryptoPayVerifier
	cardlink   CardlinkParser
	httpSrv    *http.Server
	log        *zerolog.Logger
}

func NewServer(
	port int,
	reconciler usecase.ReconcilerUseCase,
	cryptopay CryptoPayVerifier,
	cardlink CardlinkParser,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	s := &Server{
		reconciler: reconciler,
		cryptopay:  cryptopay,
		cardlink:   cardlink,
		log:        &l,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/cryptopay", s.handleCryptoPayWebhook)
		r.Post("/cardlink", s.handleCardlinkCallback)
	})

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

func (s *Server) Run() error {
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("Starting web server")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
