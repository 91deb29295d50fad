package walletserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var ErrAdminDisabled = errors.New("admin routes are disabled: no jwt secret configured")

type Server struct {
	host    string
	port    int
	Server  *http.Server
	log     *logrus.Entry
	handler *Handler
}

type Config struct {
	Host string
	Port int
	// JWTSecret mounts the admin routes when set.
	JWTSecret string
	Registry  *prometheus.Registry
}

func New(cfg Config, service WalletService, prices PriceClient, log *logrus.Logger) *Server {
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	h := NewHandler(service, prices, log, []byte(cfg.JWTSecret), cfg.Registry)

	server := Server{
		host:    cfg.Host,
		port:    cfg.Port,
		log:     log.WithField("module", "http"),
		handler: h,
	}

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Get("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/health", h.health)
	r.Group(func(r chi.Router) {
		r.Use(h.metric)
		r.Route("/api/v1", func(r chi.Router) {
			r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: log, NoColor: true}))
			r.Get("/wallet", h.getWallet)
			r.Get("/wallet/balance/{currency}", h.getBalance)
			r.Get("/wallet/transactions", h.getHistory)
			r.Get("/wallet/stats", h.getStats)
			r.Post("/wallet/purchase", h.purchase)
			r.Get("/beer/cost", h.beerCost)
			r.Post("/beer/buy", h.buyBeer)
			r.Get("/prices/{pair}/{kind}", h.getPrice)
			r.Get("/exchange-rates", h.getExchangeRates)
			r.Get("/currencies", h.getCurrencies)

			if len(h.secret) > 0 {
				r.Route("/admin", func(r chi.Router) {
					r.Use(h.jwtAuth)
					r.Post("/funds", h.addFunds)
					r.Post("/reset", h.reset)
				})
			}
		})
	})

	server.Server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 30 * time.Second,
	}

	return &server
}

func (s *Server) Run(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	defer s.log.Info("Server is stopped")

	go func() {
		<-ctx.Done()

		err := s.Server.Shutdown(shutdownCtx)
		if err != nil {
			s.log.Warningf("Server.Shutdown: %s", err)
		}
	}()

	s.log.Infof("Server is running at port %d...", s.port)

	err := s.Server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("Server.ListenAndServe: %w", err)
	}

	return nil
}

// GenerateToken issues an admin bearer token for subject.
func (s *Server) GenerateToken(subject string) (string, error) {
	if len(s.handler.secret) == 0 {
		return "", ErrAdminDisabled
	}

	return s.handler.generateToken(subject)
}
