package priceserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/AlexZav1327/coinbase-wallet/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type Server struct {
	host    string
	port    int
	Server  *http.Server
	service PriceService
	log     *logrus.Entry
}

type PriceService interface {
	GetPrice(pair, kind string) (models.SpotPrice, error)
	GetExchangeRates(currency string) (models.ExchangeRates, error)
	GetCurrencies() []models.CurrencyInfo
}

func New(host string, port int, service PriceService, log *logrus.Logger) *Server {
	server := Server{
		host:    host,
		port:    port,
		log:     log.WithField("module", "price_http"),
		service: service,
	}

	server.Server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           NewRouter(service, log),
		ReadHeaderTimeout: 30 * time.Second,
	}

	return &server
}

// NewRouter serves the subset of the Coinbase /v2 API the wallet reads.
func NewRouter(service PriceService, log *logrus.Logger) http.Handler {
	h := NewHandler(service, log)
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)

	r.Route("/v2", func(r chi.Router) {
		r.Get("/prices/{pair}/{kind}", h.getPrice)
		r.Get("/exchange-rates", h.getExchangeRates)
		r.Get("/currencies", h.getCurrencies)
	})

	return r
}

func (s *Server) Run(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	go func() {
		<-ctx.Done()

		err := s.Server.Shutdown(shutdownCtx)
		if err != nil {
			s.log.Warningf("Server.Shutdown: %s", err)
		}
	}()

	s.log.Infof("price stub listening on %s", s.Server.Addr)

	err := s.Server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("Server.ListenAndServe: %w", err)
	}

	return nil
}
