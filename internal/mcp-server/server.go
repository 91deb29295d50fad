// Package mcpserver exposes the demo wallet as Model Context Protocol tools so
// an assistant can quote, buy and inspect balances on a user's behalf.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/AlexZav1327/coinbase-wallet/internal/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
)

const (
	serverName    = "coinbase-demo-wallet"
	serverVersion = "v1.0.0"

	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

var ErrUnknownTransport = errors.New("unknown mcp transport")

type WalletService interface {
	GetWallet() models.Wallet
	GetBalance(currencyCode string) (float64, error)
	GetTransactionHistory(limit int, currencyCode string) ([]models.Transaction, error)
	GetWalletStats(ctx context.Context) (models.WalletStats, error)
	CalculateBeerCost(ctx context.Context, currencyCode string, beerCount int, pricePerBeer float64) (
		models.PurchaseCalculation, error)
	SimulatePurchase(ctx context.Context, fromCode, toCode string, amount float64, description string) (
		models.Transaction, error)
	BuyVirtualBeer(ctx context.Context, quantity int, currencyCode string, pricePerBeer float64) (
		models.BeerPurchase, error)
	AddFunds(currencyCode string, amount float64) error
	ResetWallet()
}

type PriceClient interface {
	GetPrice(ctx context.Context, pair, kind string) (models.SpotPrice, error)
	GetExchangeRates(ctx context.Context, currencyCode string) (models.ExchangeRates, error)
}

type Server struct {
	MCP     *mcp.Server
	service WalletService
	prices  PriceClient
	log     *logrus.Entry
}

func New(service WalletService, prices PriceClient, log *logrus.Logger) *Server {
	s := &Server{
		MCP:     mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil),
		service: service,
		prices:  prices,
		log:     log.WithField("module", "mcp"),
	}

	s.registerTools()

	return s
}

// Run serves the tools over stdio or streamable HTTP until ctx is done.
func (s *Server) Run(ctx context.Context, transport string, addr string) error {
	switch transport {
	case TransportStdio:
		s.log.Info("serving MCP over stdio")

		err := s.MCP.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp.Server.Run: %w", err)
		}

		return nil
	case TransportHTTP:
		return s.runHTTP(ctx, addr)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTransport, transport)
	}
}

func (s *Server) runHTTP(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr: addr,
		Handler: mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return s.MCP
		}, nil),
		ReadHeaderTimeout: 30 * time.Second,
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	go func() {
		<-ctx.Done()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			s.log.Warningf("Server.Shutdown: %s", err)
		}
	}()

	s.log.Infof("serving MCP over http at %s", addr)

	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("Server.ListenAndServe: %w", err)
	}

	return nil
}
