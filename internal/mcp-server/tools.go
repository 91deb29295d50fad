package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AlexZav1327/coinbase-wallet/internal/models"
	"github.com/AlexZav1327/coinbase-wallet/internal/rates"
	walletservice "github.com/AlexZav1327/coinbase-wallet/internal/wallet-service"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type noInput struct{}

type balanceInput struct {
	Currency string `json:"currency" jsonschema:"currency code, e.g. USD or BTC"`
}

type beerCostInput struct {
	Currency     string  `json:"currency,omitempty" jsonschema:"crypto to pay with, BTC by default"`
	Beers        int     `json:"beers,omitempty" jsonschema:"number of beers, 1 by default"`
	PricePerBeer float64 `json:"pricePerBeer,omitempty" jsonschema:"USD price of one beer, 5 by default"`
}

type purchaseInput struct {
	FromCurrency string  `json:"fromCurrency" jsonschema:"currency to spend"`
	ToCurrency   string  `json:"toCurrency" jsonschema:"currency to receive; exactly one side must be USD"`
	Amount       float64 `json:"amount" jsonschema:"amount of fromCurrency to spend"`
	Description  string  `json:"description,omitempty" jsonschema:"optional note stored on the transaction"`
}

type buyBeerInput struct {
	Quantity     int     `json:"quantity,omitempty" jsonschema:"number of beers, 1 by default"`
	Currency     string  `json:"currency,omitempty" jsonschema:"crypto to pay with, BTC by default"`
	PricePerBeer float64 `json:"pricePerBeer,omitempty" jsonschema:"USD price of one beer, 5 by default"`
}

type historyInput struct {
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of transactions, 10 by default"`
	Currency string `json:"currency,omitempty" jsonschema:"only transactions involving this currency"`
}

type fundsInput struct {
	Currency string  `json:"currency" jsonschema:"currency to credit"`
	Amount   float64 `json:"amount" jsonschema:"positive amount to add"`
}

type priceInput struct {
	Pair string `json:"pair" jsonschema:"currency pair such as BTC-USD"`
	Kind string `json:"kind,omitempty" jsonschema:"spot, buy or sell; spot by default"`
}

type exchangeRatesInput struct {
	Currency string `json:"currency,omitempty" jsonschema:"base currency, USD by default"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.MCP, &mcp.Tool{
		Name:        "get_wallet",
		Description: "Show the demo wallet: balances, recent transactions and virtual inventory",
	}, s.getWallet)
	mcp.AddTool(s.MCP, &mcp.Tool{
		Name:        "get_balance",
		Description: "Get the balance of a single currency",
	}, s.getBalance)
	mcp.AddTool(s.MCP, &mcp.Tool{
		Name:        "calculate_beer_cost",
		Description: "Quote how much crypto a number of virtual beers costs at the current spot price",
	}, s.calculateBeerCost)
	mcp.AddTool(s.MCP, &mcp.Tool{
		Name:        "simulate_purchase",
		Description: "Buy crypto with USD or sell crypto for USD at the current spot price",
	}, s.simulatePurchase)
	mcp.AddTool(s.MCP, &mcp.Tool{
		Name:        "buy_virtual_beer",
		Description: "Pay for virtual beers with crypto held in the wallet",
	}, s.buyVirtualBeer)
	mcp.AddTool(s.MCP, &mcp.Tool{
		Name:        "get_transaction_history",
		Description: "List recent transactions, newest first",
	}, s.getTransactionHistory)
	mcp.AddTool(s.MCP, &mcp.Tool{
		Name:        "get_wallet_stats",
		Description: "Summarize spending and value the portfolio in USD",
	}, s.getWalletStats)
	mcp.AddTool(s.MCP, &mcp.Tool{
		Name:        "add_funds",
		Description: "Credit a balance directly, for demos",
	}, s.addFunds)
	mcp.AddTool(s.MCP, &mcp.Tool{
		Name:        "reset_wallet",
		Description: "Restore the wallet to its starting state",
	}, s.resetWallet)
	mcp.AddTool(s.MCP, &mcp.Tool{
		Name:        "get_spot_price",
		Description: "Get the Coinbase spot, buy or sell price for a currency pair",
	}, s.getSpotPrice)
	mcp.AddTool(s.MCP, &mcp.Tool{
		Name:        "get_exchange_rates",
		Description: "Get Coinbase exchange rates for a base currency",
	}, s.getExchangeRates)
}

func (s *Server) getWallet(_ context.Context, _ *mcp.CallToolRequest, _ noInput) (*mcp.CallToolResult, any, error) {
	return s.result(s.service.GetWallet(), nil)
}

func (s *Server) getBalance(_ context.Context, _ *mcp.CallToolRequest, in balanceInput) (
	*mcp.CallToolResult, any, error,
) {
	balance, err := s.service.GetBalance(in.Currency)
	if err != nil {
		return s.result(nil, err)
	}

	currency, _ := models.ParseCurrency(in.Currency)

	return s.result(map[string]any{"currency": currency, "balance": balance}, nil)
}

func (s *Server) calculateBeerCost(ctx context.Context, _ *mcp.CallToolRequest, in beerCostInput) (
	*mcp.CallToolResult, any, error,
) {
	if in.Currency == "" {
		in.Currency = walletservice.DefaultBeerCurrency.String()
	}

	if in.Beers == 0 {
		in.Beers = walletservice.DefaultBeerCount
	}

	if in.PricePerBeer == 0 {
		in.PricePerBeer = walletservice.DefaultPricePerBeer
	}

	return s.result(s.service.CalculateBeerCost(ctx, in.Currency, in.Beers, in.PricePerBeer))
}

func (s *Server) simulatePurchase(ctx context.Context, _ *mcp.CallToolRequest, in purchaseInput) (
	*mcp.CallToolResult, any, error,
) {
	return s.result(s.service.SimulatePurchase(ctx, in.FromCurrency, in.ToCurrency, in.Amount, in.Description))
}

func (s *Server) buyVirtualBeer(ctx context.Context, _ *mcp.CallToolRequest, in buyBeerInput) (
	*mcp.CallToolResult, any, error,
) {
	if in.Currency == "" {
		in.Currency = walletservice.DefaultBeerCurrency.String()
	}

	if in.Quantity == 0 {
		in.Quantity = walletservice.DefaultBeerCount
	}

	if in.PricePerBeer == 0 {
		in.PricePerBeer = walletservice.DefaultPricePerBeer
	}

	return s.result(s.service.BuyVirtualBeer(ctx, in.Quantity, in.Currency, in.PricePerBeer))
}

func (s *Server) getTransactionHistory(_ context.Context, _ *mcp.CallToolRequest, in historyInput) (
	*mcp.CallToolResult, any, error,
) {
	return s.result(s.service.GetTransactionHistory(in.Limit, in.Currency))
}

func (s *Server) getWalletStats(ctx context.Context, _ *mcp.CallToolRequest, _ noInput) (
	*mcp.CallToolResult, any, error,
) {
	return s.result(s.service.GetWalletStats(ctx))
}

func (s *Server) addFunds(ctx context.Context, req *mcp.CallToolRequest, in fundsInput) (
	*mcp.CallToolResult, any, error,
) {
	if in.Amount <= 0 {
		return s.result(nil, walletservice.ErrInvalidAmount)
	}

	err := s.service.AddFunds(in.Currency, in.Amount)
	if err != nil {
		return s.result(nil, err)
	}

	return s.getBalance(ctx, req, balanceInput{Currency: in.Currency})
}

func (s *Server) resetWallet(_ context.Context, _ *mcp.CallToolRequest, _ noInput) (
	*mcp.CallToolResult, any, error,
) {
	s.service.ResetWallet()

	return s.result(s.service.GetWallet(), nil)
}

func (s *Server) getSpotPrice(ctx context.Context, _ *mcp.CallToolRequest, in priceInput) (
	*mcp.CallToolResult, any, error,
) {
	if in.Kind == "" {
		in.Kind = rates.PriceKindSpot
	}

	return s.result(s.prices.GetPrice(ctx, in.Pair, in.Kind))
}

func (s *Server) getExchangeRates(ctx context.Context, _ *mcp.CallToolRequest, in exchangeRatesInput) (
	*mcp.CallToolResult, any, error,
) {
	if in.Currency == "" {
		in.Currency = models.USD.String()
	}

	return s.result(s.prices.GetExchangeRates(ctx, in.Currency))
}

// result renders value as indented JSON text. Errors are reported to the
// model as tool errors rather than protocol errors.
func (s *Server) result(value any, err error) (*mcp.CallToolResult, any, error) {
	if err != nil {
		s.log.Debugf("tool error: %s", err)

		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		}, nil, nil
	}

	raw, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("json.MarshalIndent: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
	}, nil, nil
}
