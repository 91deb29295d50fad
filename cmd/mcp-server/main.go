package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlexZav1327/coinbase-wallet/internal/app"
	"github.com/AlexZav1327/coinbase-wallet/internal/config"
	mcpserver "github.com/AlexZav1327/coinbase-wallet/internal/mcp-server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	cfg := config.Load()
	logger := cfg.NewLogger()

	// stdout carries the protocol in stdio mode.
	logger.SetOutput(os.Stderr)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Panicf("app.New: %s", err)
	}

	defer a.Close()

	server := mcpserver.New(a.Ledger, a.Prices, logger)

	err = server.Run(ctx, cfg.MCPTransport, fmt.Sprintf("%s:%d", cfg.Host, cfg.MCPPort))
	if err != nil {
		logger.Panicf("server.Run: %s", err)
	}
}
