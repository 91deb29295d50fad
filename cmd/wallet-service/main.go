package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/AlexZav1327/coinbase-wallet/internal/app"
	"github.com/AlexZav1327/coinbase-wallet/internal/config"
	walletserver "github.com/AlexZav1327/coinbase-wallet/internal/wallet-server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	cfg := config.Load()
	logger := cfg.NewLogger()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Panicf("app.New: %s", err)
	}

	defer a.Close()

	server := walletserver.New(walletserver.Config{
		Host:      cfg.Host,
		Port:      cfg.Port,
		JWTSecret: cfg.JWTSecret,
		Registry:  a.Registry,
	}, a.Ledger, a.Prices, logger)

	if cfg.JWTSecret != "" {
		token, err := server.GenerateToken("admin")
		if err != nil {
			logger.Panicf("server.GenerateToken: %s", err)
		}

		logger.Infof("admin token: %s", token)
	}

	err = server.Run(ctx)
	if err != nil {
		logger.Panicf("server.Run: %s", err)
	}
}
