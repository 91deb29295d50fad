package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/AlexZav1327/coinbase-wallet/internal/config"
	priceserver "github.com/AlexZav1327/coinbase-wallet/internal/price-server"
	priceservice "github.com/AlexZav1327/coinbase-wallet/internal/price-service"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	cfg := config.Load()
	logger := cfg.NewLogger()

	priceService := priceservice.New(logger)
	server := priceserver.New(cfg.Host, cfg.PriceStubPort, priceService, logger)

	err := server.Run(ctx)
	if err != nil {
		logger.Panicf("server.Run: %s", err)
	}
}
