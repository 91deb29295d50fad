// Package app wires the ledger, the Coinbase client and the optional journal
// from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/AlexZav1327/coinbase-wallet/internal/config"
	"github.com/AlexZav1327/coinbase-wallet/internal/postgres"
	"github.com/AlexZav1327/coinbase-wallet/internal/rates"
	walletservice "github.com/AlexZav1327/coinbase-wallet/internal/wallet-service"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
)

type App struct {
	Ledger   *walletservice.Service
	Prices   *rates.Client
	Registry *prometheus.Registry
	journal  *postgres.Postgres
	log      *logrus.Entry
}

func New(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*App, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &App{
		Registry: registry,
		log:      log.WithField("module", "app"),
	}

	a.Prices = rates.New(rates.Config{
		BaseURL:           cfg.Coinbase.BaseURL,
		Timeout:           cfg.Coinbase.Timeout,
		RequestsPerSecond: cfg.Coinbase.RequestsPerSecond,
		Burst:             cfg.Coinbase.Burst,
		Registerer:        registry,
	}, log)

	var journal walletservice.Journal

	if cfg.DSN != "" {
		pg, err := postgres.ConnectDB(ctx, log, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres.ConnectDB: %w", err)
		}

		err = pg.Migrate(migrate.Up)
		if err != nil {
			return nil, fmt.Errorf("Migrate: %w", err)
		}

		a.journal = pg
		journal = pg
	} else {
		a.log.Info("DSN is not set, transaction journal disabled")
	}

	a.Ledger = walletservice.New(a.Prices, journal, log,
		walletservice.WithInitialUSD(cfg.InitialUSD),
		walletservice.WithRegisterer(registry))

	return a, nil
}

func (a *App) Close() {
	if a.journal == nil {
		return
	}

	a.journal.Close()
	a.log.Info("transaction journal closed")
}
