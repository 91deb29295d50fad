package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
)

const truncateTableQuery = `
	TRUNCATE TABLE transaction_journal
`

//go:embed migrations
var migrations embed.FS

// Postgres keeps an append-only journal of settled transactions. The ledger
// never reads it back. Purchases finish concurrently, so writes go through a
// pool.
type Postgres struct {
	db  *pgxpool.Pool
	log *logrus.Entry
	dsn string
}

func ConnectDB(ctx context.Context, log *logrus.Logger, dsn string) (*Postgres, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	err = db.Ping(ctx)
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("db.Ping: %w", err)
	}

	return &Postgres{
		db:  db,
		log: log.WithField("module", "postgres"),
		dsn: dsn,
	}, nil
}

func (p *Postgres) Migrate(direction migrate.MigrationDirection) error {
	conn, err := sql.Open("pgx", p.dsn)
	if err != nil {
		return fmt.Errorf("sql.Open: %w", err)
	}

	defer func() {
		err := conn.Close()
		if err != nil {
			p.log.Warningf("conn.Close: %s", err)
		}
	}()

	assetDir := func() func(string) ([]string, error) {
		return func(path string) ([]string, error) {
			dirEntry, err := migrations.ReadDir(path)
			if err != nil {
				return nil, fmt.Errorf("migrations.ReadDir: %w", err)
			}

			entries := make([]string, 0)

			for _, e := range dirEntry {
				entries = append(entries, e.Name())
			}

			return entries, nil
		}
	}()

	asset := migrate.AssetMigrationSource{
		Asset:    migrations.ReadFile,
		AssetDir: assetDir,
		Dir:      "migrations",
	}

	_, err = migrate.Exec(conn, "postgres", asset, direction)
	if err != nil {
		return fmt.Errorf("migrate.Exec: %w", err)
	}

	return nil
}

func (p *Postgres) Close() {
	p.db.Close()
}

func (p *Postgres) TruncateTable(ctx context.Context) error {
	_, err := p.db.Exec(ctx, truncateTableQuery)
	if err != nil {
		return fmt.Errorf("db.Exec: %w", err)
	}

	return nil
}
