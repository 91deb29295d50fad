package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlexZav1327/coinbase-wallet/internal/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	saveTransactionQuery = `
	INSERT INTO transaction_journal (transaction_id, type, from_currency, to_currency, from_amount, to_amount,
		price, description, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`
	listTransactionsQuery = `
	SELECT transaction_id, type, from_currency, to_currency, from_amount, to_amount, price, description, status,
		created_at
	FROM transaction_journal
	ORDER BY created_at DESC
	LIMIT $1;
`
)

var ErrTransactionExists = errors.New("transaction already journaled")

func (p *Postgres) SaveTransaction(ctx context.Context, tx models.Transaction) error {
	_, err := p.db.Exec(ctx, saveTransactionQuery, tx.ID, tx.Type, tx.FromCurrency, tx.ToCurrency, tx.FromAmount,
		tx.ToAmount, tx.Price, tx.Description, tx.Status, tx.Timestamp)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrTransactionExists
		}

		return fmt.Errorf("db.Exec: %w", err)
	}

	return nil
}

func (p *Postgres) ListTransactions(ctx context.Context, limit int) ([]models.Transaction, error) {
	rows, err := p.db.Query(ctx, listTransactionsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("db.Query: %w", err)
	}

	transactions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Transaction, error) {
		var tx models.Transaction

		err := row.Scan(&tx.ID, &tx.Type, &tx.FromCurrency, &tx.ToCurrency, &tx.FromAmount, &tx.ToAmount,
			&tx.Price, &tx.Description, &tx.Status, &tx.Timestamp)

		return tx, err
	})
	if err != nil {
		return nil, fmt.Errorf("pgx.CollectRows: %w", err)
	}

	return transactions, nil
}
