package walletservice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/AlexZav1327/coinbase-wallet/internal/models"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInitialUSD    = 1000
	DefaultBeerCount     = 1
	DefaultPricePerBeer  = 5
	DefaultHistoryLimit  = 10
	DefaultBeerCurrency  = models.BTC
	valuationConcurrency = 4
	beerItemName         = "beer"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnsupportedPair   = errors.New("exactly one side of the pair must be USD")
	ErrInvalidAmount     = errors.New("amount must be a positive number")
	ErrPriceUnavailable  = errors.New("price is unavailable")
)

type PriceSource interface {
	GetSpotPrice(ctx context.Context, pair string) (models.SpotPrice, error)
}

// Journal receives every completed transaction. It is an audit trail only:
// the wallet is never rebuilt from it.
type Journal interface {
	SaveTransaction(ctx context.Context, tx models.Transaction) error
}

type Option func(*Service)

func WithInitialUSD(amount float64) Option {
	return func(s *Service) {
		s.initialUSD = amount
	}
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Service) {
		s.registerer = reg
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service is the demo wallet ledger. All wallet state lives in memory and is
// guarded by mu; price fetches happen outside the lock.
type Service struct {
	prices     PriceSource
	journal    Journal
	log        *logrus.Entry
	metrics    *metrics
	registerer prometheus.Registerer
	now        func() time.Time
	initialUSD float64

	mu     sync.Mutex
	wallet models.Wallet
}

func New(prices PriceSource, journal Journal, log *logrus.Logger, opts ...Option) *Service {
	s := &Service{
		prices:     prices,
		journal:    journal,
		log:        log.WithField("module", "service"),
		registerer: prometheus.NewRegistry(),
		now:        time.Now,
		initialUSD: DefaultInitialUSD,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.metrics = newMetrics(s.registerer)
	s.wallet = s.initialWallet()
	s.updateBalanceMetrics(models.USD, models.BTC, models.ETH, models.USDC)

	return s
}

func (s *Service) GetWallet() models.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()

	return copyWallet(s.wallet)
}

func (s *Service) GetBalance(currencyCode string) (float64, error) {
	currency, err := models.ParseCurrency(currencyCode)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wallet.Balances[currency], nil
}

func (s *Service) CalculateBeerCost(ctx context.Context, currencyCode string, beerCount int, pricePerBeer float64) (
	models.PurchaseCalculation, error,
) {
	currency, err := models.ParseCurrency(currencyCode)
	if err != nil {
		return models.PurchaseCalculation{}, fmt.Errorf("calculate beer cost: %w", err)
	}

	if beerCount <= 0 || !isPositive(pricePerBeer) {
		return models.PurchaseCalculation{}, fmt.Errorf("calculate beer cost: %w", ErrInvalidAmount)
	}

	usdAmount := float64(beerCount) * pricePerBeer

	price, err := s.fetchPrice(ctx, currency)
	if err != nil {
		return models.PurchaseCalculation{}, fmt.Errorf("calculate beer cost: %w", err)
	}

	cryptoAmount := usdAmount / price

	return models.PurchaseCalculation{
		USDAmount:      usdAmount,
		CryptoAmount:   cryptoAmount,
		CryptoCurrency: currency,
		Price:          price,
		Description: fmt.Sprintf("%d beer(s) at $%s each = $%s = %s %s",
			beerCount, models.FormatAmount(pricePerBeer), models.FormatAmount(usdAmount),
			models.FormatAmount(cryptoAmount), currency),
	}, nil
}

// SimulatePurchase converts amount of fromCurrency into toCurrency at the
// current spot price. One side must be USD.
func (s *Service) SimulatePurchase(ctx context.Context, fromCode, toCode string, amount float64, description string) (
	models.Transaction, error,
) {
	from, err := models.ParseCurrency(fromCode)
	if err != nil {
		return models.Transaction{}, s.reject("invalid_currency", err)
	}

	to, err := models.ParseCurrency(toCode)
	if err != nil {
		return models.Transaction{}, s.reject("invalid_currency", err)
	}

	if !isPositive(amount) {
		return models.Transaction{}, s.reject("invalid_amount", ErrInvalidAmount)
	}

	if (from == models.USD) == (to == models.USD) {
		return models.Transaction{}, s.reject("unsupported_pair",
			fmt.Errorf("%w: %s-%s", ErrUnsupportedPair, from, to))
	}

	if !s.covers(from, amount) {
		return models.Transaction{}, s.reject("insufficient_funds", s.insufficientFunds(from, amount))
	}

	txType, crypto := models.TransactionTypeBuy, to
	if to == models.USD {
		txType, crypto = models.TransactionTypeSell, from
	}

	price, err := s.fetchPrice(ctx, crypto)
	if err != nil {
		return models.Transaction{}, s.reject("price_unavailable", err)
	}

	toAmount := amount / price
	if txType == models.TransactionTypeSell {
		toAmount = amount * price
	}

	if description == "" {
		description = describe(txType, from, to, amount, toAmount)
	}

	s.mu.Lock()

	// The balance may have moved while the price was being fetched.
	if s.wallet.Balances[from] < amount {
		err = s.insufficientFunds(from, amount)
		s.mu.Unlock()

		return models.Transaction{}, s.reject("insufficient_funds", err)
	}

	tx := s.newTransaction(txType, from, to, amount, toAmount, price, description)

	s.wallet.Balances[from] -= amount
	s.wallet.Balances[to] += toAmount
	s.append(tx)
	s.updateBalanceMetrics(from, to)

	s.mu.Unlock()

	s.metrics.purchases.WithLabelValues(string(txType)).Inc()
	s.log.Infof("%s %s: %s", txType, tx.ID, description)
	s.record(ctx, tx)

	return tx, nil
}

// BuyVirtualBeer pays for beers directly with crypto. Not having enough crypto
// is an expected outcome and is reported in the result, not as an error.
func (s *Service) BuyVirtualBeer(ctx context.Context, quantity int, currencyCode string, pricePerBeer float64) (
	models.BeerPurchase, error,
) {
	currency, err := models.ParseCurrency(currencyCode)
	if err != nil {
		return models.BeerPurchase{}, fmt.Errorf("buy virtual beer: %w", err)
	}

	if currency == models.USD {
		return models.BeerPurchase{}, fmt.Errorf("buy virtual beer: %w: beers are paid in crypto", ErrUnsupportedPair)
	}

	if quantity <= 0 || !isPositive(pricePerBeer) {
		return models.BeerPurchase{}, fmt.Errorf("buy virtual beer: %w", ErrInvalidAmount)
	}

	price, err := s.fetchPrice(ctx, currency)
	if err != nil {
		return models.BeerPurchase{}, fmt.Errorf("buy virtual beer: %w", err)
	}

	usdCost := float64(quantity) * pricePerBeer
	cost := usdCost / price

	s.mu.Lock()

	balance := s.wallet.Balances[currency]
	if balance < cost {
		s.mu.Unlock()

		shortfall := cost - balance
		suggestedUSD := shortfall * price

		return models.BeerPurchase{
			Success:            false,
			NeedsMoreCrypto:    true,
			SuggestedAmount:    shortfall,
			SuggestedUSDAmount: suggestedUSD,
			Message: fmt.Sprintf("Not enough %s for %d beer(s): need %s %s, have %s %s. Buy about $%s of %s first.",
				currency, quantity, models.FormatAmount(cost), currency, models.FormatAmount(balance), currency,
				models.FormatAmount(math.Ceil(suggestedUSD*100)/100), currency),
		}, nil
	}

	description := fmt.Sprintf("Bought %d virtual beer(s) for %s %s ($%s)",
		quantity, models.FormatAmount(cost), currency, models.FormatAmount(usdCost))
	tx := s.newTransaction(models.TransactionTypeTransfer, currency, models.BEER, cost, float64(quantity), price,
		description)

	s.wallet.Balances[currency] -= cost
	s.wallet.Inventory.Beers += quantity
	s.wallet.Inventory.Items = append(s.wallet.Inventory.Items, models.VirtualItem{
		ID:            uuid.NewString(),
		Name:          beerItemName,
		Quantity:      quantity,
		PaidAmount:    cost,
		PaidCurrency:  currency,
		TransactionID: tx.ID,
		AcquiredAt:    tx.Timestamp,
	})
	s.append(tx)
	s.updateBalanceMetrics(currency)

	s.mu.Unlock()

	s.metrics.purchases.WithLabelValues(string(tx.Type)).Inc()
	s.log.Infof("beer %s: %s", tx.ID, description)
	s.record(ctx, tx)

	return models.BeerPurchase{
		Success:     true,
		Transaction: &tx,
		Message:     fmt.Sprintf("Cheers! %s.", description),
	}, nil
}

// GetTransactionHistory returns up to limit transactions, newest first,
// optionally only those with currency on either side.
func (s *Service) GetTransactionHistory(limit int, currencyCode string) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var (
		currency models.Currency
		err      error
	)

	if currencyCode != "" {
		currency, err = models.ParseCurrency(currencyCode)
		if err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]models.Transaction, 0, min(limit, len(s.wallet.Transactions)))

	for _, tx := range s.wallet.Transactions {
		if len(history) == limit {
			break
		}

		if currency != "" && !tx.Involves(currency) {
			continue
		}

		history = append(history, tx)
	}

	return history, nil
}

// AddFunds credits a balance without recording a transaction. It exists for
// seeding demos and tests.
func (s *Service) AddFunds(currencyCode string, amount float64) error {
	currency, err := models.ParseCurrency(currencyCode)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.wallet.Balances[currency] += amount
	s.wallet.LastUpdated = s.now()
	s.updateBalanceMetrics(currency)

	return nil
}

func (s *Service) ResetWallet() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for currency := range s.wallet.Balances {
		s.metrics.balances.DeleteLabelValues(string(currency))
	}

	s.wallet = s.initialWallet()
	s.updateBalanceMetrics(models.USD, models.BTC, models.ETH, models.USDC)

	s.log.Info("wallet reset to initial state")
}

// GetWalletStats aggregates the history and values the portfolio at current
// prices. Holdings whose price cannot be fetched are left out of the value.
func (s *Service) GetWalletStats(ctx context.Context) (models.WalletStats, error) {
	s.mu.Lock()
	transactions := append([]models.Transaction(nil), s.wallet.Transactions...)
	balances := make(map[models.Currency]float64, len(s.wallet.Balances))

	for currency, amount := range s.wallet.Balances {
		balances[currency] = amount
	}
	s.mu.Unlock()

	stats := models.WalletStats{
		TotalTransactions: len(transactions),
		TotalCryptoBought: make(map[models.Currency]float64),
		PortfolioValue:    balances[models.USD],
	}

	for _, tx := range transactions {
		if tx.FromCurrency == models.USD {
			stats.TotalSpentUSD += tx.FromAmount
		}

		if tx.Type == models.TransactionTypeBuy {
			stats.TotalCryptoBought[tx.ToCurrency] += tx.ToAmount
		}
	}

	holdings := make([]models.Currency, 0, len(balances))

	for currency, amount := range balances {
		if currency != models.USD && amount > 0 {
			holdings = append(holdings, currency)
		}
	}

	values := make([]float64, len(holdings))

	var g errgroup.Group

	g.SetLimit(valuationConcurrency)

	for i, currency := range holdings {
		g.Go(func() error {
			price, err := s.fetchPrice(ctx, currency)
			if err != nil {
				s.log.Warningf("GetWalletStats: skipping %s: %s", currency, err)

				return nil
			}

			values[i] = balances[currency] * price

			return nil
		})
	}

	_ = g.Wait()

	for _, value := range values {
		stats.PortfolioValue += value
	}

	if err := ctx.Err(); err != nil {
		return models.WalletStats{}, fmt.Errorf("get wallet stats: %w", err)
	}

	return stats, nil
}

func (s *Service) fetchPrice(ctx context.Context, currency models.Currency) (float64, error) {
	pair := currency.PairWithUSD()

	started := time.Now()
	spot, err := s.prices.GetSpotPrice(ctx, pair)
	s.metrics.duration.WithLabelValues(pair).Observe(time.Since(started).Seconds())

	if err != nil {
		return 0, fmt.Errorf("get price for %s: %w", pair, err)
	}

	price, err := spot.Value()
	if err != nil {
		return 0, fmt.Errorf("get price for %s: %w: %w", pair, ErrPriceUnavailable, err)
	}

	if !isPositive(price) {
		return 0, fmt.Errorf("get price for %s: %w: %s", pair, ErrPriceUnavailable, spot.Amount)
	}

	return price, nil
}

func (s *Service) covers(currency models.Currency, amount float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wallet.Balances[currency] >= amount
}

func (s *Service) insufficientFunds(currency models.Currency, amount float64) error {
	return fmt.Errorf("%w: %s %s requested", ErrInsufficientFunds, models.FormatAmount(amount), currency)
}

func (s *Service) reject(reason string, err error) error {
	s.metrics.rejected.WithLabelValues(reason).Inc()

	return fmt.Errorf("simulate purchase: %w", err)
}

// append must be called with mu held.
func (s *Service) append(tx models.Transaction) {
	s.wallet.Transactions = append([]models.Transaction{tx}, s.wallet.Transactions...)
	s.wallet.LastUpdated = tx.Timestamp
}

func (s *Service) newTransaction(txType models.TransactionType, from, to models.Currency, fromAmount, toAmount,
	price float64, description string,
) models.Transaction {
	return models.Transaction{
		ID:           uuid.NewString(),
		Type:         txType,
		FromCurrency: from,
		ToCurrency:   to,
		FromAmount:   fromAmount,
		ToAmount:     toAmount,
		Price:        price,
		Description:  description,
		Timestamp:    s.now(),
		Status:       models.TransactionStatusCompleted,
	}
}

func (s *Service) record(ctx context.Context, tx models.Transaction) {
	if s.journal == nil {
		return
	}

	err := s.journal.SaveTransaction(context.WithoutCancel(ctx), tx)
	if err != nil {
		s.log.Warningf("journal.SaveTransaction: %s", err)
	}
}

// updateBalanceMetrics must be called with mu held.
func (s *Service) updateBalanceMetrics(currencies ...models.Currency) {
	for _, currency := range currencies {
		s.metrics.balances.WithLabelValues(string(currency)).Set(s.wallet.Balances[currency])
	}
}

func (s *Service) initialWallet() models.Wallet {
	now := s.now()

	return models.Wallet{
		Balances: map[models.Currency]float64{
			models.USD:  s.initialUSD,
			models.BTC:  0,
			models.ETH:  0,
			models.USDC: 0,
		},
		Transactions: []models.Transaction{},
		Inventory: models.Inventory{
			Beers: 0,
			Items: []models.VirtualItem{},
		},
		CreatedAt:   now,
		LastUpdated: now,
	}
}

func copyWallet(wallet models.Wallet) models.Wallet {
	balances := make(map[models.Currency]float64, len(wallet.Balances))

	for currency, amount := range wallet.Balances {
		balances[currency] = amount
	}

	wallet.Balances = balances
	wallet.Transactions = append([]models.Transaction{}, wallet.Transactions...)
	wallet.Inventory.Items = append([]models.VirtualItem{}, wallet.Inventory.Items...)

	return wallet
}

func describe(txType models.TransactionType, from, to models.Currency, fromAmount, toAmount float64) string {
	if txType == models.TransactionTypeSell {
		return fmt.Sprintf("Sold %s %s for %s %s", models.FormatAmount(fromAmount), from,
			models.FormatAmount(toAmount), to)
	}

	return fmt.Sprintf("Bought %s %s for %s %s", models.FormatAmount(toAmount), to,
		models.FormatAmount(fromAmount), from)
}

func isPositive(amount float64) bool {
	return amount > 0 && !math.IsInf(amount, 0) && !math.IsNaN(amount)
}
