package walletservice_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AlexZav1327/coinbase-wallet/internal/models"
	walletservice "github.com/AlexZav1327/coinbase-wallet/internal/wallet-service"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

var errUpstream = errors.New("coinbase is down")

type fakePrices struct {
	mu      sync.Mutex
	amounts map[string]string
	errs    map[string]error
	calls   atomic.Int64
	during  func()
}

func newFakePrices() *fakePrices {
	return &fakePrices{
		amounts: map[string]string{
			"BTC-USD":  "50000",
			"ETH-USD":  "2500",
			"USDC-USD": "1",
		},
		errs: map[string]error{},
	}
}

func (f *fakePrices) GetSpotPrice(_ context.Context, pair string) (models.SpotPrice, error) {
	f.calls.Add(1)

	if f.during != nil {
		f.during()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.errs[pair]; err != nil {
		return models.SpotPrice{}, err
	}

	amount, ok := f.amounts[pair]
	if !ok {
		return models.SpotPrice{}, errUpstream
	}

	return models.SpotPrice{Amount: amount, Base: pair[:len(pair)-4], Currency: "USD"}, nil
}

type fakeJournal struct {
	mu    sync.Mutex
	saved []models.Transaction
}

func (j *fakeJournal) SaveTransaction(_ context.Context, tx models.Transaction) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.saved = append(j.saved, tx)

	return nil
}

func newLedger(t *testing.T, prices walletservice.PriceSource, journal walletservice.Journal,
	opts ...walletservice.Option,
) *walletservice.Service {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return walletservice.New(prices, journal, logger, opts...)
}

func TestCalculateBeerCost(t *testing.T) {
	ctx := context.Background()

	t.Run("two beers in BTC", func(t *testing.T) {
		ledger := newLedger(t, newFakePrices(), nil)

		calc, err := ledger.CalculateBeerCost(ctx, "BTC", 2, 5)
		require.NoError(t, err)
		require.InDelta(t, 10, calc.USDAmount, tolerance)
		require.InDelta(t, 0.0002, calc.CryptoAmount, tolerance)
		require.Equal(t, models.BTC, calc.CryptoCurrency)
		require.InDelta(t, 50000, calc.Price, tolerance)
		require.Contains(t, calc.Description, "0.0002 BTC")
		require.Equal(t, ledger.GetWallet().Balances, map[models.Currency]float64{
			models.USD: 1000, models.BTC: 0, models.ETH: 0, models.USDC: 0,
		})
	})

	t.Run("lowercase currency is normalized", func(t *testing.T) {
		ledger := newLedger(t, newFakePrices(), nil)

		calc, err := ledger.CalculateBeerCost(ctx, "eth", 1, 5)
		require.NoError(t, err)
		require.Equal(t, models.ETH, calc.CryptoCurrency)
		require.InDelta(t, 0.002, calc.CryptoAmount, tolerance)
	})

	t.Run("price failure is propagated", func(t *testing.T) {
		prices := newFakePrices()
		prices.errs["BTC-USD"] = errUpstream
		ledger := newLedger(t, prices, nil)

		_, err := ledger.CalculateBeerCost(ctx, "BTC", 1, 5)
		require.ErrorIs(t, err, errUpstream)
		require.ErrorContains(t, err, "calculate beer cost: get price for BTC-USD")
	})

	t.Run("unparsable price is rejected", func(t *testing.T) {
		prices := newFakePrices()
		prices.amounts["BTC-USD"] = "0"
		ledger := newLedger(t, prices, nil)

		_, err := ledger.CalculateBeerCost(ctx, "BTC", 1, 5)
		require.ErrorIs(t, err, walletservice.ErrPriceUnavailable)
	})

	t.Run("invalid input", func(t *testing.T) {
		ledger := newLedger(t, newFakePrices(), nil)

		_, err := ledger.CalculateBeerCost(ctx, "BTC", 0, 5)
		require.ErrorIs(t, err, walletservice.ErrInvalidAmount)

		_, err = ledger.CalculateBeerCost(ctx, "B-T-C", 1, 5)
		require.ErrorIs(t, err, models.ErrInvalidCurrency)
	})
}

func TestSimulatePurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("basic purchase", func(t *testing.T) {
		journal := &fakeJournal{}
		opened := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
		now := opened
		ledger := newLedger(t, newFakePrices(), journal, walletservice.WithClock(func() time.Time { return now }))

		now = opened.Add(time.Minute)

		tx, err := ledger.SimulatePurchase(ctx, "usd", "btc", 100, "")
		require.NoError(t, err)
		require.Equal(t, models.TransactionTypeBuy, tx.Type)
		require.Equal(t, models.TransactionStatusCompleted, tx.Status)
		require.Equal(t, models.USD, tx.FromCurrency)
		require.Equal(t, models.BTC, tx.ToCurrency)
		require.InDelta(t, 100, tx.FromAmount, tolerance)
		require.InDelta(t, 0.002, tx.ToAmount, tolerance)
		require.InDelta(t, 50000, tx.Price, tolerance)
		require.Equal(t, "Bought 0.002 BTC for 100 USD", tx.Description)
		require.NotEmpty(t, tx.ID)

		wallet := ledger.GetWallet()
		require.InDelta(t, 900, wallet.Balances[models.USD], tolerance)
		require.InDelta(t, 0.002, wallet.Balances[models.BTC], tolerance)
		require.Equal(t, []models.Transaction{tx}, wallet.Transactions)
		require.Equal(t, opened.Add(time.Minute), tx.Timestamp)
		require.Equal(t, tx.Timestamp, wallet.LastUpdated)
		require.Equal(t, opened, wallet.CreatedAt)
		require.Equal(t, []models.Transaction{tx}, journal.saved)
	})

	t.Run("custom description is kept", func(t *testing.T) {
		ledger := newLedger(t, newFakePrices(), nil)

		tx, err := ledger.SimulatePurchase(ctx, "USD", "ETH", 50, "first ether")
		require.NoError(t, err)
		require.Equal(t, "first ether", tx.Description)
	})

	t.Run("round trip restores USD", func(t *testing.T) {
		prices := newFakePrices()
		prices.amounts["BTC-USD"] = "43127.31"
		ledger := newLedger(t, prices, nil)

		bought, err := ledger.SimulatePurchase(ctx, "USD", "BTC", 123.45, "")
		require.NoError(t, err)

		sold, err := ledger.SimulatePurchase(ctx, "BTC", "USD", bought.ToAmount, "")
		require.NoError(t, err)
		require.Equal(t, models.TransactionTypeSell, sold.Type)

		wallet := ledger.GetWallet()
		require.InDelta(t, 1000, wallet.Balances[models.USD], 1e-6)
		require.InDelta(t, 0, wallet.Balances[models.BTC], 1e-12)
		require.GreaterOrEqual(t, wallet.Balances[models.BTC], 0.0)
	})

	t.Run("unsupported pair", func(t *testing.T) {
		prices := newFakePrices()
		ledger := newLedger(t, prices, nil)
		require.NoError(t, ledger.AddFunds("BTC", 5))
		before := ledger.GetWallet()

		_, err := ledger.SimulatePurchase(ctx, "BTC", "ETH", 1, "")
		require.ErrorIs(t, err, walletservice.ErrUnsupportedPair)

		_, err = ledger.SimulatePurchase(ctx, "USD", "USD", 1, "")
		require.ErrorIs(t, err, walletservice.ErrUnsupportedPair)

		require.Equal(t, before, ledger.GetWallet())
		require.Zero(t, prices.calls.Load())
	})

	t.Run("insufficient funds", func(t *testing.T) {
		prices := newFakePrices()
		ledger := newLedger(t, prices, nil)
		before := ledger.GetWallet()

		_, err := ledger.SimulatePurchase(ctx, "USD", "BTC", 999999, "")
		require.ErrorIs(t, err, walletservice.ErrInsufficientFunds)
		require.Equal(t, before, ledger.GetWallet())
		require.Zero(t, prices.calls.Load())
	})

	t.Run("invalid amount", func(t *testing.T) {
		ledger := newLedger(t, newFakePrices(), nil)

		_, err := ledger.SimulatePurchase(ctx, "USD", "BTC", 0, "")
		require.ErrorIs(t, err, walletservice.ErrInvalidAmount)

		_, err = ledger.SimulatePurchase(ctx, "USD", "BTC", -5, "")
		require.ErrorIs(t, err, walletservice.ErrInvalidAmount)
	})

	t.Run("price failure leaves wallet untouched", func(t *testing.T) {
		prices := newFakePrices()
		prices.errs["ETH-USD"] = errUpstream
		journal := &fakeJournal{}
		ledger := newLedger(t, prices, journal)
		before := ledger.GetWallet()

		_, err := ledger.SimulatePurchase(ctx, "USD", "ETH", 10, "")
		require.ErrorIs(t, err, errUpstream)
		require.ErrorContains(t, err, "get price for ETH-USD")
		require.Equal(t, before, ledger.GetWallet())
		require.Empty(t, journal.saved)
	})

	t.Run("balance is rechecked after the price fetch", func(t *testing.T) {
		prices := newFakePrices()
		ledger := newLedger(t, prices, nil)

		prices.during = func() {
			require.NoError(t, ledger.AddFunds("USD", -950))
		}

		_, err := ledger.SimulatePurchase(ctx, "USD", "BTC", 100, "")
		require.ErrorIs(t, err, walletservice.ErrInsufficientFunds)

		wallet := ledger.GetWallet()
		require.InDelta(t, 50, wallet.Balances[models.USD], tolerance)
		require.Zero(t, wallet.Balances[models.BTC])
		require.Empty(t, wallet.Transactions)
	})
}

func TestBalanceConservation(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(t, newFakePrices(), nil)

	steps := []struct {
		from, to string
		amount   float64
	}{
		{"USD", "BTC", 200},
		{"USD", "ETH", 300},
		{"BTC", "USD", 0.001},
		{"ETH", "USD", 0.05},
		{"USD", "USDC", 100},
		{"USDC", "USD", 40},
	}

	debits := map[models.Currency]float64{}
	credits := map[models.Currency]float64{}

	for _, step := range steps {
		tx, err := ledger.SimulatePurchase(ctx, step.from, step.to, step.amount, "")
		require.NoError(t, err)

		debits[tx.FromCurrency] += tx.FromAmount
		credits[tx.ToCurrency] += tx.ToAmount
	}

	wallet := ledger.GetWallet()
	initial := map[models.Currency]float64{models.USD: 1000}

	for _, currency := range []models.Currency{models.USD, models.BTC, models.ETH, models.USDC} {
		expected := initial[currency] - debits[currency] + credits[currency]
		require.InDelta(t, expected, wallet.Balances[currency], 1e-9, currency)
		require.GreaterOrEqual(t, wallet.Balances[currency], 0.0, currency)
	}

	require.Len(t, wallet.Transactions, len(steps))
}

func TestConcurrentPurchasesNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(t, newFakePrices(), nil)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
		rejected  atomic.Int64
	)

	for i := 0; i < 150; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := ledger.SimulatePurchase(ctx, "USD", "BTC", 10, "")
			if err != nil {
				if errors.Is(err, walletservice.ErrInsufficientFunds) {
					rejected.Add(1)
				}

				return
			}

			succeeded.Add(1)
		}()
	}

	wg.Wait()

	wallet := ledger.GetWallet()
	require.Equal(t, int64(100), succeeded.Load())
	require.Equal(t, int64(50), rejected.Load())
	require.Zero(t, wallet.Balances[models.USD])
	require.Len(t, wallet.Transactions, 100)
	require.InDelta(t, 0.02, wallet.Balances[models.BTC], 1e-12)
}

func TestGetTransactionHistory(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(t, newFakePrices(), nil)

	var ethTransactions []models.Transaction

	for _, to := range []string{"BTC", "ETH", "BTC", "ETH", "BTC"} {
		tx, err := ledger.SimulatePurchase(ctx, "USD", to, 10, "")
		require.NoError(t, err)

		if to == "ETH" {
			ethTransactions = append(ethTransactions, tx)
		}
	}

	t.Run("filter and limit", func(t *testing.T) {
		history, err := ledger.GetTransactionHistory(2, "eth")
		require.NoError(t, err)
		require.Equal(t, []models.Transaction{ethTransactions[1], ethTransactions[0]}, history)
	})

	t.Run("default limit and no filter", func(t *testing.T) {
		history, err := ledger.GetTransactionHistory(0, "")
		require.NoError(t, err)
		require.Len(t, history, 5)
		require.Equal(t, models.BTC, history[0].ToCurrency)
	})

	t.Run("USD matches every purchase", func(t *testing.T) {
		history, err := ledger.GetTransactionHistory(3, "USD")
		require.NoError(t, err)
		require.Len(t, history, 3)
	})

	t.Run("unknown currency gives empty history", func(t *testing.T) {
		history, err := ledger.GetTransactionHistory(10, "DOGE")
		require.NoError(t, err)
		require.Empty(t, history)
	})

	t.Run("malformed currency", func(t *testing.T) {
		_, err := ledger.GetTransactionHistory(10, "$$")
		require.ErrorIs(t, err, models.ErrInvalidCurrency)
	})
}

func TestReadsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(t, newFakePrices(), nil)

	_, err := ledger.SimulatePurchase(ctx, "USD", "BTC", 100, "")
	require.NoError(t, err)

	first := ledger.GetWallet()
	first.Balances[models.USD] = 1e9
	first.Transactions[0].FromAmount = 1e9

	require.Equal(t, ledger.GetWallet(), ledger.GetWallet())
	require.InDelta(t, 900, ledger.GetWallet().Balances[models.USD], tolerance)

	balance1, err := ledger.GetBalance("btc")
	require.NoError(t, err)
	balance2, err := ledger.GetBalance("BTC")
	require.NoError(t, err)
	require.Equal(t, balance1, balance2)

	history1, err := ledger.GetTransactionHistory(10, "")
	require.NoError(t, err)
	history2, err := ledger.GetTransactionHistory(10, "")
	require.NoError(t, err)
	require.Equal(t, history1, history2)
	require.InDelta(t, 100, history1[0].FromAmount, tolerance)
}

func TestGetBalance(t *testing.T) {
	ledger := newLedger(t, newFakePrices(), nil)

	balance, err := ledger.GetBalance("usd")
	require.NoError(t, err)
	require.InDelta(t, 1000, balance, tolerance)

	balance, err = ledger.GetBalance("SOL")
	require.NoError(t, err)
	require.Zero(t, balance)

	_, err = ledger.GetBalance("")
	require.ErrorIs(t, err, models.ErrInvalidCurrency)
}

func TestResetWallet(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(t, newFakePrices(), nil)

	require.NoError(t, ledger.AddFunds("SOL", 3))
	require.NoError(t, ledger.AddFunds("BTC", 1))

	_, err := ledger.SimulatePurchase(ctx, "USD", "ETH", 250, "")
	require.NoError(t, err)

	result, err := ledger.BuyVirtualBeer(ctx, 2, "BTC", 5)
	require.NoError(t, err)
	require.True(t, result.Success)

	ledger.ResetWallet()

	wallet := ledger.GetWallet()
	require.Equal(t, map[models.Currency]float64{
		models.USD: 1000, models.BTC: 0, models.ETH: 0, models.USDC: 0,
	}, wallet.Balances)
	require.Empty(t, wallet.Transactions)
	require.Zero(t, wallet.Inventory.Beers)
	require.Empty(t, wallet.Inventory.Items)
}

func TestInitialUSDOption(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	ledger := walletservice.New(newFakePrices(), nil, logger, walletservice.WithInitialUSD(250))

	balance, err := ledger.GetBalance("USD")
	require.NoError(t, err)
	require.InDelta(t, 250, balance, tolerance)
}

func TestBuyVirtualBeer(t *testing.T) {
	ctx := context.Background()

	t.Run("not enough crypto is a result, not an error", func(t *testing.T) {
		ledger := newLedger(t, newFakePrices(), nil)
		require.NoError(t, ledger.AddFunds("BTC", 0.00005))
		before := ledger.GetWallet()

		result, err := ledger.BuyVirtualBeer(ctx, 2, "btc", 5)
		require.NoError(t, err)
		require.False(t, result.Success)
		require.True(t, result.NeedsMoreCrypto)
		require.Nil(t, result.Transaction)
		require.InDelta(t, 0.00015, result.SuggestedAmount, tolerance)
		require.InDelta(t, 7.5, result.SuggestedUSDAmount, 1e-6)
		require.Contains(t, result.Message, "Not enough BTC")
		require.Equal(t, before, ledger.GetWallet())
	})

	t.Run("paid directly in crypto", func(t *testing.T) {
		journal := &fakeJournal{}
		ledger := newLedger(t, newFakePrices(), journal)

		_, err := ledger.SimulatePurchase(ctx, "USD", "BTC", 100, "")
		require.NoError(t, err)

		result, err := ledger.BuyVirtualBeer(ctx, 2, "BTC", 5)
		require.NoError(t, err)
		require.True(t, result.Success)
		require.NotNil(t, result.Transaction)

		tx := *result.Transaction
		require.Equal(t, models.TransactionTypeTransfer, tx.Type)
		require.Equal(t, models.BTC, tx.FromCurrency)
		require.Equal(t, models.BEER, tx.ToCurrency)
		require.InDelta(t, 0.0002, tx.FromAmount, tolerance)
		require.InDelta(t, 2, tx.ToAmount, tolerance)

		wallet := ledger.GetWallet()
		require.InDelta(t, 0.0018, wallet.Balances[models.BTC], tolerance)
		require.InDelta(t, 900, wallet.Balances[models.USD], tolerance)
		require.Equal(t, 2, wallet.Inventory.Beers)
		require.Len(t, wallet.Inventory.Items, 1)
		require.Equal(t, tx.ID, wallet.Inventory.Items[0].TransactionID)
		require.Equal(t, tx, wallet.Transactions[0])
		require.Len(t, journal.saved, 2)
	})

	t.Run("USD cannot pay for beer", func(t *testing.T) {
		ledger := newLedger(t, newFakePrices(), nil)

		_, err := ledger.BuyVirtualBeer(ctx, 1, "USD", 5)
		require.ErrorIs(t, err, walletservice.ErrUnsupportedPair)
	})

	t.Run("price failure is an error", func(t *testing.T) {
		prices := newFakePrices()
		prices.errs["ETH-USD"] = errUpstream
		ledger := newLedger(t, prices, nil)

		_, err := ledger.BuyVirtualBeer(ctx, 1, "ETH", 5)
		require.ErrorIs(t, err, errUpstream)
	})
}

func TestGetWalletStats(t *testing.T) {
	ctx := context.Background()

	t.Run("aggregates and values holdings", func(t *testing.T) {
		ledger := newLedger(t, newFakePrices(), nil)

		_, err := ledger.SimulatePurchase(ctx, "USD", "BTC", 100, "")
		require.NoError(t, err)
		_, err = ledger.SimulatePurchase(ctx, "USD", "ETH", 50, "")
		require.NoError(t, err)
		_, err = ledger.SimulatePurchase(ctx, "BTC", "USD", 0.001, "")
		require.NoError(t, err)

		stats, err := ledger.GetWalletStats(ctx)
		require.NoError(t, err)
		require.Equal(t, 3, stats.TotalTransactions)
		require.InDelta(t, 150, stats.TotalSpentUSD, tolerance)
		require.InDelta(t, 0.002, stats.TotalCryptoBought[models.BTC], tolerance)
		require.InDelta(t, 0.02, stats.TotalCryptoBought[models.ETH], tolerance)
		// 900 USD left after the sell, 0.001 BTC and 0.02 ETH still held.
		require.InDelta(t, 900+0.001*50000+0.02*2500, stats.PortfolioValue, 1e-6)
	})

	t.Run("failed valuation skips the holding", func(t *testing.T) {
		prices := newFakePrices()
		ledger := newLedger(t, prices, nil)
		require.NoError(t, ledger.AddFunds("ETH", 2))
		require.NoError(t, ledger.AddFunds("DOGE", 100))

		stats, err := ledger.GetWalletStats(ctx)
		require.NoError(t, err)
		require.Zero(t, stats.TotalTransactions)
		require.InDelta(t, 1000+2*2500, stats.PortfolioValue, 1e-6)
	})

	t.Run("canceled context", func(t *testing.T) {
		ledger := newLedger(t, newFakePrices(), nil)

		canceled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := ledger.GetWalletStats(canceled)
		require.ErrorIs(t, err, context.Canceled)
	})
}
