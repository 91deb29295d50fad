package priceservice

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/AlexZav1327/coinbase-wallet/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	usd        = "USD"
	spot       = "spot"
	buy        = "buy"
	sell       = "sell"
	// Spreads in per mille of spot.
	buySpread  = 1005
	sellSpread = 995
	perMille   = 1000
)

var (
	ErrUnknownPair = errors.New("invalid currency pair")
	ErrUnknownKind = errors.New("invalid price type")
)

// Fixed USD quotes served by the stub.
var spotQuotes = map[string]float64{
	"BTC":  50000,
	"ETH":  3000,
	"USDC": 1,
	"SOL":  150,
	"DOGE": 0.15,
	"USD":  1,
}

var currencyNames = map[string]string{
	"BTC":  "Bitcoin",
	"ETH":  "Ethereum",
	"USDC": "USD Coin",
	"SOL":  "Solana",
	"DOGE": "Dogecoin",
	"USD":  "US Dollar",
}

type Price struct {
	log *logrus.Entry
}

func New(log *logrus.Logger) *Price {
	return &Price{
		log: log.WithField("module", "price_service"),
	}
}

func (p *Price) GetPrice(pair, kind string) (models.SpotPrice, error) {
	base, quote, ok := strings.Cut(strings.ToUpper(pair), "-")
	if !ok {
		return models.SpotPrice{}, ErrUnknownPair
	}

	baseUSD, okBase := spotQuotes[base]
	quoteUSD, okQuote := spotQuotes[quote]

	if !okBase || !okQuote || base == quote {
		p.log.Debugf("no quote for %s", pair)

		return models.SpotPrice{}, ErrUnknownPair
	}

	amount := baseUSD / quoteUSD

	switch kind {
	case spot:
	case buy:
		amount = amount * buySpread / perMille
	case sell:
		amount = amount * sellSpread / perMille
	default:
		return models.SpotPrice{}, ErrUnknownKind
	}

	return models.SpotPrice{
		Amount:   strconv.FormatFloat(amount, 'f', -1, 64),
		Base:     base,
		Currency: quote,
	}, nil
}

func (p *Price) GetExchangeRates(currency string) (models.ExchangeRates, error) {
	currency = strings.ToUpper(currency)
	if currency == "" {
		currency = usd
	}

	baseUSD, ok := spotQuotes[currency]
	if !ok {
		return models.ExchangeRates{}, ErrUnknownPair
	}

	rates := make(map[string]string, len(spotQuotes))

	for code, quoteUSD := range spotQuotes {
		rates[code] = strconv.FormatFloat(baseUSD/quoteUSD, 'f', -1, 64)
	}

	return models.ExchangeRates{Currency: currency, Rates: rates}, nil
}

func (p *Price) GetCurrencies() []models.CurrencyInfo {
	currencies := make([]models.CurrencyInfo, 0, len(currencyNames))

	for code, name := range currencyNames {
		currencies = append(currencies, models.CurrencyInfo{ID: code, Name: name, MinSize: "0.00000001"})
	}

	sort.Slice(currencies, func(i, j int) bool {
		return currencies[i].ID < currencies[j].ID
	})

	return currencies
}
