package models

import (
	"errors"
	"regexp"
	"strings"
)

const (
	USD  Currency = "USD"
	BTC  Currency = "BTC"
	ETH  Currency = "ETH"
	USDC Currency = "USDC"
	BEER Currency = "BEER"
)

var ErrInvalidCurrency = errors.New("currency is invalid")

var currencyPattern = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)

// Currency is an uppercase currency code such as "BTC". Values are only
// produced by ParseCurrency or the package constants.
type Currency string

func ParseCurrency(code string) (Currency, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if !currencyPattern.MatchString(normalized) {
		return "", ErrInvalidCurrency
	}

	return Currency(normalized), nil
}

func (c Currency) String() string {
	return string(c)
}

// PairWithUSD returns the Coinbase pair quoting c in US dollars, e.g. "BTC-USD".
func (c Currency) PairWithUSD() string {
	return string(c) + "-" + string(USD)
}
