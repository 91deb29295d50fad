package models

import (
	"fmt"
	"strconv"
)

// SpotPrice mirrors the "data" object of Coinbase /v2/prices responses.
type SpotPrice struct {
	Amount   string `json:"amount"`
	Base     string `json:"base"`
	Currency string `json:"currency"`
}

func (p SpotPrice) Value() (float64, error) {
	value, err := strconv.ParseFloat(p.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("strconv.ParseFloat: %w", err)
	}

	return value, nil
}

type ExchangeRates struct {
	Currency string            `json:"currency"`
	Rates    map[string]string `json:"rates"`
}

type CurrencyInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	MinSize string `json:"min_size"`
}
