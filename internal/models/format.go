package models

import "github.com/shopspring/decimal"

const displayPlaces = 8

// FormatAmount renders an amount for humans. Stored amounts are never rounded.
func FormatAmount(amount float64) string {
	return decimal.NewFromFloat(amount).Round(displayPlaces).String()
}
