package models

import "time"

type TransactionType string

const (
	TransactionTypeBuy      TransactionType = "buy"
	TransactionTypeSell     TransactionType = "sell"
	TransactionTypeTransfer TransactionType = "transfer"
)

type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusFailed    TransactionStatus = "failed"
)

type Wallet struct {
	Balances     map[Currency]float64 `json:"balances"`
	Transactions []Transaction        `json:"transactions"`
	Inventory    Inventory            `json:"inventory"`
	CreatedAt    time.Time            `json:"createdAt"`
	LastUpdated  time.Time            `json:"lastUpdated"`
}

type Transaction struct {
	ID           string            `json:"id"`
	Type         TransactionType   `json:"type"`
	FromCurrency Currency          `json:"fromCurrency"`
	ToCurrency   Currency          `json:"toCurrency"`
	FromAmount   float64           `json:"fromAmount"`
	ToAmount     float64           `json:"toAmount"`
	Price        float64           `json:"price"`
	Description  string            `json:"description"`
	Timestamp    time.Time         `json:"timestamp"`
	Status       TransactionStatus `json:"status"`
}

// Involves reports whether either side of the transaction is currency.
func (t Transaction) Involves(currency Currency) bool {
	return t.FromCurrency == currency || t.ToCurrency == currency
}

type Inventory struct {
	Beers int           `json:"beers"`
	Items []VirtualItem `json:"items"`
}

type VirtualItem struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Quantity      int       `json:"quantity"`
	PaidAmount    float64   `json:"paidAmount"`
	PaidCurrency  Currency  `json:"paidCurrency"`
	TransactionID string    `json:"transactionId"`
	AcquiredAt    time.Time `json:"acquiredAt"`
}

type PurchaseCalculation struct {
	USDAmount      float64  `json:"usdAmount"`
	CryptoAmount   float64  `json:"cryptoAmount"`
	CryptoCurrency Currency `json:"cryptoCurrency"`
	Price          float64  `json:"price"`
	Description    string   `json:"description"`
}

type BeerPurchase struct {
	Success            bool         `json:"success"`
	Transaction        *Transaction `json:"transaction,omitempty"`
	NeedsMoreCrypto    bool         `json:"needsMoreCrypto,omitempty"`
	SuggestedAmount    float64      `json:"suggestedAmount,omitempty"`
	SuggestedUSDAmount float64      `json:"suggestedUsdAmount,omitempty"`
	Message            string       `json:"message"`
}

type WalletStats struct {
	TotalTransactions int                  `json:"totalTransactions"`
	TotalSpentUSD     float64              `json:"totalSpentUsd"`
	TotalCryptoBought map[Currency]float64 `json:"totalCryptoBought"`
	PortfolioValue    float64              `json:"portfolioValue"`
}

type PurchaseRequest struct {
	FromCurrency string  `json:"fromCurrency"`
	ToCurrency   string  `json:"toCurrency"`
	Amount       float64 `json:"amount"`
	Description  string  `json:"description"`
}

type BeerRequest struct {
	Quantity     int     `json:"quantity"`
	Currency     string  `json:"currency"`
	PricePerBeer float64 `json:"pricePerBeer"`
}

type FundsRequest struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
