package walletserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/AlexZav1327/coinbase-wallet/internal/models"
	"github.com/AlexZav1327/coinbase-wallet/internal/rates"
	walletservice "github.com/AlexZav1327/coinbase-wallet/internal/wallet-service"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var errInvalidBody = errors.New("invalid request body")

type Handler struct {
	service WalletService
	prices  PriceClient
	log     *logrus.Entry
	metrics *metrics
	secret  []byte
}

type WalletService interface {
	GetWallet() models.Wallet
	GetBalance(currencyCode string) (float64, error)
	GetTransactionHistory(limit int, currencyCode string) ([]models.Transaction, error)
	GetWalletStats(ctx context.Context) (models.WalletStats, error)
	CalculateBeerCost(ctx context.Context, currencyCode string, beerCount int, pricePerBeer float64) (
		models.PurchaseCalculation, error)
	SimulatePurchase(ctx context.Context, fromCode, toCode string, amount float64, description string) (
		models.Transaction, error)
	BuyVirtualBeer(ctx context.Context, quantity int, currencyCode string, pricePerBeer float64) (
		models.BeerPurchase, error)
	AddFunds(currencyCode string, amount float64) error
	ResetWallet()
}

type PriceClient interface {
	GetPrice(ctx context.Context, pair, kind string) (models.SpotPrice, error)
	GetExchangeRates(ctx context.Context, currencyCode string) (models.ExchangeRates, error)
	GetCurrencies(ctx context.Context) ([]models.CurrencyInfo, error)
}

type balanceResponse struct {
	Currency models.Currency `json:"currency"`
	Balance  float64         `json:"balance"`
}

func NewHandler(service WalletService, prices PriceClient, log *logrus.Logger, secret []byte,
	reg prometheus.Registerer,
) *Handler {
	return &Handler{
		service: service,
		prices:  prices,
		log:     log.WithField("module", "handler"),
		metrics: newMetrics(reg),
		secret:  secret,
	}
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) getWallet(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.GetWallet())
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	currency := chi.URLParam(r, "currency")

	balance, err := h.service.GetBalance(currency)
	if err != nil {
		h.writeError(w, err)

		return
	}

	parsed, _ := models.ParseCurrency(currency)
	h.writeJSON(w, http.StatusOK, balanceResponse{Currency: parsed, Balance: balance})
}

func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", walletservice.DefaultHistoryLimit)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody("limit must be an integer"))

		return
	}

	history, err := h.service.GetTransactionHistory(limit, r.URL.Query().Get("currency"))
	if err != nil {
		h.writeError(w, err)

		return
	}

	h.writeJSON(w, http.StatusOK, history)
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetWalletStats(r.Context())
	if err != nil {
		h.writeError(w, err)

		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) purchase(w http.ResponseWriter, r *http.Request) {
	var request models.PurchaseRequest

	err := json.NewDecoder(r.Body).Decode(&request)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody(errInvalidBody.Error()))

		return
	}

	tx, err := h.service.SimulatePurchase(r.Context(), request.FromCurrency, request.ToCurrency, request.Amount,
		request.Description)
	if err != nil {
		h.writeError(w, err)

		return
	}

	h.writeJSON(w, http.StatusOK, tx)
}

func (h *Handler) beerCost(w http.ResponseWriter, r *http.Request) {
	beers, err := queryInt(r, "beers", walletservice.DefaultBeerCount)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody("beers must be an integer"))

		return
	}

	pricePerBeer, err := queryFloat(r, "pricePerBeer", walletservice.DefaultPricePerBeer)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody("pricePerBeer must be a number"))

		return
	}

	currency := r.URL.Query().Get("currency")
	if currency == "" {
		currency = walletservice.DefaultBeerCurrency.String()
	}

	calculation, err := h.service.CalculateBeerCost(r.Context(), currency, beers, pricePerBeer)
	if err != nil {
		h.writeError(w, err)

		return
	}

	h.writeJSON(w, http.StatusOK, calculation)
}

func (h *Handler) buyBeer(w http.ResponseWriter, r *http.Request) {
	request := models.BeerRequest{
		Quantity:     walletservice.DefaultBeerCount,
		Currency:     walletservice.DefaultBeerCurrency.String(),
		PricePerBeer: walletservice.DefaultPricePerBeer,
	}

	err := json.NewDecoder(r.Body).Decode(&request)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody(errInvalidBody.Error()))

		return
	}

	purchase, err := h.service.BuyVirtualBeer(r.Context(), request.Quantity, request.Currency, request.PricePerBeer)
	if err != nil {
		h.writeError(w, err)

		return
	}

	h.writeJSON(w, http.StatusOK, purchase)
}

func (h *Handler) addFunds(w http.ResponseWriter, r *http.Request) {
	var request models.FundsRequest

	err := json.NewDecoder(r.Body).Decode(&request)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody(errInvalidBody.Error()))

		return
	}

	if request.Amount <= 0 {
		h.writeError(w, walletservice.ErrInvalidAmount)

		return
	}

	err = h.service.AddFunds(request.Currency, request.Amount)
	if err != nil {
		h.writeError(w, err)

		return
	}

	h.log.Infof("%s added %v %s", subjectFrom(r.Context()), request.Amount, request.Currency)

	balance, err := h.service.GetBalance(request.Currency)
	if err != nil {
		h.writeError(w, err)

		return
	}

	currency, _ := models.ParseCurrency(request.Currency)
	h.writeJSON(w, http.StatusOK, balanceResponse{Currency: currency, Balance: balance})
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	h.service.ResetWallet()
	h.log.Infof("%s reset the wallet", subjectFrom(r.Context()))

	h.writeJSON(w, http.StatusOK, h.service.GetWallet())
}

func (h *Handler) getPrice(w http.ResponseWriter, r *http.Request) {
	price, err := h.prices.GetPrice(r.Context(), chi.URLParam(r, "pair"), chi.URLParam(r, "kind"))
	if err != nil {
		h.writeError(w, err)

		return
	}

	h.writeJSON(w, http.StatusOK, price)
}

func (h *Handler) getExchangeRates(w http.ResponseWriter, r *http.Request) {
	currency := r.URL.Query().Get("currency")
	if currency == "" {
		currency = models.USD.String()
	}

	exchangeRates, err := h.prices.GetExchangeRates(r.Context(), currency)
	if err != nil {
		h.writeError(w, err)

		return
	}

	h.writeJSON(w, http.StatusOK, exchangeRates)
}

func (h *Handler) getCurrencies(w http.ResponseWriter, r *http.Request) {
	currencies, err := h.prices.GetCurrencies(r.Context())
	if err != nil {
		h.writeError(w, err)

		return
	}

	h.writeJSON(w, http.StatusOK, currencies)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, statusOf(err), errorBody(err.Error()))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		h.log.Warningf("json.NewEncoder.Encode: %s", err)
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidCurrency), errors.Is(err, walletservice.ErrInvalidAmount),
		errors.Is(err, rates.ErrInvalidPair):
		return http.StatusBadRequest
	case errors.Is(err, walletservice.ErrInsufficientFunds), errors.Is(err, walletservice.ErrUnsupportedPair):
		return http.StatusUnprocessableEntity
	case errors.Is(err, rates.ErrInvalidPriceKind), errors.Is(err, rates.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(message string) models.ErrorResponse {
	return models.ErrorResponse{Error: message}
}

func queryInt(r *http.Request, key string, defaultValue int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue, nil
	}

	return strconv.Atoi(raw)
}

func queryFloat(r *http.Request, key string, defaultValue float64) (float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue, nil
	}

	return strconv.ParseFloat(raw, 64)
}
