package priceserver

import (
	"encoding/json"
	"errors"
	"net/http"

	priceservice "github.com/AlexZav1327/coinbase-wallet/internal/price-service"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	service PriceService
	log     *logrus.Entry
}

type apiError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func NewHandler(service PriceService, log *logrus.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.WithField("module", "price_handler"),
	}
}

func (h *Handler) getPrice(w http.ResponseWriter, r *http.Request) {
	price, err := h.service.GetPrice(chi.URLParam(r, "pair"), chi.URLParam(r, "kind"))
	if err != nil {
		h.writeError(w, err)

		return
	}

	h.writeData(w, price)
}

func (h *Handler) getExchangeRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.service.GetExchangeRates(r.URL.Query().Get("currency"))
	if err != nil {
		h.writeError(w, err)

		return
	}

	h.writeData(w, rates)
}

func (h *Handler) getCurrencies(w http.ResponseWriter, _ *http.Request) {
	h.writeData(w, h.service.GetCurrencies())
}

func (h *Handler) writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	err := json.NewEncoder(w).Encode(map[string]any{"data": data})
	if err != nil {
		h.log.Warningf("json.NewEncoder.Encode: %s", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	id := "internal_server_error"
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, priceservice.ErrUnknownPair), errors.Is(err, priceservice.ErrUnknownKind):
		id = "not_found"
		status = http.StatusNotFound
	default:
		h.log.Warningf("price stub: %s", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err = json.NewEncoder(w).Encode(map[string][]apiError{"errors": {{ID: id, Message: err.Error()}}})
	if err != nil {
		h.log.Warningf("json.NewEncoder.Encode: %s", err)
	}
}
