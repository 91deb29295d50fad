package rates

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/AlexZav1327/coinbase-wallet/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL           = "https://api.coinbase.com"
	DefaultTimeout           = 10 * time.Second
	DefaultRequestsPerSecond = 10
	DefaultBurst             = 5

	PriceKindSpot = "spot"
	PriceKindBuy  = "buy"
	PriceKindSell = "sell"

	tripAfterFailures = 5
	openStateTimeout  = 30 * time.Second
)

var (
	ErrInvalidPair      = errors.New("pair must look like BTC-USD")
	ErrInvalidPriceKind = errors.New("price kind must be spot, buy or sell")
	ErrNotFound         = errors.New("coinbase: not found")
	ErrUnexpectedStatus = errors.New("coinbase: unexpected status")
	ErrCircuitOpen      = errors.New("coinbase: circuit breaker is open")

	errAbandoned = errors.New("request abandoned by caller")
)

var pairPattern = regexp.MustCompile(`^[A-Z0-9]{2,10}-[A-Z0-9]{2,10}$`)

type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Registerer        prometheus.Registerer
}

// Client talks to the public Coinbase /v2 API. Calls are rate limited on the
// client side and go through a circuit breaker.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker
	log     *logrus.Entry
	metrics *metrics
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type apiErrors struct {
	Errors []struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"errors"`
}

func New(cfg Config, log *logrus.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}

	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}

	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.NewRegistry()
	}

	entry := log.WithField("module", "rates")

	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json").
			SetLogger(entry),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		log:     entry,
		metrics: newMetrics(cfg.Registerer),
	}

	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "coinbase",
		Timeout: openStateTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfterFailures
		},
		// A 404 means the caller asked for something Coinbase does not list,
		// and an abandoned request says nothing about Coinbase at all.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, errAbandoned)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.log.Warningf("circuit breaker %s: %s -> %s", name, from, to)
			c.metrics.breaker.Set(float64(to))
		},
	})

	return c
}

func (c *Client) GetSpotPrice(ctx context.Context, pair string) (models.SpotPrice, error) {
	return c.GetPrice(ctx, pair, PriceKindSpot)
}

func (c *Client) GetBuyPrice(ctx context.Context, pair string) (models.SpotPrice, error) {
	return c.GetPrice(ctx, pair, PriceKindBuy)
}

func (c *Client) GetSellPrice(ctx context.Context, pair string) (models.SpotPrice, error) {
	return c.GetPrice(ctx, pair, PriceKindSell)
}

func (c *Client) GetPrice(ctx context.Context, pair, kind string) (models.SpotPrice, error) {
	pair = strings.ToUpper(strings.TrimSpace(pair))
	if !pairPattern.MatchString(pair) {
		return models.SpotPrice{}, ErrInvalidPair
	}

	switch kind {
	case PriceKindSpot, PriceKindBuy, PriceKindSell:
	default:
		return models.SpotPrice{}, ErrInvalidPriceKind
	}

	return get[models.SpotPrice](ctx, c, "prices_"+kind, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParams(map[string]string{"pair": pair, "kind": kind}).Get("/v2/prices/{pair}/{kind}")
	})
}

func (c *Client) GetExchangeRates(ctx context.Context, currencyCode string) (models.ExchangeRates, error) {
	currency, err := models.ParseCurrency(currencyCode)
	if err != nil {
		return models.ExchangeRates{}, err
	}

	return get[models.ExchangeRates](ctx, c, "exchange_rates", func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParam("currency", currency.String()).Get("/v2/exchange-rates")
	})
}

func (c *Client) GetCurrencies(ctx context.Context) ([]models.CurrencyInfo, error) {
	return get[[]models.CurrencyInfo](ctx, c, "currencies", func(r *resty.Request) (*resty.Response, error) {
		return r.Get("/v2/currencies")
	})
}

func get[T any](ctx context.Context, c *Client, endpoint string,
	send func(r *resty.Request) (*resty.Response, error),
) (T, error) {
	var zero T

	started := time.Now()
	defer func() {
		c.metrics.duration.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
	}()

	err := c.limiter.Wait(ctx)
	if err != nil {
		return zero, fmt.Errorf("limiter.Wait: %w", err)
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		var (
			body    envelope[T]
			failure apiErrors
		)

		response, err := send(c.http.R().
			SetContext(ctx).
			ForceContentType("application/json").
			SetResult(&body).
			SetError(&failure))
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("resty.Request.Send: %w: %w", errAbandoned, ctx.Err())
			}

			return nil, fmt.Errorf("resty.Request.Send: %w", err)
		}

		if response.IsError() {
			return nil, statusError(response.StatusCode(), failure)
		}

		return body.Data, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, ErrCircuitOpen
		}

		return zero, err
	}

	data, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%w: unexpected payload type", ErrUnexpectedStatus)
	}

	return data, nil
}

func statusError(code int, failure apiErrors) error {
	sentinel := ErrUnexpectedStatus
	if code == http.StatusNotFound {
		sentinel = ErrNotFound
	}

	if len(failure.Errors) > 0 {
		return fmt.Errorf("%w: %d: %s", sentinel, code, failure.Errors[0].Message)
	}

	return fmt.Errorf("%w: %d", sentinel, code)
}
