// Package oneframe is a client for the OneFrame quote provider.
package oneframe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/petitolabs/forex-proxy/internal/logger"
	"github.com/petitolabs/forex-proxy/internal/models"
)

// ErrLookupFailed indicates the upstream could not supply rates after
// all retries were exhausted.
var ErrLookupFailed = errors.New("rate lookup failed")

const initialBackoff = 100 * time.Millisecond

// Client fetches the tracked currency pairs from OneFrame in one
// batched request. It is stateless and safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	maxRetries uint64
	httpClient *http.Client
}

// oneFrameRate mirrors one element of the upstream response. Only
// price is consumed; bid and ask are carried for decode strictness.
type oneFrameRate struct {
	From      string      `json:"from"`
	To        string      `json:"to"`
	Bid       json.Number `json:"bid"`
	Ask       json.Number `json:"ask"`
	Price     json.Number `json:"price"`
	TimeStamp string      `json:"time_stamp"`
}

// NewClient creates a OneFrame API client.
func NewClient(baseURL, token string, timeout time.Duration, maxRetries int) *Client {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Client{
		baseURL:    trimmed,
		token:      token,
		maxRetries: uint64(maxRetries),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// FetchAll requests all tracked ordered pairs in a single call and
// returns the surviving rates in upstream order. Transport errors,
// non-2xx statuses and decode failures are retried with exponential
// backoff (100 ms initial, doubling, no jitter) up to maxRetries
// additional attempts; the sleeps respect ctx cancellation.
func (c *Client) FetchAll(ctx context.Context) ([]models.Rate, error) {
	var rates []models.Rate

	attempt := 0
	op := func() error {
		attempt++
		got, err := c.fetchOnce(ctx)
		if err != nil {
			logger.Log.Warn().Err(err).Int("attempt", attempt).Msg("OneFrame fetch failed")
			return err
		}
		rates = got
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialBackoff
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	return rates, nil
}

func (c *Client) fetchOnce(ctx context.Context) ([]models.Rate, error) {
	params := url.Values{}
	for _, p := range models.TrackedPairs() {
		params.Add("pair", p.From.String()+p.To.String())
	}
	endpoint := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create rates request: %w", err)
	}
	req.Header.Set("token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to request rates: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("OneFrame returned status %d", resp.StatusCode)
	}

	var payload []oneFrameRate
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode rates response: %w", err)
	}

	rates := make([]models.Rate, 0, len(payload))
	for _, row := range payload {
		rate, ok := c.toRate(row)
		if !ok {
			continue
		}
		rates = append(rates, rate)
	}
	return rates, nil
}

// toRate validates and maps one upstream row. Rows with unknown
// currencies or an unparseable price are dropped. An unparseable
// time_stamp does not drop the row; the local clock substitutes.
func (c *Client) toRate(row oneFrameRate) (models.Rate, bool) {
	from, err := models.ParseCurrency(row.From)
	if err != nil {
		logger.Log.Debug().Str("from", row.From).Str("to", row.To).Msg("dropping rate with unknown currency")
		return models.Rate{}, false
	}
	to, err := models.ParseCurrency(row.To)
	if err != nil {
		logger.Log.Debug().Str("from", row.From).Str("to", row.To).Msg("dropping rate with unknown currency")
		return models.Rate{}, false
	}

	price, err := decimal.NewFromString(row.Price.String())
	if err != nil {
		logger.Log.Debug().Str("from", row.From).Str("to", row.To).Str("price", row.Price.String()).
			Msg("dropping rate with unparseable price")
		return models.Rate{}, false
	}

	ts, err := time.Parse(time.RFC3339, row.TimeStamp)
	if err != nil {
		logger.Log.Debug().Str("from", row.From).Str("to", row.To).Str("time_stamp", row.TimeStamp).
			Msg("unparseable time_stamp; using local time")
		ts = time.Now()
	}

	return models.Rate{
		Pair:      models.Pair{From: from, To: to},
		Price:     price,
		Timestamp: ts,
	}, true
}
