// Package pricefeed polls a public market API for the fiat price of the coin. Consumers read the last
// known value and never wait on the network.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"tipbridge/internal/metrics"

	"github.com/shopspring/decimal"
)

type Feed struct {
	http     *http.Client
	baseURL  string
	coinID   string
	currency string
	interval time.Duration
	log      *slog.Logger

	mu        sync.RWMutex
	price     decimal.Decimal
	fetchedAt time.Time
	known     bool
}

func New(baseURL, coinID, currency string, interval time.Duration, log *slog.Logger) *Feed {
	return &Feed{
		http:     &http.Client{Timeout: 10 * time.Second},
		baseURL:  strings.TrimRight(baseURL, "/"),
		coinID:   coinID,
		currency: strings.ToLower(currency),
		interval: interval,
		log:      log.With(slog.String("component", "pricefeed")),
	}
}

func (f *Feed) Currency() string {
	return strings.ToUpper(f.currency)
}

// Last returns the most recent price; ok is false until the first successful fetch.
func (f *Feed) Last() (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.price, f.known
}

func (f *Feed) FetchedAt() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.fetchedAt
}

func (f *Feed) Set(price decimal.Decimal, at time.Time) {
	f.mu.Lock()
	f.price = price
	f.fetchedAt = at
	f.known = true
	f.mu.Unlock()
}

func (f *Feed) Fetch(ctx context.Context) (decimal.Decimal, error) {
	const op = "pricefeed.Fetch"

	q := url.Values{}
	q.Set("ids", f.coinID)
	q.Set("vs_currencies", f.currency)
	endpoint := fmt.Sprintf("%s/simple/price?%s", f.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", op, err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("%s: status %d", op, resp.StatusCode)
	}

	var body map[string]map[string]json.Number
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: decode: %w", op, err)
	}
	raw, ok := body[f.coinID][f.currency]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%s: no %s price for %s", op, f.currency, f.coinID)
	}
	price, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", op, err)
	}
	return price, nil
}

// Run polls immediately and then on every interval until ctx is done. Failures keep the last price.
func (f *Feed) Run(ctx context.Context) {
	f.poll(ctx)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.poll(ctx)
		}
	}
}

func (f *Feed) poll(ctx context.Context) {
	price, err := f.Fetch(ctx)
	if err != nil {
		metrics.PriceFeedUpdatesTotal.WithLabelValues("failed").Inc()
		f.log.Warn("price update failed", slog.String("error", err.Error()))
		return
	}
	metrics.PriceFeedUpdatesTotal.WithLabelValues("ok").Inc()
	f.Set(price, time.Now())
}
