// Package fetch pages through the remote order history and reads the account
// profile. A fetch either runs to the exhausted page or fails as a whole.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"ambrosial/internal/metrics"
	"ambrosial/internal/model"
)

const (
	DefaultOrdersURL  = "https://www.swiggy.com/dapi/order/all"
	DefaultProfileURL = "https://www.swiggy.com/mapi/profile/info"
	DefaultTimeout    = 10 * time.Second

	cursorParam = "order_id"
)

type Client struct {
	ordersURL  string
	profileURL string
	httpClient *http.Client
	metrics    *metrics.Registry
}

type ClientOption func(*Client)

func WithOrdersURL(u string) ClientOption { return func(c *Client) { c.ordersURL = u } }

func WithProfileURL(u string) ClientOption { return func(c *Client) { c.profileURL = u } }

// WithHTTPClient replaces the default client. Its Timeout bounds each request.
func WithHTTPClient(hc *http.Client) ClientOption { return func(c *Client) { c.httpClient = hc } }

// WithTimeout sets the per-request timeout on a copy of the HTTP client, so a
// client passed through WithHTTPClient is left as it was.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			hc := *c.httpClient
			hc.Timeout = d
			c.httpClient = &hc
		}
	}
}

func WithMetrics(m *metrics.Registry) ClientOption { return func(c *Client) { c.metrics = m } }

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		ordersURL:  DefaultOrdersURL,
		profileURL: DefaultProfileURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type fetchConfig struct {
	limit int
}

type Option func(*fetchConfig)

// WithLimit stops paging once n orders are collected and drops any surplus.
// n <= 0 means no limit.
func WithLimit(n int) Option { return func(f *fetchConfig) { f.limit = n } }

type envelope struct {
	StatusCode    *json.Number    `json:"statusCode"`
	StatusMessage string          `json:"statusMessage"`
	Data          json.RawMessage `json:"data"`
}

// FetchAll requests pages until one comes back empty. The first request has
// no cursor; each later one carries the order id of the last order received.
func (c *Client) FetchAll(ctx context.Context, s Session, opts ...Option) ([]model.RawOrder, error) {
	var cfg fetchConfig
	for _, o := range opts {
		o(&cfg)
	}
	start := time.Now()
	all := []model.RawOrder{}
	cursor := ""
	for page := 1; ; page++ {
		orders, err := c.page(ctx, s, cursor, page)
		if err != nil {
			return nil, err
		}
		log.Debug().Int("page", page).Str("cursor", cursor).Int("orders", len(orders)).Msg("fetched page")
		if len(orders) == 0 {
			break
		}
		all = append(all, orders...)
		if cfg.limit > 0 && len(all) >= cfg.limit {
			all = all[:cfg.limit]
			break
		}
		next, ok := orders[len(orders)-1].Key()
		if !ok {
			return nil, fmt.Errorf("fetch page %d: last order carries no order_id", page)
		}
		if next == cursor {
			return nil, fmt.Errorf("fetch page %d: cursor %s did not advance", page, cursor)
		}
		cursor = next
	}
	if c.metrics != nil {
		c.metrics.FetchOrders.Add(float64(len(all)))
		c.metrics.FetchDurationSec.Observe(time.Since(start).Seconds())
	}
	log.Info().Int("orders", len(all)).Dur("took", time.Since(start)).Msg("fetch complete")
	return all, nil
}

func (c *Client) page(ctx context.Context, s Session, cursor string, page int) ([]model.RawOrder, error) {
	u, err := url.Parse(c.ordersURL)
	if err != nil {
		return nil, fmt.Errorf("orders url: %w", err)
	}
	if cursor != "" {
		q := u.Query()
		q.Set(cursorParam, cursor)
		u.RawQuery = q.Encode()
	}
	data, err := c.get(ctx, s, u.String(), page)
	if err != nil {
		return nil, err
	}
	var body struct {
		Orders []model.RawOrder `json:"orders"`
	}
	if err := decode(data, &body); err != nil {
		c.fail(metrics.ReasonDecode)
		return nil, &TransportError{URL: u.String(), Page: page, Err: fmt.Errorf("decode orders: %w", err)}
	}
	if c.metrics != nil {
		c.metrics.FetchPages.Inc()
	}
	return body.Orders, nil
}

// get performs one bounded request and returns the envelope's data once both
// the HTTP status and the payload status say success.
func (c *Client) get(ctx context.Context, s Session, u string, page int) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	s.apply(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.fail(metrics.ReasonTransport)
		return nil, &TransportError{URL: u, Page: page, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		c.fail(metrics.ReasonTransport)
		return nil, &TransportError{URL: u, Page: page, StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.fail(metrics.ReasonTransport)
		return nil, &TransportError{URL: u, Page: page, Err: fmt.Errorf("read body: %w", err)}
	}
	var env envelope
	if err := decode(raw, &env); err != nil {
		c.fail(metrics.ReasonDecode)
		return nil, &TransportError{URL: u, Page: page, Err: fmt.Errorf("decode response: %w", err)}
	}
	if env.StatusCode == nil {
		c.fail(metrics.ReasonRejected)
		return nil, &RemoteRejectionError{URL: u, Page: page, Message: "response carries no statusCode"}
	}
	if code, err := env.StatusCode.Int64(); err != nil || code != 0 {
		c.fail(metrics.ReasonRejected)
		return nil, &RemoteRejectionError{URL: u, Page: page, StatusCode: env.StatusCode.String(), Message: env.StatusMessage}
	}
	return env.Data, nil
}

func (c *Client) fail(reason string) {
	if c.metrics != nil {
		c.metrics.FetchFailures.WithLabelValues(reason).Inc()
	}
}

// decode keeps numbers as json.Number so large ids survive untouched.
func decode(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return fmt.Errorf("empty payload")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
