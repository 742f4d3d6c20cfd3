// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package etherscan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/ethgraph/pkg/validation"
	"github.com/AleutianAI/ethgraph/services/ledger/telemetry"
	"github.com/AleutianAI/ethgraph/services/ledger/txgraph"
	"github.com/sugawarayuuta/sonnet"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Etherscan API endpoint.
	DefaultBaseURL = "https://api.etherscan.io/api"

	// DefaultMaxPerAddress is the page size requested per address.
	DefaultMaxPerAddress = 20

	// DefaultRequestsPerSecond matches the free-tier limit.
	DefaultRequestsPerSecond = 5

	// noTransactions is the message of an empty, successful txlist reply.
	noTransactions = "No transactions found"

	tracerName = "ethgraph.etherscan"
)

// HTTPClient allows injecting mock HTTP clients for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the API endpoint. Default: DefaultBaseURL.
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`

	// MaxPerAddress bounds the transactions returned per address.
	MaxPerAddress int `yaml:"max_per_address" validate:"gte=0,lte=10000"`

	// RequestsPerSecond is the limiter rate. Zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`

	// Timeout bounds one HTTP attempt.
	Timeout time.Duration `yaml:"timeout"`

	// Retry is the per-address retry policy.
	Retry RetryConfig `yaml:"retry"`

	// Breaker configures the shared circuit breaker. It trips after
	// FailureThreshold consecutive addresses exhaust their retries.
	Breaker CircuitBreakerConfig `yaml:"-"`
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		MaxPerAddress:     DefaultMaxPerAddress,
		RequestsPerSecond: DefaultRequestsPerSecond,
		Timeout:           30 * time.Second,
		Retry:             DefaultRetryConfig(),
		Breaker:           DefaultCircuitBreakerConfig(),
	}
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h HTTPClient) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger used for attempt failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client fetches transaction lists from Etherscan.
//
// Client is safe for concurrent use, though the crawler calls it from a
// single goroutine.
type Client struct {
	baseURL       string
	maxPerAddress int
	key           *APIKey
	http          HTTPClient
	limiter       *rate.Limiter
	breaker       *CircuitBreaker
	retry         RetryConfig
	logger        *slog.Logger
}

// NewClient creates a Client. Zero-valued config fields take their defaults.
func NewClient(cfg Config, key *APIKey, opts ...Option) (*Client, error) {
	if key == nil {
		return nil, ErrEmptyAPIKey
	}
	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.MaxPerAddress <= 0 {
		cfg.MaxPerAddress = defaults.MaxPerAddress
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = defaults.Retry
	}
	if err := cfg.Retry.Validate(); err != nil {
		return nil, err
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	c := &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		maxPerAddress: cfg.MaxPerAddress,
		key:           key,
		http:          &http.Client{Timeout: cfg.Timeout},
		limiter:       rate.NewLimiter(limit, 1),
		retry:         cfg.Retry,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	breakerCfg := cfg.Breaker
	userHook := breakerCfg.OnStateChange
	breakerCfg.OnStateChange = func(from, to CircuitState) {
		breakerState.Set(float64(to))
		c.logger.Warn("etherscan circuit breaker state change", "from", from.String(), "to", to.String())
		if userHook != nil {
			userHook(from, to)
		}
	}
	c.breaker = NewCircuitBreaker(breakerCfg)
	return c, nil
}

// Breaker exposes the client's circuit breaker.
func (c *Client) Breaker() *CircuitBreaker {
	return c.breaker
}

// MaxPerAddress returns the configured page size.
func (c *Client) MaxPerAddress() int {
	return c.maxPerAddress
}

// envelope is the common Etherscan response wrapper. Result is either an
// array of transactions or an error string.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  any    `json:"result"`
}

// Transactions returns up to MaxPerAddress transactions touching addr,
// most recent first.
//
// Errors:
//
//	ErrInvalidAddress - addr is not a 20-byte hex address
//	ErrCircuitOpen - the breaker was open when the call started
//	*RetriesExhaustedError - every attempt failed
//	context errors - ctx was cancelled
func (c *Client) Transactions(ctx context.Context, addr txgraph.Address) ([]txgraph.Transaction, error) {
	if err := validation.ValidateAddress(addr.String()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, "Client.Transactions",
		trace.WithAttributes(attribute.String("address", addr.String())),
	)
	defer span.End()

	var txs []txgraph.Transaction
	result, err := Retry(ctx, c.retry, c.breaker, func(ctx context.Context, attempt int) error {
		got, err := c.fetchOnce(ctx, addr)
		if err != nil {
			if IsRetryable(err) {
				c.logger.Warn("etherscan fetch failed",
					"address", addr.Short(),
					"attempt", attempt,
					"error", err,
				)
			}
			return err
		}
		txs = got
		return nil
	})
	fetchAttempts.Observe(float64(result.Attempts))
	span.SetAttributes(attribute.Int("attempts", result.Attempts))

	if err != nil {
		if IsRetryable(err) {
			err = &RetriesExhaustedError{Address: addr.String(), Attempts: result.Attempts, Last: err}
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("transactions", len(txs)))
	telemetry.SetSpanOK(span)
	return txs, nil
}

// fetchOnce performs a single rate-limited request.
func (c *Client) fetchOnce(ctx context.Context, addr txgraph.Address) ([]txgraph.Transaction, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := c.newRequest(ctx, addr)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		requestsTotal.WithLabelValues("transport_error").Inc()
		return nil, &FetchError{Address: addr.String(), Reason: "transport", Err: stripURL(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		requestsTotal.WithLabelValues("status_error").Inc()
		return nil, &FetchError{
			Address:    addr.String(),
			StatusCode: resp.StatusCode,
			Reason:     "status",
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		requestsTotal.WithLabelValues("transport_error").Inc()
		return nil, &FetchError{Address: addr.String(), StatusCode: resp.StatusCode, Reason: "transport", Err: err}
	}

	txs, err := decodeEnvelope(body)
	if err != nil {
		reason := "decode"
		var fe *FetchError
		if errors.As(err, &fe) {
			fe.Address = addr.String()
			reason = fe.Reason
		}
		requestsTotal.WithLabelValues(reason + "_error").Inc()
		return nil, err
	}

	if len(txs) > c.maxPerAddress {
		txs = txs[:c.maxPerAddress]
	}
	if len(txs) == 0 {
		requestsTotal.WithLabelValues("empty").Inc()
	} else {
		requestsTotal.WithLabelValues("ok").Inc()
	}
	return txs, nil
}

// newRequest builds the txlist request. The key is only in plaintext while
// the query string is encoded.
func (c *Client) newRequest(ctx context.Context, addr txgraph.Address) (*http.Request, error) {
	var rawQuery string
	err := c.key.Use(func(key string) error {
		q := url.Values{}
		q.Set("module", "account")
		q.Set("action", "txlist")
		q.Set("address", addr.String())
		q.Set("startblock", "0")
		q.Set("endblock", "99999999")
		q.Set("page", "1")
		q.Set("offset", strconv.Itoa(c.maxPerAddress))
		q.Set("sort", "desc")
		q.Set("apikey", key)
		rawQuery = q.Encode()
		return nil
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+rawQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", stripURL(err))
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// decodeEnvelope turns a response body into transactions. The returned
// FetchError has no Address set.
func decodeEnvelope(body []byte) ([]txgraph.Transaction, error) {
	var env envelope
	if err := sonnet.Unmarshal(body, &env); err != nil {
		return nil, &FetchError{Reason: "decode", Err: err}
	}

	if env.Status == "0" && env.Message == noTransactions {
		return []txgraph.Transaction{}, nil
	}

	switch result := env.Result.(type) {
	case string:
		return nil, &FetchError{Reason: "api", Err: fmt.Errorf("%s: %s", env.Message, result)}
	case []any:
		if env.Status != "1" {
			return nil, &FetchError{Reason: "api", Err: fmt.Errorf("status %q: %s", env.Status, env.Message)}
		}
		raw, err := sonnet.Marshal(result)
		if err != nil {
			return nil, &FetchError{Reason: "decode", Err: err}
		}
		var txs []txgraph.Transaction
		if err := sonnet.Unmarshal(raw, &txs); err != nil {
			return nil, &FetchError{Reason: "decode", Err: err}
		}
		return txs, nil
	default:
		return nil, &FetchError{Reason: "decode", Err: fmt.Errorf("unexpected result type %T", env.Result)}
	}
}

// stripURL drops the request URL from transport errors because it carries
// the API key.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}
