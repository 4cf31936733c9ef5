package geniidata

// Package geniidata is the client for the GeniiData runes holders endpoint
// One call = one page request; the response is classified into an Outcome
// Retrying is the caller's job; the client only holds a request back while its breaker is open

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"dog-holders/internal/infra/log"
	"dog-holders/internal/infra/retry"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL - GeniiData API root
	DefaultBaseURL = "https://api.geniidata.com/api/1"
	// DefaultTokenID - DOG•GO•TO•THE•MOON rune id (block:tx)
	DefaultTokenID = "840000:3"

	// PageSize is fixed by the holders endpoint contract.
	PageSize = 20

	// quotaErrorCode is the application-level "quota exhausted" code in the JSON body
	quotaErrorCode = 1003

	defaultRequestTimeout  = 30 * time.Second
	defaultMaxResponseSize = 10 * 1024 * 1024
	defaultBreakerFailures = 5
	defaultBreakerTimeout  = 30 * time.Second
)

type Options struct {
	BaseURL         string
	TokenID         string
	RequestTimeout  time.Duration
	RateLimit       float64 // requests per second, 0 disables the limiter
	MaxResponseSize int64
	BreakerFailures uint32        // consecutive transport faults before the breaker opens
	BreakerTimeout  time.Duration // how long the breaker stays open before a trial request
	HTTPClient      *http.Client
}

// Client fetches holders pages for a single rune
type Client struct {
	baseURL         string
	tokenID         string
	httpClient      *http.Client
	rateLimiter     *rate.Limiter
	circuitBreaker  *gobreaker.CircuitBreaker
	breakerTimeout  time.Duration
	maxResponseSize int64
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.TokenID == "" {
		opts.TokenID = DefaultTokenID
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.MaxResponseSize <= 0 {
		opts.MaxResponseSize = defaultMaxResponseSize
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = defaultBreakerFailures
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = defaultBreakerTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		}
	}

	var rateLimiter *rate.Limiter
	if opts.RateLimit > 0 {
		rateLimiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	// Only network faults and 5xx reach the breaker as errors; 404/429 are answers, not outages.
	breakerFailures := opts.BreakerFailures
	circuitBreaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeniiDataAPI",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.LogWarn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		baseURL:         opts.BaseURL,
		tokenID:         opts.TokenID,
		httpClient:      httpClient,
		rateLimiter:     rateLimiter,
		circuitBreaker:  circuitBreaker,
		breakerTimeout:  opts.BreakerTimeout,
		maxResponseSize: opts.MaxResponseSize,
	}
}

// HoldersURL builds {base}/runes/{tokenId}/holders?limit=20&offset={offset}.
// The rune id goes in query-escaped so ':' is sent as %3A, which is what the API expects.
func (c *Client) HoldersURL(offset int) string {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(PageSize))
	params.Set("offset", strconv.Itoa(offset))
	return fmt.Sprintf("%s/runes/%s/holders?%s", c.baseURL, url.QueryEscape(c.tokenID), params.Encode())
}

type response struct {
	statusCode int
	body       []byte
}

// Fetch requests the holders page at offset and classifies the result
func (c *Client) Fetch(ctx context.Context, offset int, apiKey string) Outcome {
	requestID := log.GenerateRequestID()
	endpoint := c.HoldersURL(offset)

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			log.LogError("Rate limiter wait failed", zap.Int("offset", offset), zap.Error(err))
			return TransportError(fmt.Errorf("%w: rate limiter wait: %w", ErrTransport, err))
		}
	}

	res, err := c.execute(ctx, offset, requestID, endpoint, apiKey)
	if err != nil {
		var httpErr *retry.HTTPError
		if errors.As(err, &httpErr) {
			return c.classify(offset, endpoint, httpErr.StatusCode, httpErr.Body)
		}
		log.LogError("Holders request failed",
			zap.String("request_id", requestID),
			zap.Int("offset", offset),
			zap.String("url", endpoint),
			zap.Error(err))
		return TransportError(fmt.Errorf("%w: offset %d: %w", ErrTransport, offset, err))
	}

	resp := res.(*response)
	return c.classify(offset, endpoint, resp.statusCode, resp.body)
}

// execute sends the request through the breaker. While the breaker is open the call
// waits for the trial window instead of failing, so every Fetch ends in a real request
// unless ctx is done first.
func (c *Client) execute(ctx context.Context, offset int, requestID, endpoint, apiKey string) (interface{}, error) {
	for {
		res, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doGET(ctx, requestID, endpoint, apiKey)
		})
		if !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
			return res, err
		}

		log.LogWarn("Circuit breaker open, holding request",
			zap.String("request_id", requestID),
			zap.Int("offset", offset),
			zap.Duration("wait", c.breakerTimeout))
		if err := retry.Sleep(ctx, c.breakerTimeout); err != nil {
			return nil, err
		}
	}
}

func (c *Client) doGET(ctx context.Context, requestID, endpoint, apiKey string) (*response, error) {
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	setHeaders(req, apiKey)

	log.LogRequest(requestID, http.MethodGet, endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.LogResponse(requestID, 0, time.Since(startTime).Milliseconds(), zap.String("endpoint", endpoint), zap.Error(err))
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize))
	if err != nil {
		log.LogResponse(requestID, resp.StatusCode, time.Since(startTime).Milliseconds(), zap.String("endpoint", endpoint), zap.Error(err))
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	log.LogResponse(requestID, resp.StatusCode, time.Since(startTime).Milliseconds(), zap.String("endpoint", endpoint))

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Body: body}
	}
	return &response{statusCode: resp.StatusCode, body: body}, nil
}

func setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "dog-holders/1.0")
	if apiKey != "" {
		req.Header.Set("api-key", apiKey)
	}
}

// classify order: 404, quota (429 or code 1003), other non-2xx, undecodable body, success
func (c *Client) classify(offset int, endpoint string, statusCode int, body []byte) Outcome {
	if statusCode == http.StatusNotFound {
		log.LogWarn("Holders page not found (404)",
			zap.Int("offset", offset),
			zap.String("url", endpoint))
		return NotFound(fmt.Errorf("%w: offset %d", ErrNotFound, offset))
	}

	payload, decodeErr := decodeJSON(body)

	if statusCode == http.StatusTooManyRequests || (decodeErr == nil && hasQuotaCode(payload)) {
		log.LogWarn("Quota exceeded",
			zap.Int("offset", offset),
			zap.Int("status_code", statusCode),
			zap.String("url", endpoint))
		outcome := QuotaExceeded(fmt.Errorf("%w: offset %d", ErrQuotaExceeded, offset))
		outcome.StatusCode = statusCode
		return outcome
	}

	if statusCode < 200 || statusCode >= 300 {
		log.LogError("HTTP error for holders page",
			zap.Int("offset", offset),
			zap.Int("status_code", statusCode),
			zap.String("body", string(body)))
		outcome := TransportError(fmt.Errorf("%w: offset %d: %w", ErrTransport, offset, &retry.HTTPError{StatusCode: statusCode, Body: body}))
		outcome.StatusCode = statusCode
		return outcome
	}

	if decodeErr != nil {
		log.LogError("Failed to parse holders response as JSON",
			zap.Int("offset", offset),
			zap.String("body", string(body)),
			zap.Error(decodeErr))
		outcome := TransportError(fmt.Errorf("%w: offset %d: invalid JSON: %w", ErrTransport, offset, decodeErr))
		outcome.StatusCode = statusCode
		return outcome
	}

	outcome := Success(payload)
	outcome.StatusCode = statusCode
	return outcome
}

// decodeJSON decodes a whole body into generic JSON values, keeping numbers as json.Number
func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON value")
	}
	return payload, nil
}

func hasQuotaCode(payload any) bool {
	obj, ok := payload.(map[string]any)
	if !ok {
		return false
	}
	code, ok := obj["code"].(json.Number)
	if !ok {
		return false
	}
	if n, err := code.Int64(); err == nil {
		return n == quotaErrorCode
	}
	f, err := code.Float64()
	return err == nil && f == quotaErrorCode
}
