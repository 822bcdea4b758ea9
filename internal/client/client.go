package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rocket-approval/mortgage-agent/internal/config"
	"github.com/rocket-approval/mortgage-agent/internal/logger"
)

// SessionCookie is the cookie the application API uses to bind calls to an application.
const SessionCookie = "sessionToken"

// APIClient handles all HTTP communication with the application API
type APIClient struct {
	config     *config.Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option customises an APIClient.
type Option func(*APIClient)

// WithHTTPClient swaps the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *APIClient) {
		c.httpClient = hc
	}
}

// Call describes one request against the API.
type Call struct {
	Method       string
	Endpoint     string
	Body         interface{}
	SessionToken string
	// Idempotent calls are retried on any transient failure. Other calls
	// are retried only when the server says it did not take the request.
	Idempotent bool
}

// Reply is a successful response.
type Reply struct {
	StatusCode   int
	SessionToken string
	Body         json.RawMessage
}

// Decode unmarshals the reply body into v.
func (r *Reply) Decode(v interface{}) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("error decoding response: empty body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

// NewAPIClient creates a new API client with the given configuration
func NewAPIClient(cfg *config.Config, opts ...Option) *APIClient {
	c := &APIClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildURL constructs a full URL for the given endpoint
func (c *APIClient) BuildURL(endpoint string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + endpoint
}

// Get makes a GET request to the specified endpoint
func (c *APIClient) Get(ctx context.Context, endpoint, sessionToken string, result interface{}) error {
	reply, err := c.Do(ctx, Call{Method: http.MethodGet, Endpoint: endpoint, SessionToken: sessionToken, Idempotent: true})
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	return reply.Decode(result)
}

// Post makes a POST request to the specified endpoint
func (c *APIClient) Post(ctx context.Context, endpoint, sessionToken string, body, result interface{}) error {
	reply, err := c.Do(ctx, Call{Method: http.MethodPost, Endpoint: endpoint, Body: body, SessionToken: sessionToken})
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	return reply.Decode(result)
}

// Do sends the call, retrying transient failures with a linear backoff.
func (c *APIClient) Do(ctx context.Context, call Call) (*Reply, error) {
	var payload []byte
	if call.Body != nil {
		var err error
		payload, err = json.Marshal(call.Body)
		if err != nil {
			return nil, fmt.Errorf("error marshaling request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.config.RetryDelay * time.Duration(attempt)
			logger.Warn("Retrying %s %s (attempt %d/%d) in %v: %v",
				call.Method, call.Endpoint, attempt, c.config.MaxRetries, delay, lastErr)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		reply, err := c.send(ctx, call, payload)
		if err == nil {
			return reply, nil
		}
		lastErr = err

		if !retryable(ctx, call, err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("giving up after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func retryable(ctx context.Context, call Call, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if !call.Idempotent {
			return httpErr.Rejected()
		}
		return httpErr.Retryable()
	}
	// transport errors, the server may have acted on a non-idempotent call
	return call.Idempotent
}

func (c *APIClient) send(ctx context.Context, call Call, payload []byte) (*Reply, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	url := c.BuildURL(call.Endpoint)
	start := time.Now()
	logger.Debug("Starting %s request to %s", call.Method, url)

	var requestBody io.Reader
	if payload != nil {
		requestBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, url, requestBody)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if call.SessionToken != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: call.SessionToken})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("Request to %s failed after %v: %v", url, time.Since(start), err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	logger.Debug("Request to %s completed in %v with status %d", url, time.Since(start), resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Error("%s: HTTP error %d: %s", url, resp.StatusCode, string(body))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	reply := &Reply{
		StatusCode:   resp.StatusCode,
		SessionToken: call.SessionToken,
		Body:         body,
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == SessionCookie && cookie.Value != "" {
			reply.SessionToken = cookie.Value
		}
	}

	return reply, nil
}

// Ping checks if the API host answers at all
func (c *APIClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.BuildURL("/"), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("ping failed with status %d", resp.StatusCode)
	}

	return nil
}

// WaitForAPIReady pings the API once a second until it answers or attempts run out
func (c *APIClient) WaitForAPIReady(ctx context.Context, attempts int) bool {
	logger.Info("Checking API readiness...")

	for attempt := 1; attempt <= attempts; attempt++ {
		logger.Info("Checking API readiness (attempt %d/%d)...", attempt, attempts)

		if err := c.Ping(ctx); err == nil {
			logger.Info("API is ready!")
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Second):
		}
	}

	logger.Error("API failed to become ready after %d attempts", attempts)
	return false
}
