// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	apperrors "fridgetrack-sync/internal/common/errors"
	"fridgetrack-sync/internal/common/logger"
	"fridgetrack-sync/internal/common/metrics"
	"fridgetrack-sync/internal/common/observability"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultUploadTimeout = 30 * time.Second

	headerRequestID = "X-Request-ID"
)

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithUploadTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.uploadTimeout = d
		}
	}
}

func WithCredentials(store CredentialStore) Option {
	return func(c *Client) {
		if store != nil {
			c.credentials = store
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithObservability(o *observability.Observability) Option {
	return func(c *Client) {
		c.obs = o
	}
}

// WithHeaders adds default headers sent with every request.
func WithHeaders(h http.Header) Option {
	return func(c *Client) {
		for k, values := range h {
			for _, v := range values {
				c.headers.Add(k, v)
			}
		}
	}
}

// Client is the single HTTP transport of the sync layer. Every failure it
// returns is a *apperrors.StructuredError.
type Client struct {
	baseURL       *url.URL
	httpClient    *http.Client
	headers       http.Header
	credentials   CredentialStore
	logger        logger.Logger
	obs           *observability.Observability
	timeout       time.Duration
	uploadTimeout time.Duration
}

// Request describes one JSON or form-encoded call.
type Request struct {
	Method string
	Path   string
	// Route is the templated path used as a low-cardinality metric label.
	Route  string
	Query  url.Values
	Body   interface{}
	Form   url.Values
	Header http.Header
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("http: base URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("http: invalid base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("http: base URL must be http or https, got %q", baseURL)
	}

	c := &Client{
		baseURL:       parsed,
		httpClient:    &http.Client{},
		headers:       make(http.Header),
		credentials:   NewMemoryCredentials(""),
		logger:        logger.NewNoOpLogger(),
		timeout:       DefaultTimeout,
		uploadTimeout: DefaultUploadTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Credentials exposes the token store so callers can sign in again after a 401.
func (c *Client) Credentials() CredentialStore {
	return c.credentials
}

// BaseURL returns the resolved base address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Do sends req under the ordinary timeout and decodes a 2xx body into out.
// A nil out discards the body.
func (c *Client) Do(ctx context.Context, req *Request, out interface{}) error {
	if req == nil || req.Method == "" {
		return apperrors.NewValidationError("Request is missing a method.")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, contentType, err := encodeBody(req)
	if err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("Could not encode request: %v", err))
	}

	fullURL, err := c.buildURL(req.Path, req.Query)
	if err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("Invalid request path %q.", req.Path))
	}

	ctx, span := c.obs.StartSpan(ctx, req.Method+" "+routeOf(req.Route),
		attribute.String("http.method", req.Method),
		attribute.String("http.route", routeOf(req.Route)),
	)

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		observability.EndSpan(span, 0, err)
		return apperrors.NewValidationError(fmt.Sprintf("Could not build request: %v", err))
	}
	c.decorate(httpReq, req.Header)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	status, err := c.send(ctx, httpReq, routeOf(req.Route), out)
	observability.EndSpan(span, status, err)
	return err
}

// send executes httpReq and normalizes the outcome. It returns the HTTP
// status (0 when no response was received).
func (c *Client) send(ctx context.Context, httpReq *http.Request, route string, out interface{}) (int, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		se := apperrors.Classify(apperrors.Failure{Err: err})
		c.record(ctx, httpReq, route, 0, start, se)
		return 0, se
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		se := apperrors.Classify(apperrors.Failure{Err: err})
		c.record(ctx, httpReq, route, 0, start, se)
		return 0, se
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := apperrors.Classify(apperrors.Failure{Status: resp.StatusCode, Body: data})
		if se.Status == http.StatusUnauthorized {
			c.credentials.Clear()
			c.logger.Warn("credentials cleared after 401", map[string]interface{}{
				"route": route,
			})
		}
		c.record(ctx, httpReq, route, resp.StatusCode, start, se)
		return resp.StatusCode, se
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			se := apperrors.NewDecodeError(resp.StatusCode, err)
			c.record(ctx, httpReq, route, resp.StatusCode, start, se)
			return resp.StatusCode, se
		}
	}

	c.record(ctx, httpReq, route, resp.StatusCode, start, nil)
	return resp.StatusCode, nil
}

func (c *Client) record(ctx context.Context, req *http.Request, route string, status int, start time.Time, err *apperrors.StructuredError) {
	elapsed := time.Since(start)
	metrics.HTTPRequests.WithLabelValues(req.Method, route, fmt.Sprint(status)).Inc()
	c.obs.RecordRequest(ctx, req.Method, route, status, elapsed)

	fields := map[string]interface{}{
		"method":    req.Method,
		"route":     route,
		"status":    status,
		"requestId": req.Header.Get(headerRequestID),
		"elapsedMs": elapsed.Milliseconds(),
	}
	if err != nil {
		fields["kind"] = string(err.Kind)
		fields["message"] = err.Message
		c.logger.Warn("request failed", fields)
		return
	}
	c.logger.Debug("request completed", fields)
}

func (c *Client) decorate(req *http.Request, extra http.Header) {
	for k, values := range c.headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	for k, values := range extra {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, uuid.NewString())
	if token := c.credentials.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) buildURL(path string, q url.Values) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	u := *c.baseURL
	rawPath := strings.TrimRight(u.EscapedPath(), "/") + "/" + strings.TrimLeft(ref.EscapedPath(), "/")
	unescaped, err := url.PathUnescape(rawPath)
	if err != nil {
		return "", err
	}
	u.Path = unescaped
	u.RawPath = rawPath

	query := ref.Query()
	for k, values := range q {
		for _, v := range values {
			query.Add(k, v)
		}
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func encodeBody(req *Request) (io.Reader, string, error) {
	switch {
	case req.Form != nil:
		return strings.NewReader(req.Form.Encode()), "application/x-www-form-urlencoded", nil
	case req.Body != nil:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
	return nil, "", nil
}

func routeOf(route string) string {
	if route == "" {
		return "other"
	}
	return route
}

// ==========================
// Typed helpers
// ==========================

// Call sends req and decodes the response into a T.
func Call[T any](ctx context.Context, c *Client, req *Request) (T, error) {
	var out T
	if err := c.Do(ctx, req, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func Get[T any](ctx context.Context, c *Client, path, route string, query url.Values) (T, error) {
	return Call[T](ctx, c, &Request{Method: http.MethodGet, Path: path, Route: route, Query: query})
}

func Post[T any](ctx context.Context, c *Client, path, route string, body interface{}) (T, error) {
	return Call[T](ctx, c, &Request{Method: http.MethodPost, Path: path, Route: route, Body: body})
}

func Put[T any](ctx context.Context, c *Client, path, route string, body interface{}) (T, error) {
	return Call[T](ctx, c, &Request{Method: http.MethodPut, Path: path, Route: route, Body: body})
}

func Patch[T any](ctx context.Context, c *Client, path, route string, body interface{}) (T, error) {
	return Call[T](ctx, c, &Request{Method: http.MethodPatch, Path: path, Route: route, Body: body})
}

func Delete[T any](ctx context.Context, c *Client, path, route string) (T, error) {
	return Call[T](ctx, c, &Request{Method: http.MethodDelete, Path: path, Route: route})
}
