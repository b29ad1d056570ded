// Package rest is the HTTP collaborator of the sync engine: authenticated
// requests against the Accord REST API for message pagination, bootstrap
// snapshots, acknowledgments and typing indicators.
//
// The engine does not retry requests beyond what the caller's http.Client
// provides; failures surface as *APIError for non-2xx responses or as the
// transport error otherwise.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultBaseURL is the production REST endpoint.
const DefaultBaseURL = "https://api.accord.chat"

const tracerName = "accord/rest"

// Config configures a REST client.
type Config struct {
	// BaseURL is the API root. Default: DefaultBaseURL.
	BaseURL string

	// Token is the bearer credential sent with every request.
	Token string

	// HTTPClient is the underlying client. Default: 30s-timeout client.
	HTTPClient *http.Client

	// Logger receives request diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// Client issues authenticated requests against the Accord REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New returns a Client, filling zero config fields with defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    cfg.HTTPClient,
		logger:  cfg.Logger.With("component", "rest"),
		tracer:  otel.Tracer(tracerName),
	}
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rest: %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// do performs one request. body (if non-nil) is JSON encoded; out (if
// non-nil) receives the JSON-decoded response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, span := c.tracer.Start(ctx, "rest.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", path),
		))
	defer span.End()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("rest: encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("rest: build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("rest: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: string(b)}
		span.SetStatus(codes.Error, apiErr.Error())
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("rest: decode %s %s response: %w", method, path, err)
		}
	}

	c.logger.Debug("request completed", "method", method, "path", path, "status", resp.StatusCode)
	return nil
}
