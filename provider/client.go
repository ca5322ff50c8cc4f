package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"runtime/debug"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/http2"

	"github.com/placeloop/go-common/logger"
	"github.com/placeloop/go-common/resilience"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

const (
	headerRequestID = "X-Request-Id"
	headerCost      = "X-Request-Cost"
)

// Metered cost per operation in provider billing units. The X-Request-Cost
// response header overrides these when present.
const (
	costPlaceByID      = 1
	costSearchViewport = 3
)

// Client is an HTTP client for the upstream place-data provider. Every call
// retries transient failures with exponential backoff and feeds a circuit
// breaker; while the breaker is open, calls fail fast with
// ErrUpstreamUnavailable.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     logger.Logger
	tracer  trace.Tracer
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
	cost    atomic.Int64
}

type Option func(*Client)

// WithHTTPClient replaces the default http2-enabled client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithLogger sets the logger. Defaults to a console logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithTracer sets the tracer used for per-call spans. Defaults to the global
// tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) { c.tracer = tracer }
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithRetry replaces the default backoff schedule (150ms doubling, 4 retries).
// The retryable-error classification is fixed: 5xx, 429 and connection resets
// retry, everything else does not.
func WithRetry(config resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = config }
}

// New creates a provider client for the given base URL and API key.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		retry:   defaultRetry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.NewConsoleLogger()
	}
	c.log = c.log.With(map[string]interface{}{"component": "provider"})
	if c.client == nil {
		c.client = newHTTPClient(c.log)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer("provider")
	}
	if c.breaker == nil {
		c.breaker = resilience.NewBreaker(resilience.DefaultBreakerConfig(), resilience.WithBreakerLogger(c.log))
	}
	return c
}

func defaultRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxRetries:        4,
		InitialBackoff:    150 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

func newHTTPClient(log logger.Logger) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		log.Warn("http2 not available for provider transport: %s", err)
	}
	return &http.Client{
		Transport: transport,
		Timeout:   15 * time.Second,
	}
}

func UserAgent() string {
	gitSHA := Commit
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				gitSHA = setting.Value
			}
		}
	}
	return "PlaceLoop Provider Client/" + Version + " (" + gitSHA + ")"
}

// Cost returns the total metered units this client has spent since creation.
func (c *Client) Cost() int64 {
	return c.cost.Load()
}

// PlaceByID fetches a single place record.
func (c *Client) PlaceByID(ctx context.Context, id string) (*Place, error) {
	ctx, span := c.tracer.Start(ctx, "provider.place_by_id",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("place.id", id)))
	defer span.End()

	var place Place
	res, err := c.call(ctx, "place_by_id", "/v1/places/"+url.PathEscape(id), nil, costPlaceByID, &place)
	span.SetAttributes(
		attribute.Int("provider.cost", res.cost),
		attribute.Int("http.status_code", res.status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &place, nil
}

// SearchViewport fetches the places visible in the query's viewport.
func (c *Client) SearchViewport(ctx context.Context, q Query) ([]Place, error) {
	ctx, span := c.tracer.Start(ctx, "provider.search_viewport",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("query.signature", q.Signature())))
	defer span.End()

	var out searchResponse
	res, err := c.call(ctx, "search_viewport", "/v1/places/search", q.values(), costSearchViewport, &out)
	span.SetAttributes(
		attribute.Int("provider.cost", res.cost),
		attribute.Int("http.status_code", res.status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out.Places, nil
}

type searchResponse struct {
	Places []Place `json:"places"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type callResult struct {
	status int
	cost   int
}

func (c *Client) call(ctx context.Context, op, endpoint string, query url.Values, opCost int, response any) (callResult, error) {
	res := callResult{cost: opCost}
	requestID := uuid.New().String()

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return res, newError(c.baseURL, http.MethodGet, 0, "", requestID, fmt.Errorf("error parsing base url: %w", err))
	}
	u.Path = path.Join(u.Path, endpoint)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	log := c.log.With(map[string]interface{}{"op": op, "requestId": requestID})
	log.Trace("sending request: GET %s", u.String())

	retryCfg := c.retry
	retryCfg.RetryableErrors = shouldRetry
	attempts := 0
	err = resilience.Retry(ctx, retryCfg, func() error {
		attempts++
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.roundTrip(ctx, log, u.String(), requestID, &res, response)
		})
	})
	if err != nil {
		return res, translate(u.String(), requestID, err)
	}

	c.cost.Add(int64(res.cost))
	log.Debug("request complete: status=%d cost=%d attempts=%d", res.status, res.cost, attempts)
	return res, nil
}

func (c *Client) roundTrip(ctx context.Context, log logger.Logger, urlStr, requestID string, res *callResult, response any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return newError(urlStr, http.MethodGet, 0, "", requestID, fmt.Errorf("error creating request: %w", err))
	}
	req.Header.Set("User-Agent", UserAgent())
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, requestID)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return newError(urlStr, http.MethodGet, 0, "", requestID, fmt.Errorf("error sending request: %w", err))
	}
	defer resp.Body.Close()

	res.status = resp.StatusCode
	if hdr := resp.Header.Get(headerCost); hdr != "" {
		if v, err := strconv.Atoi(hdr); err == nil && v >= 0 {
			res.cost = v
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return newError(urlStr, http.MethodGet, resp.StatusCode, "", requestID, fmt.Errorf("error reading response body: %w", err))
	}

	log.Trace("response status: %s", resp.Status)

	if resp.StatusCode > 299 {
		msg := errorMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("request failed with status (%s)", resp.Status)
		}
		return newError(urlStr, http.MethodGet, resp.StatusCode, preview(body), requestID, errors.New(msg))
	}

	if response != nil {
		if err := json.Unmarshal(body, response); err != nil {
			return newError(urlStr, http.MethodGet, resp.StatusCode, preview(body), requestID, fmt.Errorf("error decoding response: %w", err))
		}
	}
	return nil
}

// shouldRetry classifies provider errors: 5xx, 429 and connection-level
// failures retry; 4xx, decode errors, open circuits and dead contexts do not.
func shouldRetry(err error) bool {
	if !resilience.DefaultRetryableErrors(err) {
		return false
	}
	var pe *Error
	if errors.As(err, &pe) {
		if pe.Status > 0 {
			return pe.Status == http.StatusTooManyRequests || pe.Status >= http.StatusInternalServerError
		}
		if pe.Err != nil {
			err = pe.Err
		}
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(err.Error(), "EOF")
}

func translate(urlStr, requestID string, err error) error {
	switch {
	case errors.Is(err, resilience.ErrBreakerOpen):
		return fmt.Errorf("%w: circuit open", ErrUpstreamUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(urlStr, http.MethodGet, 0, "", requestID, fmt.Errorf("%w: %v", ErrTimeout, err))
	}
	return err
}

func errorMessage(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return ""
	}
	if er.Error.Message == "" {
		return ""
	}
	if er.Error.Code != "" {
		return fmt.Sprintf("%s (%s)", er.Error.Message, er.Error.Code)
	}
	return er.Error.Message
}

// preview truncates a response body for logs and error payloads.
func preview(body []byte) string {
	const maxChars = 200
	s := string(body)
	if len(s) > maxChars {
		return s[:maxChars] + fmt.Sprintf("[truncated, total: %d chars]", len(s))
	}
	return s
}
