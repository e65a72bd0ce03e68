// Package remote implements storage.Backend as an HTTP client of a
// server.Server. Transient failures are retried with a fixed wait; once
// retries are exhausted the error wraps errors.ErrConnection, or
// errors.ErrTimeout when the last attempt ran out of time.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/internal/httpclient"
	"github.com/teranos/atomdb/logger"
	"github.com/teranos/atomdb/server"
)

const tracerName = "github.com/teranos/atomdb/storage/remote"

// Defaults applied to zero Config fields.
const (
	DefaultRetryMax  = 3
	DefaultRetryWait = 500 * time.Millisecond
	DefaultTimeout   = 30 * time.Second
)

// Config locates the server and bounds retries.
type Config struct {
	URL       string
	RetryMax  int
	RetryWait time.Duration
	Timeout   time.Duration
}

// Client talks to one server.
type Client struct {
	base   *url.URL
	http   *retryablehttp.Client
	schema atom.Schema
	logger *zap.SugaredLogger
	tracer trace.Tracer
	closed atomic.Bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. A nil logger keeps the client silent.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSchema sets the schema reported by Schema without asking the server.
// Open replaces it with the server's schema.
func WithSchema(s atom.Schema) Option {
	return func(c *Client) { c.schema = s }
}

// New builds a client without contacting the server. Negative retry
// settings fall back to the defaults.
func New(cfg Config, opts ...Option) (*Client, error) {
	base, err := httpclient.ParseBaseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = DefaultRetryMax
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = DefaultRetryWait
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		base:   base,
		schema: atom.DefaultSchema(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop().Sugar()
	}

	hc := retryablehttp.NewClient()
	hc.RetryMax = cfg.RetryMax
	hc.RetryWaitMin = cfg.RetryWait
	hc.RetryWaitMax = cfg.RetryWait
	hc.Backoff = fixedBackoff
	hc.CheckRetry = checkRetry
	hc.HTTPClient = httpclient.New(base, cfg.Timeout)
	hc.Logger = leveledLogger{c.logger}
	hc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			c.logger.Warnw("Retrying remote request",
				logger.FieldMethod, req.Method,
				logger.FieldPath, req.URL.Path,
				logger.FieldAttempt, attempt,
			)
		}
	}
	c.http = hc
	return c, nil
}

// Open builds a client and fetches the server's schema, failing with
// errors.ErrConnection if the server cannot be reached.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	c, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	var resp server.SchemaResponse
	if err := c.call(ctx, "schema", http.MethodGet, "/schema", nil, nil, &resp); err != nil {
		return nil, errors.WithHint(err, "check that `atomdb serve` is running at remote.url")
	}
	c.schema = atom.NewSchema(resp.UnorderedLinkTypes...)
	c.logger.Infow("Connected to remote backend",
		logger.FieldURL, c.base.String(),
		"unordered_link_types", resp.UnorderedLinkTypes,
	)
	return c, nil
}

// Close releases idle connections. Later calls return errors.ErrClosed.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.http.HTTPClient.CloseIdleConnections()
	return nil
}

func fixedBackoff(min, _ time.Duration, _ int, _ *http.Response) time.Duration {
	return min
}

// checkRetry retries connection failures and gateway-style statuses.
// A 500 is a backend error on the server and is returned as is.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && resp.StatusCode == http.StatusInternalServerError {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// transportError classifies a failed round trip. A deadline, whether the
// caller's or the client timeout, matches errors.ErrTimeout; a cancelled
// context is returned as is; anything else matches errors.ErrConnection.
func transportError(ctx context.Context, op, method, path string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			ctxErr = errors.Mark(ctxErr, errors.ErrTimeout)
		}
		return errors.Wrapf(ctxErr, "remote %s", op)
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return errors.Wrapf(errors.ErrTimeout, "remote %s %s: %v", method, path, err)
	}
	return errors.Wrapf(errors.ErrConnection, "remote %s %s: %v", method, path, err)
}

// call issues one request. query may be nil; body is JSON encoded when
// non-nil; out is decoded from a 2xx response when non-nil.
func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, body, out any) (err error) {
	if c.closed.Load() {
		return errors.Wrapf(errors.ErrClosed, "remote %s", op)
	}

	ctx, span := c.tracer.Start(ctx, "remote."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, op)
		}
		span.End()
	}()

	var raw []byte
	if body != nil {
		if raw, err = json.Marshal(body); err != nil {
			return errors.Wrapf(err, "encode %s request", op)
		}
	}

	u := *c.base
	u.Path = c.base.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, u.String(), raw)
	if err != nil {
		return errors.Wrapf(err, "build %s request", op)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := logger.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set(server.RequestIDHeader, requestID)
	span.SetAttributes(attribute.String("request.id", requestID))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(ctx, op, method, path, err)
	}
	defer resp.Body.Close()

	logger.FromContext(ctx, c.logger).Debugw("Remote call",
		logger.FieldOperation, op,
		logger.FieldRequestID, requestID,
		logger.FieldStatus, resp.StatusCode,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= 300 {
		return decodeError(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s response", op)
	}
	return nil
}

// decodeError turns an error body back into a wrapped sentinel.
func decodeError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body server.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
	}
	if sentinel := server.Sentinel(body.Code); sentinel != nil {
		return errors.Wrapf(sentinel, "remote %s: %s", op, body.Error)
	}
	return errors.Newf("remote %s failed with status %d: %s", op, resp.StatusCode, body.Error)
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger.
type leveledLogger struct{ l *zap.SugaredLogger }

func (z leveledLogger) Error(msg string, kv ...interface{}) { z.l.Errorw(msg, kv...) }
func (z leveledLogger) Info(msg string, kv ...interface{})  { z.l.Debugw(msg, kv...) }
func (z leveledLogger) Debug(msg string, kv ...interface{}) { z.l.Debugw(msg, kv...) }
func (z leveledLogger) Warn(msg string, kv ...interface{})  { z.l.Warnw(msg, kv...) }

var _ retryablehttp.LeveledLogger = leveledLogger{}

func (c *Client) String() string { return fmt.Sprintf("remote(%s)", c.base) }
