package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/wisdom-oss/service-water-usage-history/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultRetry   = 2
)

// Client is a traced JSON client bound to one base URL.
type Client struct {
	rc *resty.Client
}

type ClientOption func(*resty.Client)

func WithTimeout(d time.Duration) ClientOption {
	return func(c *resty.Client) {
		if d > 0 {
			c.SetTimeout(d)
		}
	}
}

func WithRetryCount(n int) ClientOption {
	return func(c *resty.Client) {
		c.SetRetryCount(n)
	}
}

// WithTransport replaces the underlying round tripper, mostly for tests.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *resty.Client) {
		c.SetTransport(rt)
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(DefaultTimeout).
		SetRetryCount(DefaultRetry).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	for _, opt := range opts {
		opt(rc)
	}

	return &Client{rc: rc}
}

type RequestOption func(*resty.Request)

func WithBody(body any) RequestOption {
	return func(r *resty.Request) {
		r.SetBody(body)
	}
}

func WithResult(result any) RequestOption {
	return func(r *resty.Request) {
		if result != nil {
			r.SetResult(result)
		}
	}
}

func WithHeader(key, value string) RequestOption {
	return func(r *resty.Request) {
		r.SetHeader(key, value)
	}
}

func WithPathParam(key, value string) RequestOption {
	return func(r *resty.Request) {
		r.SetPathParam(key, value)
	}
}

func (c *Client) Request(ctx context.Context, method, path string, opts ...RequestOption) (*resty.Response, error) {
	ctx, span := tracer.Start(ctx, "http.client."+method, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.url", c.rc.BaseURL+path),
	))
	defer span.End()

	request := c.rc.R().SetContext(ctx)
	for _, opt := range opts {
		opt(request)
	}
	injectTracingHeaders(ctx, request)

	resp, err := request.Execute(method, path)

	recordSpan(span, resp, err)
	return resp, err
}

func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*resty.Response, error) {
	return c.Request(ctx, http.MethodGet, path, opts...)
}

func (c *Client) Post(ctx context.Context, path string, opts ...RequestOption) (*resty.Response, error) {
	return c.Request(ctx, http.MethodPost, path, opts...)
}

func (c *Client) Patch(ctx context.Context, path string, opts ...RequestOption) (*resty.Response, error) {
	return c.Request(ctx, http.MethodPatch, path, opts...)
}

func recordSpan(span trace.Span, resp *resty.Response, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	if resp == nil {
		return
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	if resp.IsError() {
		span.SetStatus(codes.Error, resp.Status())
		return
	}
	span.SetStatus(codes.Ok, "")
}
