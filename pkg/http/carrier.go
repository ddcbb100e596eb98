package http

import (
	"context"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// restyCarrier exposes a resty request's headers to the otel propagator.
type restyCarrier struct {
	request *resty.Request
}

var _ propagation.TextMapCarrier = (*restyCarrier)(nil)

func (c *restyCarrier) Get(key string) string {
	return c.request.Header.Get(key)
}

func (c *restyCarrier) Set(key, value string) {
	c.request.SetHeader(key, value)
}

func (c *restyCarrier) Keys() []string {
	keys := make([]string, 0, len(c.request.Header))
	for k := range c.request.Header {
		keys = append(keys, k)
	}
	return keys
}

func injectTracingHeaders(ctx context.Context, request *resty.Request) {
	otel.GetTextMapPropagator().Inject(ctx, &restyCarrier{request: request})
}
