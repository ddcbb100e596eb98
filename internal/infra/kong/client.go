// Package kong registers the service instance with a Kong admin API.
package kong

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"

	"github.com/go-resty/resty/v2"
	httpclient "github.com/wisdom-oss/service-water-usage-history/pkg/http"
	"github.com/wisdom-oss/service-water-usage-history/pkg/logger"
	"github.com/wisdom-oss/service-water-usage-history/pkg/tracer"
)

var ErrUnexpectedStatus = errors.New("unexpected response from gateway")

type Registration struct {
	// Name is used to derive the upstream_<name> and service_<name> objects.
	Name      string
	RoutePath string
	// Address is the host:port the gateway forwards requests to.
	Address string
}

type Client struct {
	http *httpclient.Client
}

func NewClient(adminURL string, opts ...httpclient.ClientOption) *Client {
	return &Client{http: httpclient.NewClient(adminURL, opts...)}
}

// Register makes sure the upstream, this instance as target, the service
// and its route exist. Every step is idempotent, existing objects are reused.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	ctx, span := tracer.Start(ctx, "infra.kong.Register")
	defer span.End()

	upstream, err := c.ensureUpstream(ctx, "upstream_"+reg.Name)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if err := c.ensureTarget(ctx, upstream, reg.Address); err != nil {
		span.RecordError(err)
		return err
	}

	service, err := c.ensureService(ctx, "service_"+reg.Name, upstream.Name)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if err := c.ensureRoute(ctx, service, reg.RoutePath); err != nil {
		span.RecordError(err)
		return err
	}

	logger.InfoContext(ctx, "registered with api gateway",
		slog.String("upstream", upstream.Name),
		slog.String("service", service.Name),
		slog.String("target", reg.Address),
		slog.String("route", reg.RoutePath),
	)
	return nil
}

func (c *Client) ensureUpstream(ctx context.Context, name string) (*Upstream, error) {
	var upstream Upstream
	resp, err := c.http.Get(ctx, "/upstreams/{name}",
		httpclient.WithPathParam("name", name),
		httpclient.WithResult(&upstream),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to look up upstream: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return &upstream, nil
	case http.StatusNotFound:
	default:
		return nil, statusError("look up upstream", resp)
	}

	resp, err = c.http.Post(ctx, "/upstreams",
		httpclient.WithBody(Upstream{Name: name}),
		httpclient.WithResult(&upstream),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream: %w", err)
	}
	if resp.StatusCode() != http.StatusCreated {
		return nil, statusError("create upstream", resp)
	}
	return &upstream, nil
}

func (c *Client) ensureTarget(ctx context.Context, upstream *Upstream, address string) error {
	var targets list[Target]
	resp, err := c.http.Get(ctx, "/upstreams/{id}/targets",
		httpclient.WithPathParam("id", upstream.ID),
		httpclient.WithResult(&targets),
	)
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return statusError("list targets", resp)
	}

	if slices.ContainsFunc(targets.Data, func(t Target) bool { return t.Target == address }) {
		return nil
	}

	resp, err = c.http.Post(ctx, "/upstreams/{id}/targets",
		httpclient.WithPathParam("id", upstream.ID),
		httpclient.WithBody(Target{Target: address}),
	)
	if err != nil {
		return fmt.Errorf("failed to add target: %w", err)
	}
	if resp.StatusCode() != http.StatusCreated {
		return statusError("add target", resp)
	}
	return nil
}

func (c *Client) ensureService(ctx context.Context, name, host string) (*Service, error) {
	var service Service
	resp, err := c.http.Get(ctx, "/services/{name}",
		httpclient.WithPathParam("name", name),
		httpclient.WithResult(&service),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to look up service: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusNotFound:
		resp, err = c.http.Post(ctx, "/services",
			httpclient.WithBody(Service{Name: name, Host: host}),
			httpclient.WithResult(&service),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create service: %w", err)
		}
		if resp.StatusCode() != http.StatusCreated {
			return nil, statusError("create service", resp)
		}
		return &service, nil
	case http.StatusOK:
	default:
		return nil, statusError("look up service", resp)
	}

	if service.Host == host {
		return &service, nil
	}

	resp, err = c.http.Patch(ctx, "/services/{name}",
		httpclient.WithPathParam("name", name),
		httpclient.WithBody(map[string]string{"host": host}),
		httpclient.WithResult(&service),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update service host: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, statusError("update service host", resp)
	}
	return &service, nil
}

func (c *Client) ensureRoute(ctx context.Context, service *Service, path string) error {
	var routes list[Route]
	resp, err := c.http.Get(ctx, "/services/{id}/routes",
		httpclient.WithPathParam("id", service.ID),
		httpclient.WithResult(&routes),
	)
	if err != nil {
		return fmt.Errorf("failed to list routes: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return statusError("list routes", resp)
	}

	if slices.ContainsFunc(routes.Data, func(r Route) bool { return slices.Contains(r.Paths, path) }) {
		return nil
	}

	resp, err = c.http.Post(ctx, "/services/{id}/routes",
		httpclient.WithPathParam("id", service.ID),
		httpclient.WithBody(Route{Paths: []string{path}}),
	)
	if err != nil {
		return fmt.Errorf("failed to create route: %w", err)
	}
	if resp.StatusCode() != http.StatusCreated {
		return statusError("create route", resp)
	}
	return nil
}

func statusError(step string, resp *resty.Response) error {
	return fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, step, resp.StatusCode())
}

// LocalIP returns the first non-loopback IPv4 address of this host.
func LocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", fmt.Errorf("failed to read interface addresses: %w", err)
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}
	return "", errors.New("no non-loopback IPv4 address found")
}

// AdvertiseAddress returns configured when set, otherwise the local IP with
// the port of listenAddr.
func AdvertiseAddress(configured, listenAddr string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	_, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", listenAddr, err)
	}
	ip, err := LocalIP()
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(ip, port), nil
}
