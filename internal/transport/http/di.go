package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	authzapp "github.com/wisdom-oss/service-water-usage-history/internal/app/authz"
	usageapp "github.com/wisdom-oss/service-water-usage-history/internal/app/usage"
	"github.com/wisdom-oss/service-water-usage-history/internal/config"
	authzdomain "github.com/wisdom-oss/service-water-usage-history/internal/domain/authz"
	usagedomain "github.com/wisdom-oss/service-water-usage-history/internal/domain/usage"
	"github.com/wisdom-oss/service-water-usage-history/internal/infra/broker"
	"github.com/wisdom-oss/service-water-usage-history/internal/infra/kong"
	"github.com/wisdom-oss/service-water-usage-history/internal/infra/postgres"
	"github.com/wisdom-oss/service-water-usage-history/pkg/logger"
	"github.com/wisdom-oss/service-water-usage-history/pkg/otel"
	"github.com/wisdom-oss/service-water-usage-history/pkg/tracer"
)

type Server struct {
	httpServer *http.Server
	closers    []func() error
}

const (
	idleTimeoutMultiplier = 2
	serviceName           = "water-usage-history"
)

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// NewServer builds every dependency from cfg. Resources opened before a
// failure are released again.
func NewServer(ctx context.Context, cfg *config.Config) (srv *Server, err error) {
	logger.Init(logger.Options{
		Level:     cfg.Observability.LogLevel,
		Format:    cfg.Observability.Format,
		AddSource: cfg.Observability.LogSource,
		Service:   serviceName,
	})

	otelCfg := otel.Config{
		ServiceName:        serviceName,
		EndpointURL:        cfg.Observability.TracingEndpointURL,
		Enabled:            cfg.Observability.TraceEnabled,
		SampleRatio:        1.0,
		Insecure:           true,
		ResourceAttributes: make(map[string]string),
	}
	if err := tracer.InitTracer(serviceName, otelCfg); err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	srv = &Server{}
	defer func() {
		if err != nil {
			_ = srv.close()
		}
	}()

	db, err := postgres.Open(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	srv.closers = append(srv.closers, db.Close)

	repo := postgres.NewRepository(db, cfg.Database.AuditSchema)
	queries := usageapp.NewQueryService(usagedomain.NewService(repo))
	checks := map[string]Pinger{"database": repo}

	var guard gin.HandlerFunc
	if cfg.Auth.Disabled {
		logger.WarnContext(ctx, "authorization disabled, all usage routes are public")
	} else {
		redisClient, err := broker.NewRedisClient(cfg.Redis.URL, cfg.Redis.PoolSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		srv.closers = append(srv.closers, redisClient.Close)

		transport, err := broker.NewRedisTransport(ctx, redisClient, cfg.Auth.ReplyChannelPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to start broker transport: %w", err)
		}
		// closed before the client it subscribes through
		srv.closers = append(srv.closers, transport.Close)
		checks["redis"] = redisPinger{client: redisClient}

		authzDomainService := authzdomain.NewService(transport, cfg.Auth.Destination)
		appService := authzapp.NewService(authzDomainService, cfg.Auth.RequiredScope, cfg.Auth.IntrospectionTimeout)
		guard = RequireScope(appService)
	}

	if cfg.Gateway.Enabled {
		if err := registerWithGateway(ctx, cfg); err != nil {
			return nil, err
		}
	}

	handler := NewHandler(queries, cfg.Pagination.DefaultSize, cfg.Pagination.MaxSize, checks)
	router := NewRouter(handler, cfg, guard, repo)

	srv.httpServer = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout * idleTimeoutMultiplier,
	}

	return srv, nil
}

func registerWithGateway(ctx context.Context, cfg *config.Config) error {
	address, err := kong.AdvertiseAddress(cfg.Gateway.AdvertiseAddress, cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to determine advertise address: %w", err)
	}

	err = kong.NewClient(cfg.Gateway.AdminURL).Register(ctx, kong.Registration{
		Name:      cfg.Gateway.ServiceName,
		RoutePath: cfg.Gateway.RoutePath,
		Address:   address,
	})
	if err != nil {
		return fmt.Errorf("failed to register with api gateway: %w", err)
	}
	return nil
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests, waits for in-flight ones and then
// releases the broker and database connections.
func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Join(s.httpServer.Shutdown(ctx), s.close())
}

func (s *Server) close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}
