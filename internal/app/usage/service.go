package usage

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/wisdom-oss/service-water-usage-history/internal/domain/usage"
	"github.com/wisdom-oss/service-water-usage-history/pkg/logger"
	"github.com/wisdom-oss/service-water-usage-history/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
)

type QueryService interface {
	Usages(ctx context.Context, page usage.Page) ([]usage.Record, error)
	ConsumerUsages(ctx context.Context, consumerID uuid.UUID, page usage.Page) ([]usage.Record, error)
	MunicipalUsages(ctx context.Context, ars string, page usage.Page) ([]usage.Record, error)
	TypedUsages(ctx context.Context, usageTypeID uuid.UUID, page usage.Page) ([]usage.Record, error)
}

type queryService struct {
	domainService usage.Service
}

func NewQueryService(domainService usage.Service) QueryService {
	return &queryService{domainService: domainService}
}

func (s *queryService) Usages(ctx context.Context, page usage.Page) ([]usage.Record, error) {
	ctx, span := tracer.Start(ctx, "app.usage.Usages")
	defer span.End()

	records, err := s.domainService.Usages(ctx, page)
	if err != nil {
		span.RecordError(err)
		logger.ErrorContext(ctx, "failed to list usages", logger.Err(err))
		return nil, err
	}

	span.SetAttributes(attribute.Int("usage.count", len(records)))
	logger.DebugContext(ctx, "usages listed",
		slog.Int("page", page.Number),
		slog.Int("page_size", page.Size),
		slog.Int("count", len(records)),
	)
	return records, nil
}

func (s *queryService) ConsumerUsages(ctx context.Context, consumerID uuid.UUID, page usage.Page) ([]usage.Record, error) {
	ctx, span := tracer.Start(ctx, "app.usage.ConsumerUsages")
	defer span.End()

	records, err := s.domainService.ConsumerUsages(ctx, consumerID, page)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("usage.count", len(records)))
	return records, nil
}

func (s *queryService) MunicipalUsages(ctx context.Context, ars string, page usage.Page) ([]usage.Record, error) {
	ctx, span := tracer.Start(ctx, "app.usage.MunicipalUsages")
	defer span.End()

	records, err := s.domainService.MunicipalUsages(ctx, ars, page)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("usage.count", len(records)))
	return records, nil
}

func (s *queryService) TypedUsages(ctx context.Context, usageTypeID uuid.UUID, page usage.Page) ([]usage.Record, error) {
	ctx, span := tracer.Start(ctx, "app.usage.TypedUsages")
	defer span.End()

	records, err := s.domainService.TypedUsages(ctx, usageTypeID, page)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("usage.count", len(records)))
	return records, nil
}
