package usage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/wisdom-oss/service-water-usage-history/pkg/logger"
	"github.com/wisdom-oss/service-water-usage-history/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
)

type Service interface {
	Usages(ctx context.Context, page Page) ([]Record, error)
	// ConsumerUsages returns ErrUnknownConsumer when no consumer with the id
	// exists, an existing consumer without usages yields an empty list.
	ConsumerUsages(ctx context.Context, consumerID uuid.UUID, page Page) ([]Record, error)
	MunicipalUsages(ctx context.Context, ars string, page Page) ([]Record, error)
	TypedUsages(ctx context.Context, usageTypeID uuid.UUID, page Page) ([]Record, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Usages(ctx context.Context, page Page) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "domain.usage.Usages")
	defer span.End()

	span.SetAttributes(
		attribute.Int("page.size", page.Size),
		attribute.Int("page.number", page.Number),
	)

	records, err := s.repo.List(ctx, page)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list usages: %w", err)
	}
	return records, nil
}

func (s *service) ConsumerUsages(ctx context.Context, consumerID uuid.UUID, page Page) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "domain.usage.ConsumerUsages")
	defer span.End()

	span.SetAttributes(attribute.String("consumer.id", consumerID.String()))

	exists, err := s.repo.ConsumerExists(ctx, consumerID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to look up consumer: %w", err)
	}
	if !exists {
		logger.DebugContext(ctx, "consumer not found", slog.String("consumer_id", consumerID.String()))
		return nil, ErrUnknownConsumer
	}

	records, err := s.repo.ListByConsumer(ctx, consumerID, page)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list consumer usages: %w", err)
	}
	return records, nil
}

func (s *service) MunicipalUsages(ctx context.Context, ars string, page Page) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "domain.usage.MunicipalUsages")
	defer span.End()

	span.SetAttributes(attribute.String("municipality.ars", ars))

	records, err := s.repo.ListByMunicipality(ctx, ars, page)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list municipal usages: %w", err)
	}
	return records, nil
}

func (s *service) TypedUsages(ctx context.Context, usageTypeID uuid.UUID, page Page) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "domain.usage.TypedUsages")
	defer span.End()

	span.SetAttributes(attribute.String("usage_type.id", usageTypeID.String()))

	records, err := s.repo.ListByUsageType(ctx, usageTypeID, page)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list typed usages: %w", err)
	}
	return records, nil
}
