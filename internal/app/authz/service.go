package authz

import (
	"context"
	"time"

	"github.com/wisdom-oss/service-water-usage-history/internal/domain/authz"
	"github.com/wisdom-oss/service-water-usage-history/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
)

type Service interface {
	// Check authorizes credential against the configured scope.
	Check(ctx context.Context, credential string) (*authz.Decision, error)
}

type service struct {
	domainService authz.Service
	requiredScope string
	deadline      time.Duration
}

func NewService(domainService authz.Service, requiredScope string, deadline time.Duration) Service {
	return &service{
		domainService: domainService,
		requiredScope: requiredScope,
		deadline:      deadline,
	}
}

func (s *service) Check(ctx context.Context, credential string) (*authz.Decision, error) {
	ctx, span := tracer.Start(ctx, "app.authz.Check")
	defer span.End()

	span.SetAttributes(
		attribute.String("credential.prefix", credentialPrefix(credential)),
		attribute.String("authz.required_scope", s.requiredScope),
	)

	decision, err := s.domainService.Authorize(ctx, credential, s.requiredScope, s.deadline)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if decision.Allow {
		span.SetAttributes(attribute.Bool("authz.allowed", true))
	} else {
		span.SetAttributes(
			attribute.Bool("authz.allowed", false),
			attribute.String("authz.reason", decision.Reason.String()),
		)
	}

	return decision, nil
}

const credentialPrefixLength = 8

func credentialPrefix(credential string) string {
	if len(credential) > credentialPrefixLength {
		return credential[:credentialPrefixLength] + "..."
	}
	return "***"
}
