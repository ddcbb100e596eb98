package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wisdom-oss/service-water-usage-history/internal/infra/introspection"
	"github.com/wisdom-oss/service-water-usage-history/pkg/logger"
	"github.com/wisdom-oss/service-water-usage-history/pkg/metrics"
	"github.com/wisdom-oss/service-water-usage-history/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultDeadline applies when Authorize is called without a positive
// deadline.
const DefaultDeadline = 10 * time.Second

// Transport sends a payload to a destination and returns the correlated
// reply. Implementations must return ctx.Err() once ctx is done and must
// not block unrelated concurrent calls.
type Transport interface {
	Call(ctx context.Context, destination string, payload []byte) ([]byte, error)
}

type Service interface {
	// Authorize introspects credential against requiredScope. Denials are
	// returned as a Decision; an error means no decision could be made.
	Authorize(
		ctx context.Context,
		credential string,
		requiredScope string,
		deadline time.Duration,
	) (*Decision, error)
}

type service struct {
	transport   Transport
	destination string
}

func NewService(transport Transport, destination string) Service {
	return &service{
		transport:   transport,
		destination: destination,
	}
}

func (s *service) Authorize(
	ctx context.Context,
	credential string,
	requiredScope string,
	deadline time.Duration,
) (*Decision, error) {
	ctx, span := tracer.Start(ctx, "domain.authz.Authorize")
	defer span.End()

	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, ErrMissingCredential
	}

	payload, err := introspection.Encode(introspection.NewRequest(credential, requiredScope))
	if err != nil {
		return nil, fmt.Errorf("failed to encode introspection request: %w", err)
	}

	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	callCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := time.Now()
	reply, err := s.transport.Call(callCtx, s.destination, payload)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			metrics.ObserveIntrospection(metrics.OutcomeTimeout, "", elapsed)
			logger.WarnContext(ctx, "token introspection timed out",
				slog.Duration("deadline", deadline),
			)
			return nil, ErrIntrospectionTimeout.wrap(err)
		case errors.Is(err, context.Canceled):
			metrics.ObserveIntrospection(metrics.OutcomeError, "", elapsed)
			return nil, fmt.Errorf("token introspection aborted: %w", err)
		default:
			metrics.ObserveIntrospection(metrics.OutcomeError, "", elapsed)
			logger.ErrorContext(ctx, "token introspection failed", logger.Err(err))
			return nil, ErrIntrospectionUnavailable.wrap(err)
		}
	}

	decision := s.decide(ctx, reply)

	if decision.Allow {
		span.SetAttributes(attribute.Bool("authz.allowed", true))
		metrics.ObserveIntrospection(metrics.OutcomeAuthorized, "", elapsed)
	} else {
		span.SetAttributes(
			attribute.Bool("authz.allowed", false),
			attribute.String("authz.reason", decision.Reason.String()),
		)
		metrics.ObserveIntrospection(metrics.OutcomeDenied, decision.Reason.String(), elapsed)
	}

	return decision, nil
}

// decide never allows a reply it cannot read.
func (s *service) decide(ctx context.Context, reply []byte) *Decision {
	resp, err := introspection.Decode(reply)
	if err != nil {
		logger.WarnContext(ctx, "unreadable introspection response, denying", logger.Err(err))
		return Denied(ReasonUnspecifiedRejection)
	}

	if !*resp.Active {
		return Denied(reasonFromWire(resp.Reason))
	}

	var identity *UserIdentity
	if resp.User != nil {
		identity = &UserIdentity{
			ID:        resp.User.ID,
			FirstName: resp.User.FirstName,
			LastName:  resp.User.LastName,
			Username:  resp.User.Username,
		}
	}
	return Authorized(identity, []string(resp.Scope))
}

// reasonFromWire maps the wire code one to one. EXPIRED_TOKEN and
// USAGE_BEFORE_CREATION stay distinct even though the authorization service
// has been seen to report both conditions under either code.
func reasonFromWire(reason *string) DenialReason {
	if reason == nil {
		return ReasonUnspecifiedRejection
	}
	switch *reason {
	case introspection.ReasonInvalidToken:
		return ReasonInvalidToken
	case introspection.ReasonExpired:
		return ReasonExpiredToken
	case introspection.ReasonUsedTooEarly:
		return ReasonUsedBeforeValidity
	case introspection.ReasonNoAssociatedUser:
		return ReasonNoAssociatedUser
	case introspection.ReasonUserDisabled:
		return ReasonUserDisabled
	case introspection.ReasonMissingPrivileges:
		return ReasonInsufficientScope
	default:
		return ReasonUnspecifiedRejection
	}
}
