package http

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
	authzapp "github.com/wisdom-oss/service-water-usage-history/internal/app/authz"
	"github.com/wisdom-oss/service-water-usage-history/internal/domain/authz"
	"github.com/wisdom-oss/service-water-usage-history/pkg/logger"
	"github.com/wisdom-oss/service-water-usage-history/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
)

const (
	ContextKeyIdentity = "authz.identity"
	ContextKeyScopes   = "authz.scopes"
)

// RequireScope lets a request through only when the authorization service
// accepts its bearer token for the configured scope.
func RequireScope(appService authzapp.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "transport.http.RequireScope")
		defer span.End()

		credential := bearerToken(c.GetHeader("Authorization"))

		decision, err := appService.Check(ctx, credential)
		if err != nil {
			span.RecordError(err)
			abortWithError(c, err)
			return
		}

		if !decision.Allow {
			denial := decision.Reason.Err()
			span.SetAttributes(
				attribute.Bool("authz.allowed", false),
				attribute.String("authz.reason", denial.Code),
			)
			logger.WarnContext(ctx, "authorization denied", slog.String("reason", denial.Code))
			abortWithError(c, denial)
			return
		}

		span.SetAttributes(attribute.Bool("authz.allowed", true))
		if decision.Identity != nil {
			c.Set(ContextKeyIdentity, *decision.Identity)
		}
		c.Set(ContextKeyScopes, decision.Scopes)

		c.Next()
	}
}

// Identity returns the user the request was authorized for, if any.
func Identity(c *gin.Context) (authz.UserIdentity, bool) {
	v, ok := c.Get(ContextKeyIdentity)
	if !ok {
		return authz.UserIdentity{}, false
	}
	identity, ok := v.(authz.UserIdentity)
	return identity, ok
}

func bearerToken(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
