package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	usageapp "github.com/wisdom-oss/service-water-usage-history/internal/app/usage"
	"github.com/wisdom-oss/service-water-usage-history/internal/domain/usage"
)

// Pinger is a dependency the health check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	queries         usageapp.QueryService
	defaultPageSize int
	maxPageSize     int
	checks          map[string]Pinger
}

func NewHandler(queries usageapp.QueryService, defaultPageSize, maxPageSize int, checks map[string]Pinger) *Handler {
	return &Handler{
		queries:         queries,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		checks:          checks,
	}
}

func (h *Handler) Usages(c *gin.Context) {
	page, ok := h.page(c)
	if !ok {
		return
	}

	records, err := h.queries.Usages(c.Request.Context(), page)
	if err != nil {
		abortWithError(c, err)
		return
	}

	respond(c, records)
}

func (h *Handler) ConsumerUsages(c *gin.Context) {
	raw := pathParam(c, "consumerID")
	if raw == "" {
		abortWith(c, errEmptyConsumerID)
		return
	}

	consumerID, err := uuid.Parse(raw)
	if err != nil {
		abortWith(c, errInvalidConsumerID)
		return
	}

	page, ok := h.page(c)
	if !ok {
		return
	}

	records, err := h.queries.ConsumerUsages(c.Request.Context(), consumerID, page)
	if err != nil {
		abortWithError(c, err)
		return
	}

	respond(c, records)
}

func (h *Handler) MunicipalUsages(c *gin.Context) {
	ars := pathParam(c, "ars")
	if ars == "" {
		abortWith(c, errEmptyARS)
		return
	}
	if len(ars) != usage.ARSLength {
		abortWith(c, errInvalidARS)
		return
	}

	page, ok := h.page(c)
	if !ok {
		return
	}

	records, err := h.queries.MunicipalUsages(c.Request.Context(), ars, page)
	if err != nil {
		abortWithError(c, err)
		return
	}

	respond(c, records)
}

func (h *Handler) TypedUsages(c *gin.Context) {
	raw := pathParam(c, "usageTypeID")
	if raw == "" {
		abortWith(c, errEmptyUsageTypeID)
		return
	}

	usageTypeID, err := uuid.Parse(raw)
	if err != nil {
		abortWith(c, errInvalidUsageTypeID)
		return
	}

	page, ok := h.page(c)
	if !ok {
		return
	}

	records, err := h.queries.TypedUsages(c.Request.Context(), usageTypeID, page)
	if err != nil {
		abortWithError(c, err)
		return
	}

	respond(c, records)
}

// Healthz pings every dependency and reports 503 on the first failure.
func (h *Handler) Healthz(c *gin.Context) {
	for name, check := range h.checks {
		if err := check.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "dependency": name})
			return
		}
	}
	c.String(http.StatusOK, "ok")
}

func (h *Handler) page(c *gin.Context) (usage.Page, bool) {
	page := usage.Page{Size: h.defaultPageSize, Number: 1}
	if err := c.ShouldBindQuery(&page); err != nil {
		abortWith(c, errInvalidPageSettings)
		return page, false
	}
	if page.Size < 1 || page.Size > h.maxPageSize || page.Number < 1 {
		abortWith(c, errInvalidPageSettings)
		return page, false
	}
	return page, true
}

// pathParam reads a catch-all parameter without its slashes.
func pathParam(c *gin.Context, name string) string {
	return strings.Trim(strings.TrimSpace(c.Param(name)), "/")
}
