package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wisdom-oss/service-water-usage-history/internal/domain/authz"
	"github.com/wisdom-oss/service-water-usage-history/internal/domain/usage"
	"github.com/wisdom-oss/service-water-usage-history/pkg/logger"
)

type apiError struct {
	Code        string
	Title       string
	Description string
	Status      int
}

var (
	errInvalidPageSettings = apiError{
		Code:        "INVALID_PAGE_SETTINGS",
		Title:       "Invalid Pagination Settings",
		Description: "The pagination settings in your query are not supported",
		Status:      http.StatusBadRequest,
	}
	errEmptyConsumerID = apiError{
		Code:        "EMPTY_CONSUMER_ID",
		Title:       "Missing Consumer ID",
		Description: "The API could not detect any consumer id in the request",
		Status:      http.StatusBadRequest,
	}
	errInvalidConsumerID = apiError{
		Code:        "INVALID_CONSUMER_ID",
		Title:       "Invalid Consumer ID",
		Description: "The consumer id is not in a valid format",
		Status:      http.StatusBadRequest,
	}
	errEmptyARS = apiError{
		Code:        "EMPTY_ARS",
		Title:       "Missing ARS",
		Description: "The API could not detect any municipality key in the request",
		Status:      http.StatusBadRequest,
	}
	errInvalidARS = apiError{
		Code:        "INVALID_ARS",
		Title:       "Invalid ARS",
		Description: "The municipality key is not in a valid format",
		Status:      http.StatusBadRequest,
	}
	errEmptyUsageTypeID = apiError{
		Code:        "EMPTY_USAGE_TYPE_ID",
		Title:       "Missing Usage Type ID",
		Description: "The API could not detect any usage type id in the request",
		Status:      http.StatusBadRequest,
	}
	errInvalidUsageTypeID = apiError{
		Code:        "INVALID_USAGE_TYPE_ID",
		Title:       "Invalid Usage Type ID",
		Description: "The usage type id is not in a valid format",
		Status:      http.StatusBadRequest,
	}
	errUnknownConsumer = apiError{
		Code:        "UNKNOWN_CONSUMER",
		Title:       "Unknown Consumer",
		Description: "No consumer with the supplied id exists",
		Status:      http.StatusNotFound,
	}
	errRouteNotFound = apiError{
		Code:        "ROUTE_NOT_FOUND",
		Title:       "Route Not Found",
		Description: "The requested path does not exist in this microservice",
		Status:      http.StatusNotFound,
	}
	errMethodNotAllowed = apiError{
		Code:        "METHOD_NOT_ALLOWED",
		Title:       "Method Not Allowed",
		Description: "The used HTTP method is not allowed on this route",
		Status:      http.StatusMethodNotAllowed,
	}
	errInternal = apiError{
		Code:        "INTERNAL_ERROR",
		Title:       "Internal Error",
		Description: "The service encountered an error while handling the request",
		Status:      http.StatusInternalServerError,
	}
)

type errorResponse struct {
	HTTPCode         int    `json:"httpCode"`
	HTTPError        string `json:"httpError"`
	Error            string `json:"error"`
	ErrorName        string `json:"errorName"`
	ErrorDescription string `json:"errorDescription"`
}

func abortWith(c *gin.Context, e apiError) {
	c.AbortWithStatusJSON(e.Status, errorResponse{
		HTTPCode:         e.Status,
		HTTPError:        http.StatusText(e.Status),
		Error:            serviceName + "." + e.Code,
		ErrorName:        e.Title,
		ErrorDescription: e.Description,
	})
}

// abortWithError renders err, anything unknown becomes INTERNAL_ERROR.
func abortWithError(c *gin.Context, err error) {
	var authzErr *authz.Error
	switch {
	case errors.As(err, &authzErr):
		abortWith(c, apiError{
			Code:        authzErr.Code,
			Title:       authzErr.Title,
			Description: authzErr.Description,
			Status:      authzErr.Status,
		})
	case errors.Is(err, usage.ErrUnknownConsumer):
		abortWith(c, errUnknownConsumer)
	default:
		logger.ErrorContext(c.Request.Context(), "request failed",
			slog.String("path", c.Request.URL.Path),
			logger.Err(err),
		)
		abortWith(c, errInternal)
	}
}
