package authz

import (
	"fmt"
	"net/http"
)

// Error is an authorization failure as reported to API clients.
type Error struct {
	Code        string
	Title       string
	Description string
	Status      int
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Code so wrapped copies compare equal to the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *Error) wrap(err error) *Error {
	c := *e
	c.Err = err
	return &c
}

var (
	ErrMissingCredential = &Error{
		Code:        "MISSING_BEARER_TOKEN",
		Title:       "Authorization Information Missing",
		Description: "The request did not contain any authorization information",
		Status:      http.StatusBadRequest,
	}
	ErrIntrospectionTimeout = &Error{
		Code:        "TOKEN_VALIDATION_TIMEOUT",
		Title:       "Token Validation Timeout",
		Description: "The service could not validate the used access token in a timely manner",
		Status:      http.StatusRequestTimeout,
	}
	ErrIntrospectionUnavailable = &Error{
		Code:        "TOKEN_VALIDATION_UNAVAILABLE",
		Title:       "Token Validation Unavailable",
		Description: "The authorization service could not be reached to validate the used access token",
		Status:      http.StatusServiceUnavailable,
	}
)

var denialErrors = map[DenialReason]*Error{
	ReasonInvalidToken: {
		Code:        "INVALID_TOKEN",
		Title:       "Invalid Bearer Token",
		Description: "The request did not contain the correct credentials to allow processing this request",
		Status:      http.StatusUnauthorized,
	},
	ReasonExpiredToken: {
		Code:        "EXPIRED_TOKEN",
		Title:       "Expired Bearer Token",
		Description: "The request did not contain a alive Bearer token",
		Status:      http.StatusUnauthorized,
	},
	ReasonUsedBeforeValidity: {
		Code:        "TOKEN_BEFORE_CREATION",
		Title:       "Credentials used too early",
		Description: "The credentials used for this request are currently not valid",
		Status:      http.StatusUnauthorized,
	},
	ReasonNoAssociatedUser: {
		Code:        "USER_DELETED",
		Title:       "User deleted",
		Description: "The account used to access this resource was deleted",
		Status:      http.StatusUnauthorized,
	},
	ReasonUserDisabled: {
		Code:        "USER_DISABLED",
		Title:       "User Disabled",
		Description: "The account used to access this resource is currently disabled",
		Status:      http.StatusForbidden,
	},
	ReasonInsufficientScope: {
		Code:        "MISSING_PRIVILEGES",
		Title:       "Missing Privileges",
		Description: "The account used to access this resource does not have the privileges to access this endpoint",
		Status:      http.StatusForbidden,
	},
	ReasonUnspecifiedRejection: {
		Code:        "INACTIVE_TOKEN",
		Title:       "Inactive Bearer Token",
		Description: "The token was rejected by the authorization system, but no error code was returned",
		Status:      http.StatusUnauthorized,
	},
}

// Err returns the client-facing error for a denial reason.
func (r DenialReason) Err() *Error {
	if e, ok := denialErrors[r]; ok {
		return e
	}
	return denialErrors[ReasonUnspecifiedRejection]
}
