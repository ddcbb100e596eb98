package authz

import "net/http"

// UserIdentity is the account the authorization service attached to a token.
type UserIdentity struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// DenialReason is the closed set of reasons a token can be rejected for.
// The zero value is not a valid reason.
type DenialReason int

const (
	ReasonInvalidToken DenialReason = iota + 1
	ReasonExpiredToken
	ReasonUsedBeforeValidity
	ReasonNoAssociatedUser
	ReasonUserDisabled
	ReasonInsufficientScope
	ReasonUnspecifiedRejection
)

func (r DenialReason) String() string {
	switch r {
	case ReasonInvalidToken:
		return "invalid_token"
	case ReasonExpiredToken:
		return "expired_token"
	case ReasonUsedBeforeValidity:
		return "used_before_validity"
	case ReasonNoAssociatedUser:
		return "no_associated_user"
	case ReasonUserDisabled:
		return "user_disabled"
	case ReasonInsufficientScope:
		return "insufficient_scope"
	case ReasonUnspecifiedRejection:
		return "unspecified_rejection"
	default:
		return "none"
	}
}

// HTTPStatus is the status a denial is reported with.
func (r DenialReason) HTTPStatus() int {
	switch r {
	case ReasonUserDisabled, ReasonInsufficientScope:
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

// Decision is the outcome of one introspection: either Allow with an
// optional identity, or a denial with a reason. Build it with Authorized or
// Denied so the two never mix.
//
//nolint:revive // Decision keeps the package prefix out of the name
type Decision struct {
	Allow    bool
	Identity *UserIdentity
	Scopes   []string
	Reason   DenialReason
}

// Authorized returns an allowing decision. A nil identity means the token is
// valid but not bound to a user.
func Authorized(identity *UserIdentity, scopes []string) *Decision {
	return &Decision{
		Allow:    true,
		Identity: identity,
		Scopes:   scopes,
	}
}

func Denied(reason DenialReason) *Decision {
	if reason < ReasonInvalidToken || reason > ReasonUnspecifiedRejection {
		reason = ReasonUnspecifiedRejection
	}
	return &Decision{Reason: reason}
}
