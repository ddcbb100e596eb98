// Package introspection implements the wire format spoken with the central
// authorization service.
package introspection

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ActionValidateToken asks the authorization service to validate a token
// against a scope.
const ActionValidateToken = "validate_token"

// Denial reasons as sent by the authorization service.
const (
	ReasonInvalidToken      = "INVALID_TOKEN"
	ReasonExpired           = "EXPIRED_TOKEN"
	ReasonUsedTooEarly      = "USAGE_BEFORE_CREATION"
	ReasonNoAssociatedUser  = "NO_ASSOCIATED_USER"
	ReasonUserDisabled      = "USER_DISABLED"
	ReasonMissingPrivileges = "MISSING_PRIVILEGES"
)

var (
	ErrMissingActive = errors.New("introspection response has no active field")
	ErrInvalidScope  = errors.New("scope must be a string or a list of strings")
)

type Request struct {
	Action string `json:"action"`
	Token  string `json:"token"`
	Scope  string `json:"scope"`
}

// NewRequest builds a validate_token request. Multiple scopes are sent
// space-delimited.
func NewRequest(token string, scopes ...string) Request {
	return Request{
		Action: ActionValidateToken,
		Token:  token,
		Scope:  strings.Join(scopes, " "),
	}
}

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// Response is the raw introspection answer. Pointer fields are nil when the
// field was absent on the wire.
type Response struct {
	Active    *bool   `json:"active"`
	Reason    *string `json:"reason,omitempty"`
	Scope     Scopes  `json:"scope,omitempty"`
	TokenType *string `json:"token_type,omitempty"`
	ExpiresAt *int64  `json:"exp,omitempty"`
	IssuedAt  *int64  `json:"iat,omitempty"`
	User      *User   `json:"user,omitempty"`
}

// Scopes accepts either "a b c" or ["a","b","c"] and always holds the list
// form. A nil Scopes means the field was absent.
type Scopes []string

func (s *Scopes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}

	switch data[0] {
	case '"':
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*s = Scopes(strings.Fields(raw))
		if *s == nil {
			*s = Scopes{}
		}
		return nil
	case '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidScope, err)
		}
		if list == nil {
			list = []string{}
		}
		*s = Scopes(list)
		return nil
	default:
		return ErrInvalidScope
	}
}

// Contains reports whether scope is one of the granted scopes.
func (s Scopes) Contains(scope string) bool {
	for _, v := range s {
		if v == scope {
			return true
		}
	}
	return false
}

func Encode(r Request) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRequest(data []byte) (*Request, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode introspection request: %w", err)
	}
	return &r, nil
}

func EncodeResponse(r *Response) ([]byte, error) {
	return json.Marshal(r)
}

// Decode parses a reply. A reply without "active" is rejected since the
// decision cannot be derived from it.
func Decode(data []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode introspection response: %w", err)
	}
	if r.Active == nil {
		return nil, ErrMissingActive
	}
	return &r, nil
}
