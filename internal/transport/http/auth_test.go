package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/wisdom-oss/service-water-usage-history/internal/domain/authz"
	httptransport "github.com/wisdom-oss/service-water-usage-history/internal/transport/http"
)

type mockAppService struct {
	checkFunc func(ctx context.Context, credential string) (*authz.Decision, error)
}

func (m *mockAppService) Check(ctx context.Context, credential string) (*authz.Decision, error) {
	if m.checkFunc != nil {
		return m.checkFunc(ctx, credential)
	}
	return authz.Authorized(nil, nil), nil
}

func TestRequireScope_ExtractsBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer valid-token", "valid-token"},
		{"bearer valid-token", "valid-token"},
		{"  Bearer   valid-token  ", "valid-token"},
		{"Basic dXNlcjpwYXNz", ""},
		{"Bearer", ""},
		{"", ""},
	}

	for _, tt := range tests {
		var got string
		svc := &mockAppService{
			checkFunc: func(_ context.Context, credential string) (*authz.Decision, error) {
				got = credential
				if credential == "" {
					return nil, authz.ErrMissingCredential
				}
				return authz.Authorized(nil, nil), nil
			},
		}

		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.GET("/", httptransport.RequireScope(svc), func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if got != tt.want {
			t.Errorf("%q: expected credential %q, got %q", tt.header, tt.want, got)
		}
		if tt.want == "" && w.Code != http.StatusBadRequest {
			t.Errorf("%q: expected status %d, got %d", tt.header, http.StatusBadRequest, w.Code)
		}
	}
}

func TestRequireScope_Denials(t *testing.T) {
	tests := []struct {
		reason     authz.DenialReason
		wantStatus int
		wantCode   string
	}{
		{authz.ReasonInvalidToken, http.StatusUnauthorized, "INVALID_TOKEN"},
		{authz.ReasonExpiredToken, http.StatusUnauthorized, "EXPIRED_TOKEN"},
		{authz.ReasonUsedBeforeValidity, http.StatusUnauthorized, "TOKEN_BEFORE_CREATION"},
		{authz.ReasonNoAssociatedUser, http.StatusUnauthorized, "USER_DELETED"},
		{authz.ReasonUserDisabled, http.StatusForbidden, "USER_DISABLED"},
		{authz.ReasonInsufficientScope, http.StatusForbidden, "MISSING_PRIVILEGES"},
		{authz.ReasonUnspecifiedRejection, http.StatusUnauthorized, "INACTIVE_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			svc := &mockAppService{
				checkFunc: func(context.Context, string) (*authz.Decision, error) {
					return authz.Denied(tt.reason), nil
				},
			}
			router := newTestRouter(&mockQueryService{}, httptransport.RequireScope(svc), nil)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer token")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			body := decodeError(t, w)
			if body.Error != "water-usage-history."+tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, body.Error)
			}
			if body.ErrorName == "" || body.ErrorDescription == "" {
				t.Errorf("expected title and description, got %+v", body)
			}
			if w.Header().Get("ETag") != "" {
				t.Error("expected denied request not to reach the conditional middleware")
			}
		})
	}
}

func TestRequireScope_Timeout(t *testing.T) {
	svc := &mockAppService{
		checkFunc: func(context.Context, string) (*authz.Decision, error) {
			return nil, authz.ErrIntrospectionTimeout
		},
	}
	router := newTestRouter(&mockQueryService{}, httptransport.RequireScope(svc), nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusRequestTimeout {
		t.Fatalf("expected status %d, got %d", http.StatusRequestTimeout, w.Code)
	}
	if body := decodeError(t, w); body.Error != "water-usage-history.TOKEN_VALIDATION_TIMEOUT" {
		t.Errorf("unexpected code %s", body.Error)
	}
}

func TestRequireScope_StoresIdentity(t *testing.T) {
	identity := &authz.UserIdentity{ID: 7, Username: "operator"}
	svc := &mockAppService{
		checkFunc: func(context.Context, string) (*authz.Decision, error) {
			return authz.Authorized(identity, []string{"water-usage:read"}), nil
		},
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", httptransport.RequireScope(svc), func(c *gin.Context) {
		got, ok := httptransport.Identity(c)
		if !ok || got != *identity {
			t.Errorf("expected identity %+v, got %+v", *identity, got)
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}
