package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"compugear/internal/model"
	"compugear/internal/service"
	"compugear/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, userID uuid.UUID, roleID int, companyID string, ttl time.Duration) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, service.TokenClaims{
		RoleID:    roleID,
		CompanyID: companyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type stubChecker struct {
	allowed bool
	err     error
	calls   []string
}

func (s *stubChecker) CheckAccess(_ context.Context, _ model.RequestContext, moduleCode string) (bool, error) {
	s.calls = append(s.calls, moduleCode)
	return s.allowed, s.err
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		rc := GetRequestContext(c)
		c.JSON(http.StatusOK, gin.H{"user_id": rc.UserID.String(), "role_id": rc.RoleID})
	})
	r.GET("/protected", handlers...)
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRequireAuth(t *testing.T) {
	userID := uuid.New()
	companyID := uuid.New()
	valid := signToken(t, userID, model.RoleSalesStaff, companyID.String(), time.Hour)

	tests := []struct {
		name       string
		setup      func(*http.Request)
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing credentials",
			setup:      func(*http.Request) {},
			wantStatus: http.StatusUnauthorized,
			wantError:  "Authorization is missing",
		},
		{
			name:       "malformed header",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Token "+valid) },
			wantStatus: http.StatusUnauthorized,
			wantError:  "Invalid authorization format. Expected 'Bearer <token>'",
		},
		{
			name: "expired token",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signToken(t, userID, model.RoleSalesStaff, "", -time.Minute))
			},
			wantStatus: http.StatusUnauthorized,
			wantError:  "Invalid or expired token",
		},
		{
			name: "bad company claim",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signToken(t, userID, model.RoleSalesStaff, "acme", time.Hour))
			},
			wantStatus: http.StatusUnauthorized,
			wantError:  "Invalid token claims",
		},
		{
			name:       "bearer header",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+valid) },
			wantStatus: http.StatusOK,
		},
		{
			name: "cookie wins over header",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: valid})
				r.Header.Set("Authorization", "Bearer garbage")
			},
			wantStatus: http.StatusOK,
		},
	}

	router := newRouter(RequireAuth(testSecret))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantError != "" {
				body := decodeError(t, w)
				assert.False(t, body.Success)
				assert.Equal(t, tt.wantError, body.Error)
				return
			}
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, userID.String(), body["user_id"])
			assert.EqualValues(t, model.RoleSalesStaff, body["role_id"])
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	router := newRouter(RequireAuth(testSecret), RequireAdmin())

	for roleID, want := range map[int]int{
		model.RoleSuperAdmin:     http.StatusOK,
		model.RoleCompanyAdmin:   http.StatusOK,
		model.RoleSalesStaff:     http.StatusForbidden,
		model.RoleInventoryStaff: http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, uuid.New(), roleID, "", time.Hour))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, "role %d", roleID)
	}

	w := httptest.NewRecorder()
	newRouter(RequireAdmin()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireModule(t *testing.T) {
	token := signToken(t, uuid.New(), model.RoleSalesStaff, uuid.NewString(), time.Hour)
	call := func(checker *stubChecker) *httptest.ResponseRecorder {
		router := newRouter(RequireAuth(testSecret), RequireModule(checker, model.ModuleInventory))
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	allow := &stubChecker{allowed: true}
	assert.Equal(t, http.StatusOK, call(allow).Code)
	assert.Equal(t, []string{model.ModuleInventory}, allow.calls)

	w := call(&stubChecker{})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, decodeError(t, w).Error, model.ModuleInventory)

	w = call(&stubChecker{err: errors.New("db down")})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to verify module access", decodeError(t, w).Error)

	unauth := &stubChecker{allowed: true}
	w = httptest.NewRecorder()
	newRouter(RequireModule(unauth, model.ModuleSales)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, unauth.calls)
}

func TestRequestID(t *testing.T) {
	router := newRouter(RequestID())

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-Request-ID", "<script>")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	_, err := uuid.Parse(w.Header().Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestSetTokenCookie(t *testing.T) {
	r := gin.New()
	r.GET("/login", func(c *gin.Context) {
		SetTokenCookie(c, "tok", 3600, true)
		c.Status(http.StatusNoContent)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, AccessTokenCookie, cookies[0].Name)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteNoneMode, cookies[0].SameSite)
}
