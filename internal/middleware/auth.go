package middleware

import (
	"context"
	"net/http"
	"strings"

	"compugear/internal/model"
	"compugear/internal/service"
	"compugear/pkg/logger"
	"compugear/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	AccessTokenCookie = "access_token"
	requestContextKey = "requestContext"
)

// ModuleChecker decides whether the caller may use an ERP module.
type ModuleChecker interface {
	CheckAccess(ctx context.Context, rc model.RequestContext, moduleCode string) (bool, error)
}

// SetTokenCookie stores the access token as an HttpOnly cookie.
// Cross-origin deployments need SameSite=None, which browsers only accept with Secure.
func SetTokenCookie(c *gin.Context, token string, maxAgeSeconds int, secure bool) {
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie(AccessTokenCookie, token, maxAgeSeconds, "/", "", secure, true)
}

// ClearTokenCookie removes the access token cookie
func ClearTokenCookie(c *gin.Context, secure bool) {
	SetTokenCookie(c, "", -1, secure)
}

// tokenFromRequest reads the cookie first, then the Authorization header.
func tokenFromRequest(c *gin.Context) (string, string) {
	if token, err := c.Cookie(AccessTokenCookie); err == nil && token != "" {
		return token, ""
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "Authorization is missing"
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Invalid authorization format. Expected 'Bearer <token>'"
	}
	return parts[1], ""
}

// RequireAuth validates the JWT and stores the caller's RequestContext on the gin context.
func RequireAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, problem := tokenFromRequest(c)
		if problem != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, problem))
			return
		}

		claims, err := service.ParseToken(tokenString, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid or expired token"))
			return
		}
		rc, err := claims.RequestContext()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token claims"))
			return
		}

		c.Set(requestContextKey, rc)
		logger.WithContext(c, logger.FromContext(c).With(
			zap.String("user_id", rc.UserID.String()),
			zap.Int("role_id", rc.RoleID),
		))
		c.Next()
	}
}

// GetRequestContext returns the caller identity set by RequireAuth, or the zero value.
func GetRequestContext(c *gin.Context) model.RequestContext {
	if v, ok := c.Get(requestContextKey); ok {
		if rc, ok := v.(model.RequestContext); ok {
			return rc
		}
	}
	return model.RequestContext{}
}

// RequireAdmin allows Super-Admins and Company-Admins. Must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		rc := GetRequestContext(c)
		if !rc.IsAuthenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
			return
		}
		if !rc.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: admin role required"))
			return
		}
		c.Next()
	}
}

// RequireModule gates a route group on the module-access rules. Must run after RequireAuth.
func RequireModule(checker ModuleChecker, moduleCode string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc := GetRequestContext(c)
		if !rc.IsAuthenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
			return
		}

		allowed, err := checker.CheckAccess(c.Request.Context(), rc, moduleCode)
		if err != nil {
			logger.FromContext(c).Error("module access check failed", zap.String("module", moduleCode), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify module access"))
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: module "+moduleCode+" is not enabled for your role"))
			return
		}
		c.Next()
	}
}
