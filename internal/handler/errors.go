package handler

import (
	"errors"
	"net/http"

	"compugear/internal/service"
	"compugear/pkg/logger"
	"compugear/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{service.ErrUnauthenticated, http.StatusUnauthorized},
	{service.ErrForbidden, http.StatusForbidden},
	{service.ErrNotFound, http.StatusNotFound},
	{service.ErrInvalidState, http.StatusConflict},
	{service.ErrValidation, http.StatusBadRequest},
	{service.ErrDuplicateRegistration, http.StatusConflict},
	{service.ErrRegistrationExpired, http.StatusGone},
	{service.ErrPaymentNotCompleted, http.StatusPaymentRequired},
	{service.ErrExternalService, http.StatusBadGateway},
}

// statusFor maps a service error onto an HTTP status; unknown errors are 500.
func statusFor(err error) int {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// respondError writes the error envelope. Internal errors are logged and their text is not
// sent to the client.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.FromContext(c).Error("request failed", zap.Error(err))
		msg = "Internal server error"
	}
	c.JSON(status, response.Error(status, msg))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, msg))
}
