package middleware

import (
	"net/http"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/gin-gonic/gin"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch bankerr.KindOf(err) {
	case bankerr.KindValidation, bankerr.KindOTPRequired:
		return http.StatusBadRequest
	case bankerr.KindIntegrity, bankerr.KindAuthenticity, bankerr.KindExpiredRequest, bankerr.KindUnknownBank:
		return http.StatusUnauthorized
	case bankerr.KindForbidden:
		return http.StatusForbidden
	case bankerr.KindNotFound:
		return http.StatusNotFound
	case bankerr.KindInsufficientFunds, bankerr.KindInvalidOTP:
		return http.StatusUnprocessableEntity
	case bankerr.KindRemoteTransfer:
		return http.StatusBadGateway
	case bankerr.KindNotification:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithAppError writes err as {"message": ...}. Faults are logged with
// their cause and reported as "internal error".
func RespondWithAppError(c *gin.Context, err error) {
	logger := LoggerFrom(c)
	if bankerr.IsExpected(err) {
		logger.InfoContext(c.Request.Context(), "request rejected", "kind", bankerr.KindOf(err).String(), "reason", err.Error())
	} else {
		logger.ErrorContext(c.Request.Context(), "request failed", "kind", bankerr.KindOf(err).String(), "error", err)
	}
	RespondWithError(c, StatusFor(err), bankerr.PublicMessage(err))
}
