package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"transitportal/internal/domain"
	"transitportal/internal/http/middleware"
	"transitportal/internal/utils"
)

// StatusOf maps a domain error to its HTTP status.
func StatusOf(err error) int {
	var authErr domain.AuthorizationError
	switch {
	case domain.IsValidation(err), domain.IsWrongDate(err):
		return http.StatusBadRequest
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsConflict(err):
		return http.StatusConflict
	case errors.As(err, &authErr):
		if authErr.Unauthenticated {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, status int, code, message string, extra gin.H) {
	if code == "" {
		code = domain.CodeInternal
	}
	body := gin.H{
		"success":    false,
		"error":      code,
		"message":    message,
		"request_id": middleware.GetRequestID(c),
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

// RespondDomainError writes the failure envelope for err. Storage and unexpected errors
// keep their detail in the log only.
func RespondDomainError(c *gin.Context, err error, extra gin.H) {
	status := StatusOf(err)
	code := domain.CodeOf(err)
	message := err.Error()

	if extra == nil {
		extra = gin.H{}
	}
	var wrongDate domain.WrongDateError
	if errors.As(err, &wrongDate) {
		extra["ticketDate"] = wrongDate.TicketDate
		extra["currentDate"] = wrongDate.CurrentDate
	}
	var conflict domain.ConflictError
	if errors.As(err, &conflict) && conflict.Existing != nil {
		extra["existing"] = conflict.Existing
	}

	if status >= http.StatusInternalServerError {
		utils.Logger().Error("request failed",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("path", c.FullPath()),
			zap.String("code", code),
			zap.Error(err),
		)
		if !domain.IsPersistence(err) && !domain.IsUpstream(err) {
			message = "internal server error"
		}
	}
	respondError(c, status, code, message, extra)
}

// BindJSONOrError ensures body is present and parsable.
func BindJSONOrError[T any](c *gin.Context, dst *T) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		respondError(c, http.StatusBadRequest, domain.CodeValidation, "request body is required", nil)
		return false
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, domain.CodeValidation, "invalid payload: "+err.Error(), nil)
		return false
	}
	return true
}
