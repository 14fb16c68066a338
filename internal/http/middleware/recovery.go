package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"transitportal/internal/domain"
	"transitportal/internal/utils"
)

// Recovery converts a panic into the INTERNAL_ERROR envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		rid := GetRequestID(c)
		utils.Logger().Error("panic recovered",
			zap.String("request_id", rid),
			zap.String("path", c.Request.URL.Path),
			zap.String("panic", fmt.Sprint(recovered)),
			zap.Stack("stack"),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success":    false,
			"error":      domain.CodeInternal,
			"message":    "internal server error",
			"request_id": rid,
		})
	})
}
