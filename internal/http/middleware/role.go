package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"transitportal/internal/domain"
)

// RequireRoles lets only the given roles through. Must run after AuthRequired.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[strings.ToLower(r)] = struct{}{}
	}

	return func(c *gin.Context) {
		role := strings.ToLower(c.GetString(userRoleKey))
		if role == "" {
			abortUnauthenticated(c, "role missing from token")
			return
		}
		if _, ok := allowed[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success":    false,
				"error":      domain.CodeNotAuthorized,
				"message":    "role is not allowed to access this resource",
				"request_id": GetRequestID(c),
			})
			return
		}
		c.Next()
	}
}
