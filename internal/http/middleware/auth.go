package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"transitportal/internal/domain"
)

const (
	userIDKey    = "userID"
	userEmailKey = "userEmail"
	userRoleKey  = "userRole"
)

// TokenTTL is the lifetime of tokens issued at login.
const TokenTTL = 24 * time.Hour

// IssueToken signs an HS256 token for the given user.
func IssueToken(secret string, user domain.RequestContext, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	claims := jwt.MapClaims{
		"user_id": user.UserID,
		"email":   user.Email,
		"role":    user.Role,
		"iat":     now.Unix(),
		"exp":     now.Add(TokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies a bearer token and returns the user it carries.
func ParseToken(secret, raw string) (domain.RequestContext, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return domain.RequestContext{}, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return domain.RequestContext{}, errors.New("invalid token claims")
	}

	var user domain.RequestContext
	if v, ok := claims["user_id"].(float64); ok {
		user.UserID = int64(v)
	}
	user.Email, _ = claims["email"].(string)
	user.Role, _ = claims["role"].(string)
	if user.UserID <= 0 && user.Email == "" {
		return domain.RequestContext{}, errors.New("token carries no user")
	}
	return user, nil
}

func bearer(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func setUser(c *gin.Context, user domain.RequestContext) {
	c.Set(userIDKey, user.UserID)
	c.Set(userEmailKey, user.Email)
	c.Set(userRoleKey, user.Role)
}

// AuthOptional attaches the token's user when a valid bearer token is present and lets
// anonymous requests through. An invalid token is treated as absent.
func AuthOptional(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := bearer(c); raw != "" {
			if user, err := ParseToken(secret, raw); err == nil {
				setUser(c, user)
			}
		}
		c.Next()
	}
}

// AuthRequired rejects requests without a valid bearer token.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearer(c)
		if raw == "" {
			abortUnauthenticated(c, "missing bearer token")
			return
		}
		user, err := ParseToken(secret, raw)
		if err != nil {
			abortUnauthenticated(c, "invalid or expired token")
			return
		}
		setUser(c, user)
		c.Next()
	}
}

// CurrentUser returns the authenticated user, if any.
func CurrentUser(c *gin.Context) (domain.RequestContext, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return domain.RequestContext{}, false
	}
	id, _ := v.(int64)
	return domain.RequestContext{
		UserID: id,
		Email:  c.GetString(userEmailKey),
		Role:   c.GetString(userRoleKey),
	}, true
}

func abortUnauthenticated(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success":    false,
		"error":      domain.CodeUnauthorized,
		"message":    msg,
		"request_id": GetRequestID(c),
	})
}
