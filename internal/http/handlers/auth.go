package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"transitportal/internal/domain"
	"transitportal/internal/http/middleware"
	"transitportal/internal/repositories"
	"transitportal/internal/utils"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

const badCredentials = "invalid email/username or password"

// POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !BindJSONOrError(c, &req) {
		return
	}

	users := h.Deps.Users
	if users == nil {
		users = repositories.UserRepository{DB: h.DB}
	}
	user, err := users.FindByLogin(c.Request.Context(), req.Email)
	if errors.Is(err, repositories.ErrNotFound) {
		RespondDomainError(c, domain.AuthorizationError{Unauthenticated: true, Msg: badCredentials}, nil)
		return
	}
	if err != nil {
		RespondDomainError(c, domain.Persistence("find user", err), nil)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		RespondDomainError(c, domain.AuthorizationError{Unauthenticated: true, Msg: badCredentials}, nil)
		return
	}
	if status := strings.ToLower(strings.TrimSpace(user.Status)); status != "" && status != "active" {
		RespondDomainError(c, domain.AuthorizationError{Msg: "account is not active"}, nil)
		return
	}
	switch user.Role {
	case domain.RoleAdmin, domain.RoleStaff, domain.RoleDriver:
	default:
		RespondDomainError(c, domain.AuthorizationError{Msg: "account role cannot sign in"}, nil)
		return
	}

	// Token expiry is checked against the wall clock, so it is signed against it too.
	token, err := middleware.IssueToken(h.Env.JWTSecret, domain.RequestContext{
		UserID: user.ID,
		Email:  utils.NormalizeEmail(user.Email),
		Role:   user.Role,
	}, time.Now())
	if err != nil {
		RespondDomainError(c, domain.InternalError{Msg: "failed to sign token", Err: err}, nil)
		return
	}

	utils.LogEvent(middleware.GetRequestID(c), "auth", "login", "user logged in")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"user":    user,
	})
}
