package handlers

import (
	"database/sql"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	intconfig "transitportal/internal/config"
	"transitportal/internal/domain"
	"transitportal/internal/http/middleware"
	"transitportal/internal/services"
)

// Handler serves the HTTP API on top of the request-scoped services.
type Handler struct {
	Env  intconfig.Env
	DB   *sql.DB
	Deps services.Deps

	routerMu sync.RWMutex
	router   *gin.Engine
}

func New(env intconfig.Env, db *sql.DB, deps services.Deps) *Handler {
	return &Handler{Env: env, DB: db, Deps: deps}
}

// SetRouter stores the active gin engine for later inspection (e.g., /api/routes).
func (h *Handler) SetRouter(r *gin.Engine) {
	h.routerMu.Lock()
	defer h.routerMu.Unlock()
	h.router = r
}

// marker builds the acting staff identity. Body fields win; a bearer token fills the gaps.
// The role only ever comes from the token.
func marker(c *gin.Context, staffID int64, staffEmail string) domain.Marker {
	m := domain.Marker{StaffID: staffID, Email: strings.TrimSpace(staffEmail)}
	if user, ok := middleware.CurrentUser(c); ok {
		if m.StaffID <= 0 && m.Email == "" {
			m.StaffID = user.UserID
			m.Email = user.Email
		}
		m.Role = user.Role
	}
	return m
}

func queryInt64(c *gin.Context, key string) (int64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, domain.ValidationError{Field: key, Msg: key + " is required"}
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, domain.ValidationError{Field: key, Msg: key + " must be a positive integer"}
	}
	return v, nil
}

func paramInt64(c *gin.Context, key string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(c.Param(key)), 10, 64)
	if err != nil || v <= 0 {
		return 0, domain.ValidationError{Field: key, Msg: "invalid " + key}
	}
	return v, nil
}
