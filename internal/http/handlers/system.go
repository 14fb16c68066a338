package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	intconfig "transitportal/internal/config"
	"transitportal/internal/db"
	"transitportal/internal/domain"
)

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok", "message": "transit portal is running"})
}

// DBCheck pings the database and reports which required tables are missing.
func (h *Handler) DBCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := intconfig.EnsureDB(ctx, h.DB); err != nil {
		if errors.Is(err, intconfig.ErrNotConnected) {
			respondError(c, http.StatusInternalServerError, domain.CodeDatabase, "database not connected", nil)
			return
		}
		RespondDomainError(c, domain.Persistence("ping", err), nil)
		return
	}
	conn := h.DB
	if conn == nil {
		conn = intconfig.DB
	}
	missing := []string{}
	for _, table := range db.RequiredTables {
		if !db.HasTable(ctx, conn, table) {
			missing = append(missing, table)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        len(missing) == 0,
		"message":        "database connection OK",
		"missing_tables": missing,
	})
}

func (h *Handler) Routes(c *gin.Context) {
	h.routerMu.RLock()
	r := h.router
	h.routerMu.RUnlock()
	if r == nil {
		respondError(c, http.StatusServiceUnavailable, domain.CodeInternal, "router not ready", nil)
		return
	}

	routes := r.Routes()
	out := make([]gin.H, 0, len(routes))
	for _, rt := range routes {
		out = append(out, gin.H{"method": rt.Method, "path": rt.Path})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "routes": out})
}
