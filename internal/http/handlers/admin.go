package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"transitportal/internal/http/middleware"
	"transitportal/internal/utils"
)

type assignmentRequest struct {
	StaffEmail string `json:"staffEmail" binding:"required"`
	RouteID    int64  `json:"routeId" binding:"required"`
}

// POST /api/admin/staff-assignments
func (h *Handler) AssignStaff(c *gin.Context) {
	var req assignmentRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	if err := h.Deps.Auth(middleware.GetRequestID(c)).Assign(c.Request.Context(), req.StaffEmail, req.RouteID); err != nil {
		RespondDomainError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "staff assigned to route",
		"staff_email": utils.NormalizeEmail(req.StaffEmail),
		"route_id":    req.RouteID,
	})
}

// DELETE /api/admin/staff-assignments
func (h *Handler) UnassignStaff(c *gin.Context) {
	var req assignmentRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	if err := h.Deps.Auth(middleware.GetRequestID(c)).Unassign(c.Request.Context(), req.StaffEmail, req.RouteID); err != nil {
		RespondDomainError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "staff unassigned from route",
		"staff_email": utils.NormalizeEmail(req.StaffEmail),
		"route_id":    req.RouteID,
	})
}
