package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"transitportal/internal/domain/models"
	"transitportal/internal/http/middleware"
	"transitportal/internal/services"
)

type bulkRequest struct {
	Action     string  `json:"action" binding:"required"`
	RouteID    int64   `json:"routeId"`
	Date       string  `json:"date"`
	StaffID    int64   `json:"staffId"`
	StaffEmail string  `json:"staffEmail"`
	BookingIDs []int64 `json:"bookingIds"`
}

// POST /api/attendance/bulk
func (h *Handler) BulkAttendance(c *gin.Context) {
	var req bulkRequest
	if !BindJSONOrError(c, &req) {
		return
	}

	res, err := h.Deps.Roster(middleware.GetRequestID(c)).Bulk(c.Request.Context(), services.BulkRequest{
		Action:     req.Action,
		RouteID:    req.RouteID,
		Date:       req.Date,
		Marker:     marker(c, req.StaffID, req.StaffEmail),
		BookingIDs: req.BookingIDs,
	})
	if err != nil {
		RespondDomainError(c, err, nil)
		return
	}

	body := gin.H{
		"success":      true,
		"action":       req.Action,
		"marked_count": res.MarkedCount,
		"failed_count": res.FailedCount,
		"students":     res.Students,
	}
	if len(res.Errors) > 0 {
		body["errors"] = res.Errors
	}
	c.JSON(http.StatusOK, body)
}

// GET /api/attendance?route_id=&date=&staff_email=
func (h *Handler) ListAttendance(c *gin.Context) {
	routeID, err := queryInt64(c, "route_id")
	if err != nil {
		RespondDomainError(c, err, nil)
		return
	}
	roster := h.Deps.Roster(middleware.GetRequestID(c))
	date, err := roster.ResolveDate(c.Query("date"))
	if err != nil {
		RespondDomainError(c, err, nil)
		return
	}

	rows, err := roster.ListRouteAttendance(c.Request.Context(), routeID, date, marker(c, 0, c.Query("staff_email")))
	if err != nil {
		RespondDomainError(c, err, nil)
		return
	}

	present, absent := 0, 0
	for _, r := range rows {
		switch r.Status {
		case models.AttendancePresent:
			present++
		case models.AttendanceAbsent:
			absent++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"route_id": routeID,
		"date":     date,
		"students": rows,
		"summary": gin.H{
			"total":    len(rows),
			"present":  present,
			"absent":   absent,
			"unmarked": len(rows) - present - absent,
		},
	})
}

// GET /api/staff/routes?staff_email=
func (h *Handler) StaffRoutes(c *gin.Context) {
	routes, err := h.Deps.Auth(middleware.GetRequestID(c)).
		AssignedRoutes(c.Request.Context(), marker(c, 0, c.Query("staff_email")))
	if err != nil {
		RespondDomainError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "routes": routes})
}
