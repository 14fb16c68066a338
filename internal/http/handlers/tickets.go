package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"transitportal/internal/domain/models"
	"transitportal/internal/http/middleware"
	"transitportal/internal/services"
	"transitportal/internal/utils"
)

type validateRequest struct {
	QRCode string `json:"qrCode"`
}

type markRequest struct {
	QRCode     string              `json:"qrCode"`
	StaffID    int64               `json:"staffId"`
	StaffEmail string              `json:"staffEmail"`
	Location   *models.GeoLocation `json:"location"`
	Method     string              `json:"method"`
}

func ticketPayload(d models.BookingDetail) gin.H {
	return gin.H{
		"booking": gin.H{
			"id":             d.Booking.ID,
			"trip_date":      d.Booking.TripDate,
			"boarding_stop":  d.Booking.BoardingStop,
			"seat_number":    d.Booking.SeatNumber,
			"status":         d.Booking.Status,
			"departure_time": d.Schedule.DepartureTime,
			"direction":      d.Schedule.Direction,
		},
		"student": d.Student,
		"route":   d.Route,
	}
}

// POST /api/tickets/validate
func (h *Handler) ValidateTicket(c *gin.Context) {
	var req validateRequest
	if !BindJSONOrError(c, &req) {
		return
	}

	status, err := h.Deps.Tickets(middleware.GetRequestID(c)).Validate(c.Request.Context(), req.QRCode)
	if err != nil {
		RespondDomainError(c, err, gin.H{"valid": false})
		return
	}

	switch st := status.(type) {
	case services.TicketAlreadyMarked:
		body := ticketPayload(st.Booking)
		body["success"] = true
		body["valid"] = true
		body["alreadyMarked"] = true
		body["attendance"] = st.Attendance
		body["markedAt"] = utils.FormatDateTime(st.Attendance.BoardingTime, h.Deps.Location)
		body["markedBy"] = st.Attendance.MarkedBy
		body["message"] = fmt.Sprintf("%s already marked %s", st.Booking.Student.Name, st.Attendance.Status)
		c.JSON(http.StatusOK, body)
	case services.TicketReady:
		body := ticketPayload(st.Booking)
		body["success"] = true
		body["valid"] = true
		body["alreadyMarked"] = false
		body["message"] = "ticket is valid"
		c.JSON(http.StatusOK, body)
	}
}

// POST /api/attendance/mark
func (h *Handler) MarkAttendance(c *gin.Context) {
	var req markRequest
	if !BindJSONOrError(c, &req) {
		return
	}

	res, err := h.Deps.Tickets(middleware.GetRequestID(c)).MarkAttendance(c.Request.Context(), services.MarkRequest{
		Code:     req.QRCode,
		Marker:   marker(c, req.StaffID, req.StaffEmail),
		Location: req.Location,
		Method:   req.Method,
	})
	if err != nil {
		RespondDomainError(c, err, nil)
		return
	}

	a, d := res.Attendance, res.Booking
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("%s marked present", d.Student.Name),
		"attendance": gin.H{
			"id":             a.ID,
			"booking_id":     a.BookingID,
			"student_id":     a.StudentID,
			"student_name":   d.Student.Name,
			"route_id":       a.RouteID,
			"route_name":     d.Route.Name,
			"boarding_stop":  d.Booking.BoardingStop,
			"trip_date":      a.TripDate,
			"status":         a.Status,
			"boarding_time":  utils.FormatDateTime(a.BoardingTime, h.Deps.Location),
			"marking_method": a.MarkingMethod,
			"marked_by":      a.MarkedBy,
			"location":       a.Location,
		},
	})
}
