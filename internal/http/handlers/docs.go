package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"transitportal/internal/http/middleware"
)

func sendPDF(c *gin.Context, pdf []byte, filename string) {
	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// GET /api/bookings/:id/boarding-pass
// The viewer comes from the bearer token only; query identities are not accepted here.
func (h *Handler) BoardingPass(c *gin.Context) {
	id, err := paramInt64(c, "id")
	if err != nil {
		RespondDomainError(c, err, nil)
		return
	}
	pdf, filename, err := h.Deps.Docs(middleware.GetRequestID(c)).BoardingPass(c.Request.Context(), id, marker(c, 0, ""))
	if err != nil {
		RespondDomainError(c, err, nil)
		return
	}
	sendPDF(c, pdf, filename)
}

// GET /api/attendance/manifest?route_id=&date=&staff_email=
func (h *Handler) AttendanceManifest(c *gin.Context) {
	routeID, err := queryInt64(c, "route_id")
	if err != nil {
		RespondDomainError(c, err, nil)
		return
	}
	pdf, filename, err := h.Deps.Docs(middleware.GetRequestID(c)).
		Manifest(c.Request.Context(), routeID, c.Query("date"), marker(c, 0, c.Query("staff_email")))
	if err != nil {
		RespondDomainError(c, err, nil)
		return
	}
	sendPDF(c, pdf, filename)
}
