package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"transitportal/internal/domain"
	"transitportal/internal/domain/models"
	"transitportal/internal/repositories"
	"transitportal/internal/utils"

	"github.com/phpdave11/gofpdf"
)

// DocsService renders boarding passes and route manifests as PDF.
type DocsService struct {
	Bookings   BookingStore
	Attendance AttendanceService
	Clock      utils.Clock
	Location   *time.Location
	RequestID  string
}

func (s DocsService) bookings() BookingStore {
	if s.Bookings != nil {
		return s.Bookings
	}
	return repositories.BookingRepository{}
}

func (s DocsService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// BoardingPass returns the e-ticket of a booking with its scannable code. Only the booking's
// own student, an admin, or staff assigned to the booking's route may fetch it.
func (s DocsService) BoardingPass(ctx context.Context, bookingID int64, viewer domain.Marker) ([]byte, string, error) {
	if viewer.StaffID <= 0 && utils.NormalizeEmail(viewer.Email) == "" {
		return nil, "", domain.AuthorizationError{Unauthenticated: true, Msg: "sign in to view this boarding pass"}
	}
	if bookingID <= 0 {
		return nil, "", domain.ValidationError{Field: "id", Msg: "booking id is required"}
	}
	d, err := s.bookings().GetDetailByID(ctx, bookingID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, "", domain.NotFoundError{Resource: "booking", Err: err}
	}
	if err != nil {
		return nil, "", domain.Persistence("load booking", err)
	}
	if d.Booking.Status == models.BookingCancelled {
		return nil, "", domain.NotFoundError{Resource: "booking"}
	}
	if !ownsBooking(viewer, d) {
		if _, err := s.Attendance.Auth.Authorize(ctx, viewer, d.Booking.RouteID); err != nil {
			return nil, "", err
		}
	}
	utils.LogEvent(s.RequestID, "docs", "boarding_pass", fmt.Sprintf("booking_id=%d", bookingID))
	return buildBoardingPassPDF(d)
}

func ownsBooking(viewer domain.Marker, d models.BookingDetail) bool {
	email := utils.NormalizeEmail(viewer.Email)
	return email != "" && email == utils.NormalizeEmail(d.Student.Email)
}

// Manifest returns the attendance roster of a route/date; the caller must be assigned to
// the route.
func (s DocsService) Manifest(ctx context.Context, routeID int64, date string, marker domain.Marker) ([]byte, string, error) {
	date, err := s.Attendance.ResolveDate(date)
	if err != nil {
		return nil, "", err
	}
	rows, err := s.Attendance.ListRouteAttendance(ctx, routeID, date, marker)
	if err != nil {
		return nil, "", err
	}
	name, err := s.bookings().RouteName(ctx, routeID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, "", domain.Persistence("load route", err)
	}
	utils.LogEvent(s.RequestID, "docs", "manifest", fmt.Sprintf("route_id=%d date=%s rows=%d", routeID, date, len(rows)))
	return buildManifestPDF(utils.Safe(name, fmt.Sprintf("Route %d", routeID)), date, rows, utils.FormatDateTime(s.now(), s.Location))
}

func buildBoardingPassPDF(d models.BookingDetail) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetTitle("Boarding Pass", false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "BOARDING PASS")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	lines := []string{
		fmt.Sprintf("Student     : %s", utils.Safe(d.Student.Name, "-")),
		fmt.Sprintf("Roll number : %s", utils.Safe(d.Student.RollNumber, "-")),
		fmt.Sprintf("Route       : %s %s", utils.Safe(d.Route.Code, ""), utils.Safe(d.Route.Name, "-")),
		fmt.Sprintf("Trip date   : %s", utils.Safe(utils.DateOnly(d.Booking.TripDate), "-")),
		fmt.Sprintf("Departure   : %s %s", utils.Safe(d.Schedule.DepartureTime, "-"), d.Schedule.Direction),
		fmt.Sprintf("Stop        : %s", utils.Safe(d.Booking.BoardingStop, "-")),
		fmt.Sprintf("Seat        : %s", utils.Safe(d.Booking.SeatNumber, "-")),
		fmt.Sprintf("Booking     : #%d (%s)", d.Booking.ID, d.Booking.Status),
	}
	for _, l := range lines {
		pdf.Cell(0, 7, l)
		pdf.Ln(7)
	}

	pdf.Ln(4)
	pdf.SetFont("Courier", "B", 16)
	pdf.CellFormat(0, 14, d.Booking.QRCode, "1", 1, "C", false, 0, "")
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, "Valid only on the trip date above. Staff scan this code once when you board.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("BOARDING_%d_%s.pdf", d.Booking.ID, utils.SafeFilenamePart(d.Student.Name))
	return buf.Bytes(), filename, nil
}

func buildManifestPDF(routeName, date string, rows []models.RouteAttendanceRow, generatedAt string) ([]byte, string, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Attendance Manifest", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "ATTENDANCE MANIFEST")
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, fmt.Sprintf("Route: %s   Date: %s   Generated: %s", routeName, date, generatedAt))
	pdf.Ln(10)

	widths := []float64{10, 70, 30, 55, 18, 24, 60}
	headers := []string{"#", "Student", "Roll", "Stop", "Seat", "Status", "Marked by"}
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	var present, absent, unmarked int
	pdf.SetFont("Helvetica", "", 10)
	for i, r := range rows {
		switch r.Status {
		case models.AttendancePresent:
			present++
		case models.AttendanceAbsent:
			absent++
		default:
			unmarked++
		}
		cells := []string{
			fmt.Sprintf("%d", i+1), r.StudentName, utils.Safe(r.RollNumber, "-"), utils.Safe(r.BoardingStop, "-"),
			utils.Safe(r.SeatNumber, "-"), r.Status, utils.Safe(r.MarkedBy, "-"),
		}
		for j, c := range cells {
			pdf.CellFormat(widths[j], 6, c, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 6, fmt.Sprintf("Total %d   Present %d   Absent %d   Unmarked %d", len(rows), present, absent, unmarked))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("MANIFEST_%s_%s.pdf", utils.SafeFilenamePart(routeName), date)
	return buf.Bytes(), filename, nil
}
