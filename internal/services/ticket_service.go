package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"transitportal/internal/domain"
	"transitportal/internal/domain/models"
	"transitportal/internal/repositories"
	"transitportal/internal/utils"
)

// TicketStatus is the outcome of validating a scannable code. Not-found and wrong-date
// tickets are reported as errors (domain.NotFoundError, domain.WrongDateError).
type TicketStatus interface {
	ticketStatus()
}

// TicketReady is a valid ticket for today with no attendance yet.
type TicketReady struct {
	Booking models.BookingDetail
}

// TicketAlreadyMarked is a valid ticket whose attendance is already recorded. Scanning it
// again is not an error.
type TicketAlreadyMarked struct {
	Booking    models.BookingDetail
	Attendance models.Attendance
}

func (TicketReady) ticketStatus()         {}
func (TicketAlreadyMarked) ticketStatus() {}

// MarkRequest is the input of MarkAttendance.
type MarkRequest struct {
	Code     string
	Marker   domain.Marker
	Location *models.GeoLocation
	Method   string
}

// MarkResult is returned on the first successful mark of a ticket.
type MarkResult struct {
	Attendance models.Attendance
	Booking    models.BookingDetail
}

// TicketService validates scanned codes and records boarding.
type TicketService struct {
	Bookings   BookingStore
	Attendance AttendanceStore
	Auth       AuthorizationService
	Clock      utils.Clock
	Location   *time.Location
	RequestID  string
}

func (s TicketService) bookings() BookingStore {
	if s.Bookings != nil {
		return s.Bookings
	}
	return repositories.BookingRepository{}
}

func (s TicketService) attendance() AttendanceStore {
	if s.Attendance != nil {
		return s.Attendance
	}
	return repositories.AttendanceRepository{}
}

func (s TicketService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s TicketService) today() string {
	return utils.FormatDate(s.now(), s.Location)
}

func requireCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", domain.ValidationError{Code: domain.CodeQRCodeRequired, Field: "qrCode", Msg: "qr code is required"}
	}
	return code, nil
}

func (s TicketService) resolve(ctx context.Context, code string) (models.BookingDetail, error) {
	detail, err := s.bookings().FindDetailByQRCode(ctx, code)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.BookingDetail{}, domain.NotFoundError{Resource: "ticket", Err: err}
	}
	if err != nil {
		return models.BookingDetail{}, domain.Persistence("find booking by code", err)
	}
	return detail, nil
}

func (s TicketService) checkDate(detail models.BookingDetail) error {
	today := s.today()
	if detail.Booking.TripDate != today {
		return domain.WrongDateError{TicketDate: detail.Booking.TripDate, CurrentDate: today}
	}
	return nil
}

// existing returns the attendance row for the booking's trip date, if any.
func (s TicketService) existing(ctx context.Context, detail models.BookingDetail) (models.Attendance, bool, error) {
	a, err := s.attendance().GetByBookingDate(ctx, detail.Booking.ID, detail.Booking.TripDate)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.Attendance{}, false, nil
	}
	if err != nil {
		return models.Attendance{}, false, domain.Persistence("load attendance", err)
	}
	return a, true, nil
}

// Validate resolves a code without side effects.
func (s TicketService) Validate(ctx context.Context, code string) (TicketStatus, error) {
	code, err := requireCode(code)
	if err != nil {
		return nil, err
	}
	detail, err := s.resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.checkDate(detail); err != nil {
		return nil, err
	}
	a, found, err := s.existing(ctx, detail)
	if err != nil {
		return nil, err
	}
	if found {
		return TicketAlreadyMarked{Booking: detail, Attendance: a}, nil
	}
	return TicketReady{Booking: detail}, nil
}

func alreadyMarked(a models.Attendance, loc *time.Location) error {
	return domain.ConflictError{
		Code:     domain.CodeAlreadyMarked,
		Resource: "attendance",
		Msg: fmt.Sprintf("already marked by %s at %s",
			utils.Safe(a.MarkedBy, "unknown"), utils.FormatDateTime(a.BoardingTime, loc)),
		Existing: a,
	}
}

func validLocation(loc *models.GeoLocation) error {
	if loc == nil {
		return nil
	}
	if loc.Lat < -90 || loc.Lat > 90 || loc.Lng < -180 || loc.Lng > 180 {
		return domain.ValidationError{Field: "location", Msg: "latitude or longitude out of range"}
	}
	return nil
}

// MarkAttendance records the first boarding of a ticket on its trip date. A second mark,
// including one that loses a concurrent race on the unique key, fails with ALREADY_MARKED
// carrying the stored row.
func (s TicketService) MarkAttendance(ctx context.Context, req MarkRequest) (MarkResult, error) {
	code, err := requireCode(req.Code)
	if err != nil {
		return MarkResult{}, err
	}
	if req.Marker.StaffID <= 0 && utils.NormalizeEmail(req.Marker.Email) == "" {
		return MarkResult{}, domain.ValidationError{
			Code:  domain.CodeStaffInfoRequired,
			Field: "staff",
			Msg:   "staff id or staff email is required",
		}
	}
	method := strings.TrimSpace(req.Method)
	if method == "" {
		method = models.MethodQRScan
	}
	if method != models.MethodQRScan && method != models.MethodManualEntry {
		return MarkResult{}, domain.ValidationError{Field: "method", Msg: "method must be qr_scan or manual_entry"}
	}
	if err := validLocation(req.Location); err != nil {
		return MarkResult{}, err
	}

	detail, err := s.resolve(ctx, code)
	if err != nil {
		return MarkResult{}, err
	}
	email, err := s.Auth.Authorize(ctx, req.Marker, detail.Booking.RouteID)
	if err != nil {
		return MarkResult{}, err
	}
	if err := s.checkDate(detail); err != nil {
		return MarkResult{}, err
	}
	if prior, found, err := s.existing(ctx, detail); err != nil {
		return MarkResult{}, err
	} else if found {
		return MarkResult{}, alreadyMarked(prior, s.Location)
	}

	a := models.Attendance{
		BookingID:     detail.Booking.ID,
		StudentID:     detail.Booking.StudentID,
		RouteID:       detail.Booking.RouteID,
		TripDate:      detail.Booking.TripDate,
		Status:        models.AttendancePresent,
		BoardingTime:  s.now(),
		MarkingMethod: method,
		MarkedBy:      email,
		Location:      req.Location,
	}
	id, err := s.attendance().Insert(ctx, a)
	if errors.Is(err, repositories.ErrDuplicate) {
		prior, found, lookupErr := s.existing(ctx, detail)
		if lookupErr != nil {
			return MarkResult{}, lookupErr
		}
		if !found {
			return MarkResult{}, domain.ConflictError{Code: domain.CodeAlreadyMarked, Resource: "attendance", Msg: "already marked", Err: err}
		}
		return MarkResult{}, alreadyMarked(prior, s.Location)
	}
	if err != nil {
		return MarkResult{}, domain.Persistence("insert attendance", err)
	}
	a.ID = id

	utils.LogEvent(s.RequestID, "attendance", "mark",
		fmt.Sprintf("booking_id=%d route_id=%d date=%s by=%s", a.BookingID, a.RouteID, a.TripDate, email))
	return MarkResult{Attendance: a, Booking: detail}, nil
}
