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

// Bulk actions accepted by AttendanceService.Bulk.
const (
	ActionMarkAllAbsent       = "mark_all_absent"
	ActionMarkSelectedPresent = "mark_selected_present"
	ActionMarkSelectedAbsent  = "mark_selected_absent"
)

type BulkRequest struct {
	Action     string
	RouteID    int64
	Date       string
	Marker     domain.Marker
	BookingIDs []int64
}

// BulkItemError is one failed booking of a bulk request.
type BulkItemError struct {
	BookingID int64  `json:"booking_id"`
	Error     string `json:"error"`
	Message   string `json:"message"`
}

type BulkResult struct {
	MarkedCount int                         `json:"marked_count"`
	FailedCount int                         `json:"failed_count"`
	Students    []models.RouteAttendanceRow `json:"students"`
	Errors      []BulkItemError             `json:"errors,omitempty"`
}

// AttendanceService handles route-level attendance: bulk marking and listings.
type AttendanceService struct {
	Bookings   BookingStore
	Attendance AttendanceStore
	Auth       AuthorizationService
	Clock      utils.Clock
	Location   *time.Location
	RequestID  string
}

func (s AttendanceService) bookings() BookingStore {
	if s.Bookings != nil {
		return s.Bookings
	}
	return repositories.BookingRepository{}
}

func (s AttendanceService) attendance() AttendanceStore {
	if s.Attendance != nil {
		return s.Attendance
	}
	return repositories.AttendanceRepository{}
}

func (s AttendanceService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// ResolveDate returns date validated as YYYY-MM-DD, or today in the service location when
// date is blank.
func (s AttendanceService) ResolveDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return utils.FormatDate(s.now(), s.Location), nil
	}
	if !utils.IsDate(date) {
		return "", domain.ValidationError{Field: "date", Msg: "date must be YYYY-MM-DD"}
	}
	return date, nil
}

// Bulk dispatches a bulk request by action.
func (s AttendanceService) Bulk(ctx context.Context, req BulkRequest) (BulkResult, error) {
	switch req.Action {
	case ActionMarkAllAbsent:
		return s.BulkMarkAbsent(ctx, req.RouteID, req.Date, req.Marker)
	case ActionMarkSelectedPresent:
		return s.BulkMarkSelected(ctx, req.BookingIDs, models.AttendancePresent, req.Date, req.Marker)
	case ActionMarkSelectedAbsent:
		return s.BulkMarkSelected(ctx, req.BookingIDs, models.AttendanceAbsent, req.Date, req.Marker)
	default:
		return BulkResult{}, domain.ValidationError{
			Field: "action",
			Msg:   "action must be mark_all_absent, mark_selected_present or mark_selected_absent",
		}
	}
}

// BulkMarkAbsent inserts an absent row for every booking of the route/date without
// attendance. Existing rows are never modified.
func (s AttendanceService) BulkMarkAbsent(ctx context.Context, routeID int64, date string, marker domain.Marker) (BulkResult, error) {
	if routeID <= 0 {
		return BulkResult{}, domain.ValidationError{Field: "routeId", Msg: "route id is required"}
	}
	date, err := s.ResolveDate(date)
	if err != nil {
		return BulkResult{}, err
	}
	email, err := s.Auth.Authorize(ctx, marker, routeID)
	if err != nil {
		return BulkResult{}, err
	}

	rows, inserted, err := s.attendance().MarkMissingAbsent(ctx, routeID, date, email, models.BulkAbsentNote, s.now())
	if err != nil {
		return BulkResult{}, domain.Persistence("bulk mark absent", err)
	}
	if rows == nil {
		rows = []models.RouteAttendanceRow{}
	}
	utils.LogEvent(s.RequestID, "attendance", "bulk_absent",
		fmt.Sprintf("route_id=%d date=%s inserted=%d by=%s", routeID, date, inserted, email))
	return BulkResult{MarkedCount: int(inserted), Students: rows}, nil
}

// BulkMarkSelected sets status on each listed booking, inserting or overwriting its row for
// the date. Failures are reported per booking and do not stop the batch. An empty date
// means each booking's own trip date.
func (s AttendanceService) BulkMarkSelected(ctx context.Context, bookingIDs []int64, status, date string, marker domain.Marker) (BulkResult, error) {
	if !models.ValidAttendanceStatus(status) {
		return BulkResult{}, domain.ValidationError{Field: "status", Msg: "status must be present or absent"}
	}
	ids := uniqueIDs(bookingIDs)
	if len(ids) == 0 {
		return BulkResult{}, domain.ValidationError{Field: "bookingIds", Msg: "at least one booking id is required"}
	}
	date = strings.TrimSpace(date)
	if date != "" && !utils.IsDate(date) {
		return BulkResult{}, domain.ValidationError{Field: "date", Msg: "date must be YYYY-MM-DD"}
	}
	email, err := s.Auth.ResolveEmail(ctx, marker)
	if err != nil {
		return BulkResult{}, err
	}

	res := BulkResult{Students: []models.RouteAttendanceRow{}}
	allowed := map[int64]error{}
	for _, id := range ids {
		if id <= 0 {
			res.FailedCount++
			res.Errors = append(res.Errors, BulkItemError{BookingID: id, Error: domain.CodeValidation, Message: "booking id must be a positive integer"})
			continue
		}
		row, err := s.markOne(ctx, id, status, date, email, marker.IsAdmin(), allowed)
		if err != nil {
			res.FailedCount++
			res.Errors = append(res.Errors, BulkItemError{BookingID: id, Error: domain.CodeOf(err), Message: err.Error()})
			continue
		}
		res.MarkedCount++
		res.Students = append(res.Students, row)
	}
	utils.LogEvent(s.RequestID, "attendance", "bulk_selected",
		fmt.Sprintf("status=%s marked=%d failed=%d by=%s", status, res.MarkedCount, res.FailedCount, email))
	return res, nil
}

func (s AttendanceService) markOne(ctx context.Context, bookingID int64, status, date, email string, admin bool, allowed map[int64]error) (models.RouteAttendanceRow, error) {
	detail, err := s.bookings().GetDetailByID(ctx, bookingID)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.RouteAttendanceRow{}, domain.NotFoundError{Resource: "booking", Err: err}
	}
	if err != nil {
		return models.RouteAttendanceRow{}, domain.Persistence("load booking", err)
	}
	if !detail.Booking.Countable() {
		return models.RouteAttendanceRow{}, domain.NotFoundError{Resource: "booking"}
	}
	if date != "" && date != detail.Booking.TripDate {
		return models.RouteAttendanceRow{}, domain.WrongDateError{TicketDate: detail.Booking.TripDate, CurrentDate: date}
	}

	routeID := detail.Booking.RouteID
	authErr, seen := allowed[routeID]
	if !seen {
		authErr = s.Auth.authorizeEmail(ctx, email, admin, routeID)
		allowed[routeID] = authErr
	}
	if authErr != nil {
		return models.RouteAttendanceRow{}, authErr
	}

	at := s.now()
	err = s.attendance().Upsert(ctx, models.Attendance{
		BookingID:     detail.Booking.ID,
		StudentID:     detail.Booking.StudentID,
		RouteID:       routeID,
		TripDate:      detail.Booking.TripDate,
		Status:        status,
		BoardingTime:  at,
		MarkingMethod: models.MethodManualEntry,
		MarkedBy:      email,
	})
	if err != nil {
		return models.RouteAttendanceRow{}, domain.Persistence("upsert attendance", err)
	}
	return models.RouteAttendanceRow{
		BookingID:    detail.Booking.ID,
		StudentID:    detail.Student.ID,
		StudentName:  detail.Student.Name,
		RollNumber:   detail.Student.RollNumber,
		BoardingStop: detail.Booking.BoardingStop,
		SeatNumber:   detail.Booking.SeatNumber,
		Status:       status,
		MarkedBy:     email,
		MarkedAt:     &at,
	}, nil
}

// ListRouteAttendance returns the route/date roster with attendance state.
func (s AttendanceService) ListRouteAttendance(ctx context.Context, routeID int64, date string, marker domain.Marker) ([]models.RouteAttendanceRow, error) {
	if routeID <= 0 {
		return nil, domain.ValidationError{Field: "route_id", Msg: "route id is required"}
	}
	date, err := s.ResolveDate(date)
	if err != nil {
		return nil, err
	}
	if _, err := s.Auth.Authorize(ctx, marker, routeID); err != nil {
		return nil, err
	}
	rows, err := s.bookings().ListRouteAttendance(ctx, routeID, date)
	if err != nil {
		return nil, domain.Persistence("list route attendance", err)
	}
	return rows, nil
}

// uniqueIDs drops repeats and keeps first-seen order.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
