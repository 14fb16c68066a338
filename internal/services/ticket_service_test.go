package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitportal/internal/domain"
	"transitportal/internal/domain/models"
)

func staff(email string) domain.Marker { return domain.Marker{Email: email} }

func TestTicketFlow_ValidateMarkThenAlreadyMarked(t *testing.T) {
	h := newHarness(testNow)
	h.store.addBooking(1, 100, 2, testToday, "ABC123", models.BookingConfirmed)
	h.store.assign("x@y.com", 2)
	ctx := context.Background()

	status, err := h.tickets.Validate(ctx, "ABC123")
	require.NoError(t, err)
	ready, ok := status.(TicketReady)
	require.True(t, ok, "expected TicketReady, got %T", status)
	assert.Equal(t, int64(1), ready.Booking.Booking.ID)

	res, err := h.tickets.MarkAttendance(ctx, MarkRequest{Code: "ABC123", Marker: staff("X@Y.com ")})
	require.NoError(t, err)
	assert.Equal(t, models.AttendancePresent, res.Attendance.Status)
	assert.Equal(t, models.MethodQRScan, res.Attendance.MarkingMethod)
	assert.Equal(t, "x@y.com", res.Attendance.MarkedBy)
	assert.Equal(t, testNow, res.Attendance.BoardingTime)
	assert.NotZero(t, res.Attendance.ID)

	_, err = h.tickets.MarkAttendance(ctx, MarkRequest{Code: "ABC123", Marker: staff("x@y.com")})
	require.Error(t, err)
	assert.Equal(t, domain.CodeAlreadyMarked, domain.CodeOf(err))
	var conflict domain.ConflictError
	require.True(t, errors.As(err, &conflict))
	existing, ok := conflict.Existing.(models.Attendance)
	require.True(t, ok)
	assert.Equal(t, res.Attendance.ID, existing.ID)

	status, err = h.tickets.Validate(ctx, "ABC123")
	require.NoError(t, err)
	marked, ok := status.(TicketAlreadyMarked)
	require.True(t, ok, "expected TicketAlreadyMarked, got %T", status)
	assert.Equal(t, "x@y.com", marked.Attendance.MarkedBy)

	assert.Len(t, h.store.attendanceRows(), 1)
}

func TestValidate_WrongDateRegardlessOfAttendance(t *testing.T) {
	h := newHarness(testNow)
	h.store.addBooking(1, 100, 2, "2025-11-04", "YESTERDAY", models.BookingConfirmed)
	h.store.addBooking(2, 101, 2, "2025-11-06", "TOMORROW", models.BookingConfirmed)
	h.store.seedAttendance(models.Attendance{BookingID: 2, TripDate: "2025-11-06", Status: models.AttendancePresent})

	cases := map[string]string{"YESTERDAY": "2025-11-04", "TOMORROW": "2025-11-06"}
	for code, ticketDate := range cases {
		t.Run(code, func(t *testing.T) {
			status, err := h.tickets.Validate(context.Background(), code)
			assert.Nil(t, status)
			var wrong domain.WrongDateError
			require.True(t, errors.As(err, &wrong))
			assert.Equal(t, ticketDate, wrong.TicketDate)
			assert.Equal(t, testToday, wrong.CurrentDate)
			assert.Equal(t, domain.CodeWrongDate, domain.CodeOf(err))
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	h := newHarness(testNow)
	h.store.addBooking(1, 100, 2, testToday, "GONE", models.BookingCancelled)

	_, err := h.tickets.Validate(context.Background(), "   ")
	assert.Equal(t, domain.CodeQRCodeRequired, domain.CodeOf(err))

	_, err = h.tickets.Validate(context.Background(), "NOPE")
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))

	_, err = h.tickets.Validate(context.Background(), "GONE")
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))

	h.store.failReads = errors.New("connection refused")
	_, err = h.tickets.Validate(context.Background(), "ANY")
	assert.Equal(t, domain.CodeDatabase, domain.CodeOf(err))
	assert.ErrorContains(t, errors.Unwrap(err), "connection refused")
}

func TestMarkAttendance_NotAssigned(t *testing.T) {
	h := newHarness(testNow)
	h.store.addBooking(1, 100, 2, testToday, "ABC123", models.BookingConfirmed)
	h.store.assign("x@y.com", 1)

	_, err := h.tickets.MarkAttendance(context.Background(), MarkRequest{Code: "ABC123", Marker: staff("x@y.com")})
	require.Error(t, err)
	assert.Equal(t, domain.CodeNotAuthorized, domain.CodeOf(err))
	assert.True(t, domain.IsAuthorization(err))
	assert.Empty(t, h.store.attendanceRows())
}

func TestMarkAttendance_AdminBypassesAssignment(t *testing.T) {
	h := newHarness(testNow)
	h.store.addBooking(1, 100, 2, testToday, "ABC123", models.BookingConfirmed)

	res, err := h.tickets.MarkAttendance(context.Background(), MarkRequest{
		Code:   "ABC123",
		Marker: domain.Marker{Email: "admin@campus.edu", Role: domain.RoleAdmin},
		Method: models.MethodManualEntry,
	})
	require.NoError(t, err)
	assert.Equal(t, models.MethodManualEntry, res.Attendance.MarkingMethod)
}

func TestMarkAttendance_StaffIDResolvedToEmail(t *testing.T) {
	h := newHarness(testNow)
	h.store.addBooking(1, 100, 2, testToday, "ABC123", models.BookingConfirmed)
	h.store.users[7] = "Driver.One@Campus.edu"
	h.store.assign("driver.one@campus.edu", 2)

	loc := &models.GeoLocation{Lat: -6.2, Lng: 106.8, Accuracy: 5}
	res, err := h.tickets.MarkAttendance(context.Background(), MarkRequest{Code: "ABC123", Marker: domain.Marker{StaffID: 7}, Location: loc})
	require.NoError(t, err)
	assert.Equal(t, "driver.one@campus.edu", res.Attendance.MarkedBy)
	assert.Equal(t, loc, res.Attendance.Location)

	_, err = h.tickets.MarkAttendance(context.Background(), MarkRequest{Code: "ABC123", Marker: domain.Marker{StaffID: 99}})
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))
}

func TestMarkAttendance_InputChecksComeFirst(t *testing.T) {
	h := newHarness(testNow)

	_, err := h.tickets.MarkAttendance(context.Background(), MarkRequest{Marker: staff("x@y.com")})
	assert.Equal(t, domain.CodeQRCodeRequired, domain.CodeOf(err))

	_, err = h.tickets.MarkAttendance(context.Background(), MarkRequest{Code: "NOPE"})
	assert.Equal(t, domain.CodeStaffInfoRequired, domain.CodeOf(err))

	_, err = h.tickets.MarkAttendance(context.Background(), MarkRequest{Code: "NOPE", Marker: staff("x@y.com"), Method: "bulk_mark"})
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))

	_, err = h.tickets.MarkAttendance(context.Background(), MarkRequest{
		Code: "NOPE", Marker: staff("x@y.com"), Location: &models.GeoLocation{Lat: 91},
	})
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))

	_, err = h.tickets.MarkAttendance(context.Background(), MarkRequest{Code: "NOPE", Marker: staff("x@y.com")})
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))
}

func TestMarkAttendance_WrongDate(t *testing.T) {
	h := newHarness(testNow)
	h.store.addBooking(1, 100, 2, "2025-11-04", "OLD", models.BookingConfirmed)
	h.store.assign("x@y.com", 2)

	_, err := h.tickets.MarkAttendance(context.Background(), MarkRequest{Code: "OLD", Marker: staff("x@y.com")})
	var wrong domain.WrongDateError
	require.True(t, errors.As(err, &wrong))
	assert.Equal(t, "2025-11-04", wrong.TicketDate)
	assert.Empty(t, h.store.attendanceRows())
}

func TestMarkAttendance_ConcurrentScansRecordOnce(t *testing.T) {
	h := newHarness(testNow)
	h.store.addBooking(1, 100, 2, testToday, "ABC123", models.BookingConfirmed)
	h.store.assign("x@y.com", 2)

	const scans = 25
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		mu      sync.Mutex
		success int
		already int
		other   []error
	)
	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := h.tickets.MarkAttendance(context.Background(), MarkRequest{Code: "ABC123", Marker: staff("x@y.com")})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case domain.CodeOf(err) == domain.CodeAlreadyMarked:
				already++
			default:
				other = append(other, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Empty(t, other)
	assert.Equal(t, 1, success)
	assert.Equal(t, scans-1, already)
	assert.Len(t, h.store.attendanceRows(), 1)
	assert.Equal(t, 1, h.store.inserts)
}

func TestMarkAttendance_LostInsertRaceReturnsStoredRow(t *testing.T) {
	h := newHarness(testNow)
	h.store.addBooking(1, 100, 2, testToday, "ABC123", models.BookingConfirmed)
	h.store.assign("x@y.com", 2)
	winner := h.store.seedAttendance(models.Attendance{
		BookingID: 1, StudentID: 100, RouteID: 2, TripDate: testToday,
		Status: models.AttendancePresent, MarkedBy: "other@y.com", BoardingTime: testNow,
	})
	h.store.staleReads = true

	_, err := h.tickets.MarkAttendance(context.Background(), MarkRequest{Code: "ABC123", Marker: staff("x@y.com")})
	require.Error(t, err)
	assert.Equal(t, domain.CodeAlreadyMarked, domain.CodeOf(err))

	var conflict domain.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, winner, conflict.Existing)
	assert.Contains(t, conflict.Error(), "other@y.com")
	assert.Len(t, h.store.attendanceRows(), 1)
}
