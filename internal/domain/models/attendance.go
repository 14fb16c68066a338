package models

import "time"

// Attendance statuses.
const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
)

// Marking methods.
const (
	MethodQRScan      = "qr_scan"
	MethodManualEntry = "manual_entry"
	MethodBulkMark    = "bulk_mark"
)

// BulkAbsentNote is stored on rows created by the mark-all-absent action.
const BulkAbsentNote = "Marked absent in bulk: no boarding recorded"

// Attendance is the recorded fact of a student's participation in one trip on one date.
type Attendance struct {
	ID            int64        `json:"id"`
	BookingID     int64        `json:"booking_id"`
	StudentID     int64        `json:"student_id"`
	RouteID       int64        `json:"route_id"`
	TripDate      string       `json:"trip_date"`
	Status        string       `json:"status"`
	BoardingTime  time.Time    `json:"boarding_time"`
	MarkingMethod string       `json:"marking_method"`
	MarkedBy      string       `json:"marked_by"`
	Location      *GeoLocation `json:"location,omitempty"`
	Notes         string       `json:"notes,omitempty"`
}

// GeoLocation is the optional position reported by the scanning device.
type GeoLocation struct {
	Lat       float64 `json:"lat" binding:"gte=-90,lte=90"`
	Lng       float64 `json:"lng" binding:"gte=-180,lte=180"`
	Accuracy  float64 `json:"accuracy,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// ValidAttendanceStatus reports whether s is a supported status.
func ValidAttendanceStatus(s string) bool {
	return s == AttendancePresent || s == AttendanceAbsent
}

// RouteAttendanceRow is one booking of a route/date with its attendance state.
type RouteAttendanceRow struct {
	BookingID    int64      `json:"booking_id"`
	StudentID    int64      `json:"student_id"`
	StudentName  string     `json:"student_name"`
	RollNumber   string     `json:"roll_number"`
	BoardingStop string     `json:"boarding_stop"`
	SeatNumber   string     `json:"seat_number"`
	Status       string     `json:"status"`
	MarkedBy     string     `json:"marked_by,omitempty"`
	MarkedAt     *time.Time `json:"marked_at,omitempty"`
}
