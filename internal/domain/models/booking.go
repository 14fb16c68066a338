package models

// Booking statuses.
const (
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
	BookingCompleted = "completed"
)

// Booking is a student's reserved seat on one scheduled trip.
type Booking struct {
	ID            int64  `json:"id"`
	StudentID     int64  `json:"student_id"`
	RouteID       int64  `json:"route_id"`
	ScheduleID    int64  `json:"schedule_id"`
	TripDate      string `json:"trip_date"`
	BoardingStop  string `json:"boarding_stop"`
	SeatNumber    string `json:"seat_number"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	QRCode        string `json:"qr_code"`
}

// Student is the booking holder.
type Student struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	RollNumber string `json:"roll_number"`
}

// Route is a named bus route.
type Route struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Schedule is one departure of a route.
type Schedule struct {
	ID            int64  `json:"id"`
	DepartureTime string `json:"departure_time"`
	Direction     string `json:"direction"`
}

// BookingDetail is a booking joined with its student, route and schedule context.
type BookingDetail struct {
	Booking  Booking  `json:"booking"`
	Student  Student  `json:"student"`
	Route    Route    `json:"route"`
	Schedule Schedule `json:"schedule"`
}

// Countable reports whether the booking is expected on the bus (confirmed or completed).
func (b Booking) Countable() bool {
	return b.Status == BookingConfirmed || b.Status == BookingCompleted
}
