package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"transitportal/internal/domain/models"
	"transitportal/internal/notify"
	"transitportal/internal/repositories"
	"transitportal/internal/utils"
)

var (
	testToday = "2025-11-05"
	testNow   = time.Date(2025, 11, 5, 9, 0, 0, 0, time.UTC)
)

func fixedClock(t time.Time) utils.Clock { return func() time.Time { return t } }

type attKey struct {
	bookingID int64
	date      string
}

// memStore backs the booking, attendance, assignment and user fakes. Insert holds the
// lock across check and write, like a unique key.
type memStore struct {
	mu          sync.Mutex
	bookings    map[int64]models.BookingDetail
	routes      map[int64]string
	attendance  map[attKey]models.Attendance
	nextID      int64
	inserts     int
	upserts     int
	staleReads  bool
	assignments map[string]map[int64]bool
	users       map[int64]string
	failReads   error
}

func newMemStore() *memStore {
	return &memStore{
		bookings:    map[int64]models.BookingDetail{},
		routes:      map[int64]string{},
		attendance:  map[attKey]models.Attendance{},
		assignments: map[string]map[int64]bool{},
		users:       map[int64]string{},
	}
}

func (m *memStore) addBooking(id, studentID, routeID int64, date, code, status string) models.BookingDetail {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := models.BookingDetail{
		Booking: models.Booking{
			ID: id, StudentID: studentID, RouteID: routeID, ScheduleID: 1, TripDate: date,
			BoardingStop: "Gate A", SeatNumber: fmt.Sprintf("%d", id), Status: status, QRCode: code,
		},
		Student:  models.Student{ID: studentID, Name: fmt.Sprintf("Student %d", studentID), Email: fmt.Sprintf("s%d@campus.edu", studentID)},
		Route:    models.Route{ID: routeID, Code: fmt.Sprintf("R%d", routeID), Name: m.routes[routeID]},
		Schedule: models.Schedule{ID: 1, DepartureTime: "07:15", Direction: "outbound"},
	}
	m.bookings[id] = d
	return d
}

func (m *memStore) assign(email string, routeID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.assignments[email] == nil {
		m.assignments[email] = map[int64]bool{}
	}
	m.assignments[email][routeID] = true
}

func (m *memStore) seedAttendance(a models.Attendance) models.Attendance {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	m.attendance[attKey{a.BookingID, a.TripDate}] = a
	return a
}

func (m *memStore) attendanceRows() []models.Attendance {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Attendance, 0, len(m.attendance))
	for _, a := range m.attendance {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingID < out[j].BookingID })
	return out
}

type bookingFake struct{ *memStore }

func (f bookingFake) FindDetailByQRCode(_ context.Context, code string) (models.BookingDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads != nil {
		return models.BookingDetail{}, f.failReads
	}
	for _, d := range f.bookings {
		if d.Booking.QRCode == code && d.Booking.Status != models.BookingCancelled {
			return d, nil
		}
	}
	return models.BookingDetail{}, repositories.ErrNotFound
}

func (f bookingFake) GetDetailByID(_ context.Context, id int64) (models.BookingDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.bookings[id]
	if !ok {
		return models.BookingDetail{}, repositories.ErrNotFound
	}
	return d, nil
}

func (f bookingFake) ListRouteAttendance(_ context.Context, routeID int64, date string) ([]models.RouteAttendanceRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.RouteAttendanceRow{}
	for _, d := range f.sortedBookings() {
		if d.Booking.RouteID != routeID || d.Booking.TripDate != date || !d.Booking.Countable() {
			continue
		}
		row := models.RouteAttendanceRow{BookingID: d.Booking.ID, StudentID: d.Student.ID, StudentName: d.Student.Name, Status: "unmarked"}
		if a, ok := f.attendance[attKey{d.Booking.ID, date}]; ok {
			row.Status = a.Status
			row.MarkedBy = a.MarkedBy
			at := a.BoardingTime
			row.MarkedAt = &at
		}
		out = append(out, row)
	}
	return out, nil
}

func (f bookingFake) RouteName(_ context.Context, routeID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.routes[routeID]
	if !ok {
		return "", repositories.ErrNotFound
	}
	return name, nil
}

func (f bookingFake) ListReminderTargets(_ context.Context, date string) ([]models.ReminderTarget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.ReminderTarget{}
	for _, d := range f.sortedBookings() {
		if d.Booking.TripDate != date || d.Booking.Status != models.BookingConfirmed {
			continue
		}
		out = append(out, models.ReminderTarget{
			BookingID: d.Booking.ID, StudentID: d.Student.ID, StudentName: d.Student.Name,
			StudentEmail: d.Student.Email, RouteName: d.Route.Name, TripDate: date,
			DepartureTime: d.Schedule.DepartureTime, BoardingStop: d.Booking.BoardingStop,
		})
	}
	return out, nil
}

// sortedBookings must be called with the lock held.
func (m *memStore) sortedBookings() []models.BookingDetail {
	out := make([]models.BookingDetail, 0, len(m.bookings))
	for _, d := range m.bookings {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Booking.ID < out[j].Booking.ID })
	return out
}

type attendanceFake struct{ *memStore }

func (f attendanceFake) GetByBookingDate(_ context.Context, bookingID int64, date string) (models.Attendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attendance[attKey{bookingID, date}]
	if ok && f.staleReads {
		// first read misses a row written by a concurrent scanner
		f.staleReads = false
		ok = false
	}
	if !ok {
		return models.Attendance{}, repositories.ErrNotFound
	}
	return a, nil
}

func (f attendanceFake) Insert(_ context.Context, a models.Attendance) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := attKey{a.BookingID, a.TripDate}
	if _, ok := f.attendance[key]; ok {
		return 0, fmt.Errorf("attendance booking=%d: %w", a.BookingID, repositories.ErrDuplicate)
	}
	f.nextID++
	a.ID = f.nextID
	f.attendance[key] = a
	f.inserts++
	return a.ID, nil
}

func (f attendanceFake) Upsert(_ context.Context, a models.Attendance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := attKey{a.BookingID, a.TripDate}
	if prev, ok := f.attendance[key]; ok {
		a.ID = prev.ID
	} else {
		f.nextID++
		a.ID = f.nextID
	}
	f.attendance[key] = a
	f.upserts++
	return nil
}

func (f attendanceFake) MarkMissingAbsent(_ context.Context, routeID int64, date, markedBy, note string, at time.Time) ([]models.RouteAttendanceRow, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []models.RouteAttendanceRow
	for _, d := range f.sortedBookings() {
		if d.Booking.RouteID != routeID || d.Booking.TripDate != date || !d.Booking.Countable() {
			continue
		}
		key := attKey{d.Booking.ID, date}
		if _, ok := f.attendance[key]; ok {
			continue
		}
		f.nextID++
		f.attendance[key] = models.Attendance{
			ID: f.nextID, BookingID: d.Booking.ID, StudentID: d.Student.ID, RouteID: routeID, TripDate: date,
			Status: models.AttendanceAbsent, BoardingTime: at, MarkingMethod: models.MethodBulkMark,
			MarkedBy: markedBy, Notes: note,
		}
		f.inserts++
		ts := at
		rows = append(rows, models.RouteAttendanceRow{
			BookingID: d.Booking.ID, StudentID: d.Student.ID, StudentName: d.Student.Name,
			Status: models.AttendanceAbsent, MarkedBy: markedBy, MarkedAt: &ts,
		})
	}
	return rows, int64(len(rows)), nil
}

type assignmentFake struct{ *memStore }

func (f assignmentFake) IsAssigned(_ context.Context, email string, routeID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assignments[utils.NormalizeEmail(email)][routeID], nil
}

func (f assignmentFake) ListRoutes(_ context.Context, email string) ([]models.StaffRouteAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.StaffRouteAssignment{}
	for routeID, active := range f.assignments[utils.NormalizeEmail(email)] {
		if active {
			out = append(out, models.StaffRouteAssignment{StaffEmail: email, RouteID: routeID, RouteName: f.routes[routeID], Active: true})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RouteID < out[j].RouteID })
	return out, nil
}

func (f assignmentFake) Assign(_ context.Context, email string, routeID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.routes[routeID]; !ok {
		return repositories.ErrNotFound
	}
	if f.assignments[email] == nil {
		f.assignments[email] = map[int64]bool{}
	}
	f.assignments[email][routeID] = true
	return nil
}

func (f assignmentFake) Unassign(_ context.Context, email string, routeID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.assignments[email][routeID] {
		return false, nil
	}
	f.assignments[email][routeID] = false
	return true, nil
}

type userFake struct{ *memStore }

func (f userFake) FindByLogin(_ context.Context, login string) (models.User, error) {
	return models.User{}, repositories.ErrNotFound
}

func (f userFake) EmailByID(_ context.Context, id int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.users[id]
	if !ok {
		return "", repositories.ErrNotFound
	}
	return email, nil
}

type runFake struct {
	mu     sync.Mutex
	rows   []models.SchedulerRun
	starts int
	stats  models.RunStats
}

func (f *runFake) FindBlocking(_ context.Context, key models.RunKey, since time.Time) (models.SchedulerRun, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var running *models.SchedulerRun
	for i := len(f.rows) - 1; i >= 0; i-- {
		r := f.rows[i]
		if r.SchedulerType != key.Type || r.RunDate != key.RunDate || r.TimeSlot != key.TimeSlot {
			continue
		}
		if r.Status == models.RunCompleted && !r.DryRun {
			return r, true, nil
		}
		if r.Status == models.RunRunning && !r.StartedAt.Before(since) && running == nil {
			running = &r
		}
	}
	if running != nil {
		return *running, true, nil
	}
	return models.SchedulerRun{}, false, nil
}

func (f *runFake) Start(_ context.Context, key models.RunKey, dryRun bool, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	id := int64(len(f.rows) + 1)
	f.rows = append(f.rows, models.SchedulerRun{
		ID: id, SchedulerType: key.Type, RunDate: key.RunDate, TimeSlot: key.TimeSlot,
		Status: models.RunRunning, DryRun: dryRun, StartedAt: at,
	})
	return id, nil
}

func (f *runFake) Finish(_ context.Context, id int64, status string, summary []byte, sent int, errMsg string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows[i].Status = status
			f.rows[i].ResultSummary = string(summary)
			f.rows[i].NotificationsSent = sent
			f.rows[i].ErrorMessage = errMsg
			ts := at
			f.rows[i].CompletedAt = &ts
			return nil
		}
	}
	return errors.New("run not found")
}

func (f *runFake) ListForDate(_ context.Context, schedulerType, date string) ([]models.SchedulerRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.SchedulerRun{}
	for _, r := range f.rows {
		if r.SchedulerType == schedulerType && r.RunDate == date {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *runFake) Stats(context.Context, string, time.Time) (models.RunStats, error) {
	return f.stats, nil
}

func (f *runFake) snapshot() []models.SchedulerRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.SchedulerRun(nil), f.rows...)
}

type notificationFake struct {
	mu     sync.Mutex
	rows   []models.Notification
	purges []time.Time
}

func (f *notificationFake) Insert(_ context.Context, n models.Notification) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, n)
	return n.ID, nil
}

func (f *notificationFake) PurgeOlderThan(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purges = append(f.purges, before)
	return 0, nil
}

func (f *notificationFake) ListUnresponded(_ context.Context, typ string, since time.Time, limit int) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Notification{}
	for _, n := range f.rows {
		if n.Type == typ && n.Status == models.NotificationSent && n.RespondedAt == nil && !n.SentAt.Before(since) {
			out = append(out, n)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *notificationFake) count(typ string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.Type == typ {
			n++
		}
	}
	return n
}

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []notify.Message
	fail  error
	block bool
}

func (n *recordingNotifier) Send(ctx context.Context, msg notify.Message) error {
	if n.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if n.fail != nil {
		return n.fail
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// harness wires every service to shared fakes.
type harness struct {
	store    *memStore
	runs     *runFake
	notes    *notificationFake
	notifier *recordingNotifier
	now      time.Time

	auth      AuthorizationService
	tickets   TicketService
	roster    AttendanceService
	reminders ReminderService
	scheduler DailyReminderScheduler
	docs      DocsService
}

const testSchedulerKey = "s3cret-key"

func newHarness(now time.Time) *harness {
	h := &harness{
		store:    newMemStore(),
		runs:     &runFake{},
		notes:    &notificationFake{},
		notifier: &recordingNotifier{},
		now:      now,
	}
	h.store.routes[1] = "North Loop"
	h.store.routes[2] = "South Loop"
	h.rewire()
	return h
}

// rewire rebuilds services after h.now changes.
func (h *harness) rewire() {
	clock := fixedClock(h.now)
	h.auth = AuthorizationService{Assignments: assignmentFake{h.store}, Users: userFake{h.store}}
	h.tickets = TicketService{
		Bookings: bookingFake{h.store}, Attendance: attendanceFake{h.store},
		Auth: h.auth, Clock: clock, Location: time.UTC,
	}
	h.roster = AttendanceService{
		Bookings: bookingFake{h.store}, Attendance: attendanceFake{h.store},
		Auth: h.auth, Clock: clock, Location: time.UTC,
	}
	h.reminders = ReminderService{
		Targets: bookingFake{h.store}, Notifications: h.notes, Notifier: h.notifier,
		Clock: clock, Timeout: 50 * time.Millisecond,
	}
	h.scheduler = DailyReminderScheduler{
		Tracker:   RunTracker{Runs: h.runs, Clock: clock},
		Reminders: h.reminders,
		Key:       testSchedulerKey,
		Clock:     clock,
		Location:  time.UTC,
	}
	h.docs = DocsService{Bookings: bookingFake{h.store}, Attendance: h.roster, Clock: clock, Location: time.UTC}
}
