package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careslot/clinic-booking/internal/audit"
	"github.com/careslot/clinic-booking/internal/availability"
	"github.com/careslot/clinic-booking/internal/booking"
	"github.com/careslot/clinic-booking/internal/calendar"
	"github.com/careslot/clinic-booking/internal/clinic"
	"github.com/careslot/clinic-booking/internal/notify"
	"github.com/careslot/clinic-booking/internal/patient"
	"github.com/careslot/clinic-booking/internal/rules"
)

// ---- in-memory collaborators ----

type memRepo struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*booking.Appointment
}

func newMemRepo() *memRepo {
	return &memRepo{appts: make(map[uuid.UUID]*booking.Appointment)}
}

func (m *memRepo) GetByID(_ context.Context, clinicID, id uuid.UUID) (*booking.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || a.ClinicID != clinicID {
		return nil, booking.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, clinicID uuid.UUID, f booking.Filter) ([]booking.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []booking.Appointment
	for _, a := range m.appts {
		if a.ClinicID != clinicID {
			continue
		}
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (m *memRepo) ListBlockingInRange(_ context.Context, clinicID, staffID uuid.UUID, from, to time.Time) ([]booking.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []booking.Appointment
	for _, a := range m.appts {
		if a.ClinicID != clinicID || a.StaffID != staffID || !a.Status.Blocks() {
			continue
		}
		if a.StartTime.Before(to) && from.Before(a.EndTime) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memRepo) CountActiveInRange(_ context.Context, clinicID, patientID uuid.UUID, from, to time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, a := range m.appts {
		if a.ClinicID != clinicID || a.PatientID != patientID || a.Status.Cancelled() {
			continue
		}
		if !a.StartTime.Before(from) && a.StartTime.Before(to) {
			count++
		}
	}
	return count, nil
}

func (m *memRepo) CreateConfirmed(_ context.Context, a *booking.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.appts {
		if existing.ClinicID != a.ClinicID || existing.StaffID != a.StaffID || !existing.Status.Blocks() {
			continue
		}
		if existing.StartTime.Before(a.EndTime) && a.StartTime.Before(existing.EndTime) {
			return booking.ErrSlotTaken
		}
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *memRepo) UpdateStatus(_ context.Context, clinicID, id uuid.UUID, from []booking.Status, to booking.Status, change booking.StatusChange) (*booking.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || a.ClinicID != clinicID {
		return nil, booking.ErrAppointmentNotFound
	}
	matched := false
	for _, st := range from {
		if a.Status == st {
			matched = true
			break
		}
	}
	if !matched {
		return nil, booking.ErrInvalidStatusTransition
	}
	a.Status = to
	if change.CancelledBy != nil {
		a.CancelledBy = change.CancelledBy
	}
	if change.CancelReason != nil {
		a.CancelReason = change.CancelReason
	}
	if change.CheckOutAt != nil {
		a.CheckOutTime = change.CheckOutAt
	}
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *memRepo) ListReminderDue(_ context.Context, from, to time.Time) ([]booking.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []booking.Appointment
	for _, a := range m.appts {
		if !a.Status.Blocks() || a.ReminderSent {
			continue
		}
		if !a.StartTime.Before(from) && a.StartTime.Before(to) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memRepo) MarkReminderSent(_ context.Context, clinicID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || a.ClinicID != clinicID {
		return booking.ErrAppointmentNotFound
	}
	a.ReminderSent = true
	return nil
}

type memClinics struct {
	clinic *clinic.Clinic
	types  map[uuid.UUID]*clinic.AppointmentType
	staff  map[uuid.UUID]*clinic.Staff
}

func (m *memClinics) GetClinic(_ context.Context, id uuid.UUID) (*clinic.Clinic, error) {
	if m.clinic == nil || m.clinic.ID != id {
		return nil, clinic.ErrClinicNotFound
	}
	return m.clinic, nil
}

func (m *memClinics) GetAppointmentType(_ context.Context, _, id uuid.UUID) (*clinic.AppointmentType, error) {
	t, ok := m.types[id]
	if !ok {
		return nil, clinic.ErrAppointmentTypeNotFound
	}
	return t, nil
}

func (m *memClinics) ListActiveAppointmentTypes(_ context.Context, _ uuid.UUID) ([]clinic.AppointmentType, error) {
	var out []clinic.AppointmentType
	for _, t := range m.types {
		if t.Active {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memClinics) GetStaff(_ context.Context, _, id uuid.UUID) (*clinic.Staff, error) {
	st, ok := m.staff[id]
	if !ok {
		return nil, clinic.ErrStaffNotFound
	}
	return st, nil
}

func (m *memClinics) ListActiveStaff(_ context.Context, _ uuid.UUID) ([]clinic.Staff, error) {
	var out []clinic.Staff
	for _, st := range m.staff {
		if st.Active {
			out = append(out, *st)
		}
	}
	return out, nil
}

type memPatients struct {
	patients map[uuid.UUID]*patient.Patient
}

func (m *memPatients) Exists(_ context.Context, _, id uuid.UUID) (bool, error) {
	_, ok := m.patients[id]
	return ok, nil
}

func (m *memPatients) GetByID(_ context.Context, _, id uuid.UUID) (*patient.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, patient.ErrPatientNotFound
	}
	return p, nil
}

type memAvail struct {
	days map[string][]availability.Window // keyed by date
}

func (m *memAvail) GetDaily(_ context.Context, clinicID, staffID uuid.UUID, date string) (*availability.DailyAvailability, error) {
	windows, ok := m.days[date]
	if !ok {
		return nil, availability.ErrNoAvailability
	}
	return &availability.DailyAvailability{
		ID:       uuid.New(),
		ClinicID: clinicID,
		StaffID:  staffID,
		Date:     date,
		Windows:  windows,
	}, nil
}

func (m *memAvail) SetDaily(_ context.Context, d *availability.DailyAvailability) error {
	m.days[d.Date] = d.Windows
	return nil
}

func (m *memAvail) ListDailyRange(_ context.Context, _, _ uuid.UUID, _, _ string) ([]availability.DailyAvailability, error) {
	return nil, nil
}

func (m *memAvail) DeleteDaily(_ context.Context, _, _ uuid.UUID, date string) error {
	delete(m.days, date)
	return nil
}

func (m *memAvail) ListRecurring(_ context.Context, _, _ uuid.UUID) ([]availability.RecurringAvailability, error) {
	return nil, nil
}

func (m *memAvail) ListAllActiveRecurring(_ context.Context) ([]availability.RecurringAvailability, error) {
	return nil, nil
}

func (m *memAvail) CreateRecurring(_ context.Context, _ *availability.RecurringAvailability) error {
	return nil
}

func (m *memAvail) UpdateRecurring(_ context.Context, _ *availability.RecurringAvailability) error {
	return nil
}

func (m *memAvail) DeleteRecurring(_ context.Context, _, _ uuid.UUID) error {
	return nil
}

type memRules struct {
	rules []rules.Rule
}

func (m *memRules) List(_ context.Context, _ uuid.UUID) ([]rules.Rule, error) { return m.rules, nil }

func (m *memRules) ListActive(_ context.Context, _ uuid.UUID) ([]rules.Rule, error) {
	var out []rules.Rule
	for _, r := range m.rules {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRules) Get(_ context.Context, _, _ uuid.UUID) (*rules.Rule, error) {
	return nil, rules.ErrRuleNotFound
}

func (m *memRules) Create(_ context.Context, r *rules.Rule) error {
	m.rules = append(m.rules, *r)
	return nil
}

func (m *memRules) Update(_ context.Context, _ *rules.Rule) error { return nil }

func (m *memRules) Delete(_ context.Context, _, _ uuid.UUID) error { return nil }

// keyLocker serializes callers per (staff, date) key, mirroring the Redis
// locker's guarantee without a Redis server.
type keyLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLocker() *keyLocker {
	return &keyLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *keyLocker) WithStaffDayLock(ctx context.Context, staffID uuid.UUID, date string, fn func(ctx context.Context) error) error {
	key := staffID.String() + ":" + date
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

type sinkNotifier struct {
	mu            sync.Mutex
	confirmations []notify.AppointmentNotice
	cancellations []notify.AppointmentNotice
	reminders     []notify.AppointmentNotice
	fail          bool
	stall         bool // block until the caller's context expires
}

func (s *sinkNotifier) deliver(ctx context.Context, bucket *[]notify.AppointmentNotice, n notify.AppointmentNotice) error {
	if s.stall {
		<-ctx.Done()
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("delivery down")
	}
	*bucket = append(*bucket, n)
	return nil
}

func (s *sinkNotifier) SendConfirmation(ctx context.Context, n notify.AppointmentNotice) error {
	return s.deliver(ctx, &s.confirmations, n)
}

func (s *sinkNotifier) SendCancellation(ctx context.Context, n notify.AppointmentNotice) error {
	return s.deliver(ctx, &s.cancellations, n)
}

func (s *sinkNotifier) SendReminder(ctx context.Context, n notify.AppointmentNotice) error {
	return s.deliver(ctx, &s.reminders, n)
}

type sinkAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
	fail    bool
}

func (s *sinkAudit) Record(_ context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("audit store down")
	}
	s.entries = append(s.entries, e)
	return nil
}

// ---- fixture ----

type fixture struct {
	svc      *booking.Service
	repo     *memRepo
	clinics  *memClinics
	avail    *memAvail
	rules    *memRules
	notifier *sinkNotifier
	audits   *sinkAudit

	clinicID  uuid.UUID
	staffID   uuid.UUID
	typeID    uuid.UUID
	patientID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clinicID := uuid.New()
	staffID := uuid.New()
	typeID := uuid.New()
	patientID := uuid.New()

	email := "sam@example.com"
	phone := "+15550001"

	clinics := &memClinics{
		clinic: &clinic.Clinic{ID: clinicID, Name: "Northside Clinic", Timezone: "UTC"},
		types: map[uuid.UUID]*clinic.AppointmentType{
			typeID: {
				ID:              typeID,
				ClinicID:        clinicID,
				Name:            "Consultation",
				DurationMinutes: 30,
				Price:           decimal.NewFromInt(50),
				Active:          true,
			},
		},
		staff: map[uuid.UUID]*clinic.Staff{
			staffID: {ID: staffID, ClinicID: clinicID, Name: "Dr. Reyes", Active: true},
		},
	}

	patients := &memPatients{patients: map[uuid.UUID]*patient.Patient{
		patientID: {
			ID: patientID, ClinicID: clinicID,
			FirstName: "Sam", LastName: "Carter",
			Email: &email, Phone: &phone, SMSNotifications: true,
		},
	}}

	repo := newMemRepo()
	avail := &memAvail{days: map[string][]availability.Window{
		"2025-06-02": {{StartMinute: 9 * 60, EndMinute: 17 * 60}},
	}}
	ruleStore := &memRules{}
	notifier := &sinkNotifier{}
	audits := &sinkAudit{}

	eval := rules.NewEvaluator(patients, repo)

	svc := booking.NewService(
		repo, clinics, patients, avail, ruleStore, eval,
		newKeyLocker(), notifier, calendar.Noop{}, audits,
		zerolog.Nop(), 2*time.Second,
	)

	return &fixture{
		svc: svc, repo: repo, clinics: clinics, avail: avail, rules: ruleStore,
		notifier: notifier, audits: audits,
		clinicID: clinicID, staffID: staffID, typeID: typeID, patientID: patientID,
	}
}

func (f *fixture) request(start time.Time) booking.Request {
	return booking.Request{
		ClinicID:          f.clinicID,
		PatientID:         f.patientID,
		StaffID:           f.staffID,
		AppointmentTypeID: f.typeID,
		StartTime:         start,
	}
}

var nineAM = time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)

// ---- tests ----

func TestBook_Success(t *testing.T) {
	f := newFixture(t)

	appt, err := f.svc.Book(context.Background(), f.request(nineAM))
	require.NoError(t, err)

	assert.Equal(t, booking.StatusConfirmed, appt.Status)
	assert.True(t, appt.EndTime.Equal(nineAM.Add(30*time.Minute)), "end derived from type duration")

	stored, err := f.svc.Get(context.Background(), f.clinicID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, stored.Status)

	f.svc.Flush()
	require.Len(t, f.notifier.confirmations, 1)
	assert.Equal(t, "Sam Carter", f.notifier.confirmations[0].PatientName)
	require.Len(t, f.audits.entries, 1)
	assert.Equal(t, "appointment.booked", f.audits.entries[0].Action)
}

func TestBook_ApprovalTypeStartsScheduled(t *testing.T) {
	f := newFixture(t)
	f.clinics.types[f.typeID].RequiresApproval = true

	appt, err := f.svc.Book(context.Background(), f.request(nineAM))
	require.NoError(t, err)
	assert.Equal(t, booking.StatusScheduled, appt.Status)
}

func TestBook_InactiveTypeAndStaff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.clinics.types[f.typeID].Active = false
	_, err := f.svc.Book(ctx, f.request(nineAM))
	assert.ErrorIs(t, err, booking.ErrAppointmentTypeInactive)

	f.clinics.types[f.typeID].Active = true
	f.clinics.staff[f.staffID].Active = false
	_, err = f.svc.Book(ctx, f.request(nineAM))
	assert.ErrorIs(t, err, booking.ErrStaffInactive)
}

func TestBook_OverlapRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, f.request(nineAM))
	require.NoError(t, err)

	// Same slot again.
	_, err = f.svc.Book(ctx, f.request(nineAM))
	assert.ErrorIs(t, err, booking.ErrSlotUnavailable)

	// Partially overlapping slot.
	_, err = f.svc.Book(ctx, f.request(nineAM.Add(15*time.Minute)))
	assert.ErrorIs(t, err, booking.ErrSlotUnavailable)

	// Touching slot is fine: intervals are half-open.
	_, err = f.svc.Book(ctx, f.request(nineAM.Add(30*time.Minute)))
	assert.NoError(t, err)
}

func TestBook_OutsideWorkingWindow(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Book(context.Background(), f.request(
		time.Date(2025, time.June, 2, 18, 0, 0, 0, time.UTC)))
	assert.ErrorIs(t, err, booking.ErrSlotUnavailable)
}

func TestBook_NoAvailabilityForDate(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Book(context.Background(), f.request(
		time.Date(2025, time.June, 3, 9, 0, 0, 0, time.UTC)))
	assert.ErrorIs(t, err, booking.ErrSlotUnavailable)
}

func TestBook_RuleViolationMessageVerbatim(t *testing.T) {
	f := newFixture(t)

	minAdvance := 1440
	f.rules.rules = append(f.rules.rules, rules.Rule{
		ID:                uuid.New(),
		Name:              "day-ahead booking",
		Active:            true,
		MinAdvanceMinutes: &minAdvance,
	})

	_, err := f.svc.Book(context.Background(), f.request(nineAM))
	var rv *booking.RuleViolationError
	require.ErrorAs(t, err, &rv)
	assert.Equal(t, "Appointments must be booked at least 1440 minutes in advance.", rv.Error())
}

func TestCancel_FreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.request(nineAM))
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, f.clinicID, appt.ID, "patient", "conflict", true)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelledByPatient, cancelled.Status)
	f.svc.Flush()
	require.Len(t, f.notifier.cancellations, 1)

	// The freed range is immediately bookable again.
	_, err = f.svc.Book(ctx, f.request(nineAM))
	assert.NoError(t, err)
}

func TestCancel_AlreadyCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.request(nineAM))
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, f.clinicID, appt.ID, "staff", "", false)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, f.clinicID, appt.ID, "staff", "", false)
	assert.ErrorIs(t, err, booking.ErrInvalidStatusTransition)
}

func TestBook_SideEffectFailuresDoNotFailBooking(t *testing.T) {
	f := newFixture(t)
	f.notifier.fail = true
	f.audits.fail = true

	appt, err := f.svc.Book(context.Background(), f.request(nineAM))
	require.NoError(t, err, "booking outcome must not depend on side effects")
	assert.Equal(t, booking.StatusConfirmed, appt.Status)
	f.svc.Flush()
}

func TestBook_HungSideEffectDoesNotDelayCaller(t *testing.T) {
	f := newFixture(t)
	f.notifier.stall = true

	start := time.Now()
	appt, err := f.svc.Book(context.Background(), f.request(nineAM))
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, appt.Status)
	assert.Less(t, time.Since(start), 500*time.Millisecond,
		"booking response must not wait out the side-effect window")

	start = time.Now()
	_, err = f.svc.Cancel(context.Background(), f.clinicID, appt.ID, "staff", "", false)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond,
		"cancellation response must not wait out the side-effect window")

	f.svc.Flush()
}

func TestBookRecurring_Success(t *testing.T) {
	f := newFixture(t)
	f.avail.days["2025-06-09"] = f.avail.days["2025-06-02"]
	f.avail.days["2025-06-16"] = f.avail.days["2025-06-02"]

	booked, err := f.svc.BookRecurring(context.Background(), f.request(nineAM), booking.Weekly, 3)
	require.NoError(t, err)
	require.Len(t, booked, 3)
	assert.True(t, booked[1].StartTime.Equal(nineAM.AddDate(0, 0, 7)))
	assert.True(t, booked[2].StartTime.Equal(nineAM.AddDate(0, 0, 14)))
}

func TestBookRecurring_AbortsOnFirstFailureKeepingEarlier(t *testing.T) {
	f := newFixture(t)
	// Week 2 has no availability, week 3 would but must never be attempted.
	f.avail.days["2025-06-16"] = f.avail.days["2025-06-02"]

	booked, err := f.svc.BookRecurring(context.Background(), f.request(nineAM), booking.Weekly, 3)

	var re *booking.RecurringError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 2, re.Occurrence)
	assert.ErrorIs(t, re, booking.ErrSlotUnavailable)

	require.Len(t, booked, 1, "occurrence before the failure is kept")
	all, err := f.svc.List(context.Background(), f.clinicID, booking.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 1, "no occurrence after the failure was booked")
}

func TestBook_ConcurrentSameSlotExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Book(ctx, f.request(nineAM))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, booking.ErrSlotUnavailable)
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent booking may succeed")
}

func TestComplete_StampsCheckOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.request(nineAM))
	require.NoError(t, err)

	done, err := f.svc.Complete(ctx, f.clinicID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCompleted, done.Status)
	require.NotNil(t, done.CheckOutTime)

	// A completed appointment no longer blocks, but completion is terminal.
	_, err = f.svc.MarkNoShow(ctx, f.clinicID, appt.ID)
	assert.ErrorIs(t, err, booking.ErrInvalidStatusTransition)
}

func TestDispatchReminders_MarksSentOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.request(nineAM))
	require.NoError(t, err)

	window := 24 * time.Hour
	require.NoError(t, f.svc.DispatchReminders(ctx, nineAM.Add(-window), nineAM.Add(window)))
	require.Len(t, f.notifier.reminders, 1)

	// Second run is a no-op: the reminder is already marked sent.
	require.NoError(t, f.svc.DispatchReminders(ctx, nineAM.Add(-window), nineAM.Add(window)))
	assert.Len(t, f.notifier.reminders, 1)

	stored, err := f.svc.Get(ctx, f.clinicID, appt.ID)
	require.NoError(t, err)
	assert.True(t, stored.ReminderSent)
}

func TestBookRecurring_InvalidInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.BookRecurring(context.Background(), f.request(nineAM), booking.Frequency("daily"), 3)
	assert.ErrorIs(t, err, booking.ErrInvalidFrequency)

	_, err = f.svc.BookRecurring(context.Background(), f.request(nineAM), booking.Weekly, 0)
	assert.ErrorIs(t, err, booking.ErrInvalidOccurrences)
}
