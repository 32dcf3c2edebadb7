package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careslot/clinic-booking/internal/audit"
	"github.com/careslot/clinic-booking/internal/availability"
	"github.com/careslot/clinic-booking/internal/calendar"
	"github.com/careslot/clinic-booking/internal/clinic"
	"github.com/careslot/clinic-booking/internal/notify"
	"github.com/careslot/clinic-booking/internal/patient"
	redisclient "github.com/careslot/clinic-booking/internal/redis"
	"github.com/careslot/clinic-booking/internal/rules"
	"github.com/careslot/clinic-booking/internal/timeslot"
)

var (
	ErrSlotUnavailable         = errors.New("the requested time is not available")
	ErrSlotContended           = errors.New("another booking for this schedule is in progress, please retry")
	ErrAppointmentTypeInactive = errors.New("this appointment type is not bookable")
	ErrStaffInactive           = errors.New("this staff member is not accepting bookings")
	ErrInvalidFrequency        = errors.New("invalid recurrence frequency")
	ErrInvalidOccurrences      = errors.New("occurrence count must be at least 1")
)

// RuleViolationError wraps a booking rule violation. Its message is the
// rule's user-facing text and is returned to the patient verbatim.
type RuleViolationError struct {
	Violation rules.Violation
}

func (e *RuleViolationError) Error() string {
	return e.Violation.Message
}

// RecurringError reports which occurrence of a recurring series failed.
// Appointments booked before the failure are kept; Occurrence is 1-based.
type RecurringError struct {
	Occurrence int
	Err        error
}

func (e *RecurringError) Error() string {
	return fmt.Sprintf("occurrence %d: %v", e.Occurrence, e.Err)
}

func (e *RecurringError) Unwrap() error {
	return e.Err
}

// Service orchestrates the booking pipeline: lock the staff member's day,
// verify the slot against availability, run the clinic's rules, commit,
// then fan out side effects that never affect the booking outcome.
type Service struct {
	repo     Repository
	clinics  clinic.Repository
	patients patient.Directory
	avail    availability.Repository
	rules    rules.Repository
	eval     *rules.Evaluator
	locker   redisclient.Locker
	notifier notify.Notifier
	cal      calendar.Sync
	audits   audit.Recorder
	log      zerolog.Logger

	sideEffectTimeout time.Duration
	now               func() time.Time

	// effects tracks detached side-effect fan-outs.
	effects sync.WaitGroup
}

func NewService(
	repo Repository,
	clinics clinic.Repository,
	patients patient.Directory,
	avail availability.Repository,
	ruleStore rules.Repository,
	eval *rules.Evaluator,
	locker redisclient.Locker,
	notifier notify.Notifier,
	cal calendar.Sync,
	audits audit.Recorder,
	log zerolog.Logger,
	sideEffectTimeout time.Duration,
) *Service {
	return &Service{
		repo:              repo,
		clinics:           clinics,
		patients:          patients,
		avail:             avail,
		rules:             ruleStore,
		eval:              eval,
		locker:            locker,
		notifier:          notifier,
		cal:               cal,
		audits:            audits,
		log:               log,
		sideEffectTimeout: sideEffectTimeout,
		now:               time.Now,
	}
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Flush blocks until all in-flight side-effect fan-outs have finished.
// Tests only; production callers never wait on side effects.
func (s *Service) Flush() {
	s.effects.Wait()
}

// AvailableSlots returns the bookable slots for one staff member on one
// clinic-local date, for the given appointment type. A date with no
// availability yields an empty list, not an error.
func (s *Service) AvailableSlots(ctx context.Context, clinicID, staffID, typeID uuid.UUID, date string) ([]timeslot.Slot, error) {
	cl, err := s.clinics.GetClinic(ctx, clinicID)
	if err != nil {
		return nil, fmt.Errorf("load clinic: %w", err)
	}
	loc, err := cl.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve clinic timezone: %w", err)
	}

	apptType, err := s.clinics.GetAppointmentType(ctx, clinicID, typeID)
	if err != nil {
		return nil, fmt.Errorf("load appointment type: %w", err)
	}
	if !apptType.Active {
		return nil, ErrAppointmentTypeInactive
	}

	windows, blocked, err := s.dayState(ctx, clinicID, staffID, date, loc)
	if err != nil {
		if errors.Is(err, availability.ErrNoAvailability) {
			return []timeslot.Slot{}, nil
		}
		return nil, err
	}

	slots, err := availability.ResolveSlots(windows, blocked, apptType.Duration(), availability.DefaultIncrement)
	if err != nil {
		return nil, err
	}

	// Slots already in the past are never offered.
	now := s.now()
	upcoming := slots[:0]
	for _, slot := range slots {
		if slot.Start.After(now) {
			upcoming = append(upcoming, slot)
		}
	}
	return upcoming, nil
}

// Book runs one booking attempt end to end. The (staff, date) lock plus
// the overlap re-check inside CreateConfirmed guarantee that two requests
// for overlapping slots cannot both succeed.
func (s *Service) Book(ctx context.Context, req Request) (*Appointment, error) {
	cl, err := s.clinics.GetClinic(ctx, req.ClinicID)
	if err != nil {
		return nil, fmt.Errorf("load clinic: %w", err)
	}
	loc, err := cl.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve clinic timezone: %w", err)
	}

	apptType, err := s.clinics.GetAppointmentType(ctx, req.ClinicID, req.AppointmentTypeID)
	if err != nil {
		return nil, fmt.Errorf("load appointment type: %w", err)
	}
	if !apptType.Active {
		return nil, ErrAppointmentTypeInactive
	}

	staff, err := s.clinics.GetStaff(ctx, req.ClinicID, req.StaffID)
	if err != nil {
		return nil, fmt.Errorf("load staff: %w", err)
	}
	if !staff.Active {
		return nil, ErrStaffInactive
	}

	// End time is always derived here; clients never supply it.
	candidate, err := timeslot.New(req.StartTime, req.StartTime.Add(apptType.Duration()))
	if err != nil {
		return nil, err
	}
	date := candidate.Start.In(loc).Format(timeslot.DateLayout)

	var created *Appointment

	err = s.locker.WithStaffDayLock(ctx, req.StaffID, date, func(lockCtx context.Context) error {
		windows, blocked, err := s.dayState(lockCtx, req.ClinicID, req.StaffID, date, loc)
		if err != nil {
			if errors.Is(err, availability.ErrNoAvailability) {
				return ErrSlotUnavailable
			}
			return err
		}

		if !availability.CheckSlot(candidate, windows, blocked) {
			return ErrSlotUnavailable
		}

		clinicRules, err := s.rules.ListActive(lockCtx, req.ClinicID)
		if err != nil {
			return fmt.Errorf("load booking rules: %w", err)
		}
		violation, err := s.eval.Evaluate(lockCtx, clinicRules, rules.Candidate{
			ClinicID:          req.ClinicID,
			PatientID:         req.PatientID,
			StaffID:           req.StaffID,
			AppointmentTypeID: req.AppointmentTypeID,
			StartTime:         candidate.Start,
		}, loc)
		if err != nil {
			return fmt.Errorf("evaluate booking rules: %w", err)
		}
		if violation != nil {
			return &RuleViolationError{Violation: *violation}
		}

		status := StatusConfirmed
		if apptType.RequiresApproval {
			status = StatusScheduled
		}

		appt := &Appointment{
			ID:                uuid.New(),
			ClinicID:          req.ClinicID,
			PatientID:         req.PatientID,
			StaffID:           req.StaffID,
			AppointmentTypeID: req.AppointmentTypeID,
			StartTime:         candidate.Start,
			EndTime:           candidate.End,
			Status:            status,
			PatientNotes:      req.PatientNotes,
			PaymentStatus:     PaymentPending,
			PaymentAmount:     apptType.Price,
		}

		if err := s.repo.CreateConfirmed(lockCtx, appt); err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return ErrSlotUnavailable
			}
			return fmt.Errorf("commit appointment: %w", err)
		}

		created = appt
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotContended
		}
		return nil, err
	}

	// Fan-out is detached: the caller gets the committed appointment
	// without waiting on notification, calendar, or audit delivery.
	s.effects.Add(1)
	go func() {
		defer s.effects.Done()
		s.afterBooking(created, cl, staff, apptType, req.SyncToCalendar)
	}()

	return created, nil
}

// BookRecurring books a series of occurrences starting at req.StartTime.
// The first failure aborts the remainder; appointments already booked are
// kept and returned alongside a RecurringError naming the occurrence.
func (s *Service) BookRecurring(ctx context.Context, req Request, freq Frequency, occurrences int) ([]Appointment, error) {
	if !freq.Valid() {
		return nil, ErrInvalidFrequency
	}
	if occurrences < 1 {
		return nil, ErrInvalidOccurrences
	}

	booked := make([]Appointment, 0, occurrences)
	start := req.StartTime

	for i := 0; i < occurrences; i++ {
		occReq := req
		occReq.StartTime = start

		appt, err := s.Book(ctx, occReq)
		if err != nil {
			return booked, &RecurringError{Occurrence: i + 1, Err: err}
		}
		booked = append(booked, *appt)

		start = freq.Next(start)
	}

	return booked, nil
}

// Cancel moves an appointment out of its blocking status, which frees its
// time range for other bookings. byPatient selects the patient-initiated
// status so dashboards can tell the two apart.
func (s *Service) Cancel(ctx context.Context, clinicID, id uuid.UUID, cancelledBy, reason string, byPatient bool) (*Appointment, error) {
	to := StatusCancelled
	if byPatient {
		to = StatusCancelledByPatient
	}

	appt, err := s.repo.UpdateStatus(ctx, clinicID, id,
		[]Status{StatusScheduled, StatusConfirmed}, to,
		StatusChange{CancelledBy: &cancelledBy, CancelReason: &reason})
	if err != nil {
		return nil, err
	}

	s.effects.Add(1)
	go func() {
		defer s.effects.Done()
		s.afterCancellation(appt, reason)
	}()

	return appt, nil
}

// Complete marks a confirmed appointment as done and stamps check-out.
func (s *Service) Complete(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error) {
	checkOut := s.now()
	return s.repo.UpdateStatus(ctx, clinicID, id,
		[]Status{StatusScheduled, StatusConfirmed}, StatusCompleted,
		StatusChange{CheckOutAt: &checkOut})
}

// MarkNoShow records that the patient never arrived.
func (s *Service) MarkNoShow(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error) {
	return s.repo.UpdateStatus(ctx, clinicID, id,
		[]Status{StatusScheduled, StatusConfirmed}, StatusNoShow, StatusChange{})
}

// Get retrieves one appointment.
func (s *Service) Get(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, clinicID, id)
}

// List retrieves appointments matching the filter.
func (s *Service) List(ctx context.Context, clinicID uuid.UUID, f Filter) ([]Appointment, error) {
	return s.repo.List(ctx, clinicID, f)
}

// DispatchReminders sends a reminder for every unsent appointment starting
// within [from, to) and marks it sent. Delivery failures skip the mark so
// the next worker run retries.
func (s *Service) DispatchReminders(ctx context.Context, from, to time.Time) error {
	due, err := s.repo.ListReminderDue(ctx, from, to)
	if err != nil {
		return fmt.Errorf("list due reminders: %w", err)
	}

	for i := range due {
		appt := &due[i]

		notice, err := s.buildNotice(ctx, appt, "")
		if err != nil {
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("assemble reminder")
			continue
		}
		if err := s.notifier.SendReminder(ctx, notice); err != nil {
			s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("reminder delivery failed")
			continue
		}
		if err := s.repo.MarkReminderSent(ctx, appt.ClinicID, appt.ID); err != nil {
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("mark reminder sent")
		}
	}

	return nil
}

// dayState loads the working windows and blocked ranges for one staff-day.
func (s *Service) dayState(ctx context.Context, clinicID, staffID uuid.UUID, date string, loc *time.Location) (windows, blocked []timeslot.Slot, err error) {
	daily, err := s.avail.GetDaily(ctx, clinicID, staffID, date)
	if err != nil {
		return nil, nil, err
	}
	windows, err = daily.Slots(loc)
	if err != nil {
		return nil, nil, err
	}

	day, err := timeslot.DayBounds(date, loc)
	if err != nil {
		return nil, nil, err
	}
	existing, err := s.repo.ListBlockingInRange(ctx, clinicID, staffID, day.Start, day.End)
	if err != nil {
		return nil, nil, fmt.Errorf("load existing appointments: %w", err)
	}

	blocked = make([]timeslot.Slot, 0, len(existing))
	for _, a := range existing {
		blocked = append(blocked, timeslot.Slot{Start: a.StartTime, End: a.EndTime})
	}
	return windows, blocked, nil
}

// afterBooking delivers the post-commit side effects concurrently within
// a bounded window, detached from the booking caller. Failures are logged
// and swallowed: the appointment is already committed and the patient
// already has their confirmation result.
func (s *Service) afterBooking(appt *Appointment, cl *clinic.Clinic, staff *clinic.Staff, apptType *clinic.AppointmentType, syncCalendar bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.sideEffectTimeout)
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		notice, err := s.noticeFor(ctx, appt, cl, staff, apptType, "")
		if err != nil {
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("assemble confirmation")
			return
		}
		if err := s.notifier.SendConfirmation(ctx, notice); err != nil {
			s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("confirmation delivery failed")
		}
	}()

	if syncCalendar {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.cal.PushAppointment(ctx, calendar.Event{
				ClinicID:      appt.ClinicID,
				AppointmentID: appt.ID,
				StaffID:       appt.StaffID,
				Title:         fmt.Sprintf("%s - %s", apptType.Name, staff.Name),
				StartTime:     appt.StartTime,
				EndTime:       appt.EndTime,
			})
			if err != nil {
				s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("calendar push failed")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := s.audits.Record(ctx, audit.Entry{
			ClinicID:   appt.ClinicID,
			Action:     "appointment.booked",
			Resource:   "appointment",
			ResourceID: appt.ID,
			Detail:     fmt.Sprintf("%s at %s", apptType.Name, appt.StartTime.Format(time.RFC3339)),
		})
		if err != nil {
			s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("audit record failed")
		}
	}()

	wg.Wait()
}

func (s *Service) afterCancellation(appt *Appointment, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.sideEffectTimeout)
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		notice, err := s.buildNotice(ctx, appt, reason)
		if err != nil {
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("assemble cancellation")
			return
		}
		if err := s.notifier.SendCancellation(ctx, notice); err != nil {
			s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("cancellation delivery failed")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.cal.RemoveAppointment(ctx, appt.ClinicID, appt.ID); err != nil {
			s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("calendar removal failed")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := s.audits.Record(ctx, audit.Entry{
			ClinicID:   appt.ClinicID,
			Action:     "appointment.cancelled",
			Resource:   "appointment",
			ResourceID: appt.ID,
			Detail:     reason,
		})
		if err != nil {
			s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("audit record failed")
		}
	}()

	wg.Wait()
}

// buildNotice hydrates a notice from repositories when the caller holds
// only the appointment row.
func (s *Service) buildNotice(ctx context.Context, appt *Appointment, cancelReason string) (notify.AppointmentNotice, error) {
	cl, err := s.clinics.GetClinic(ctx, appt.ClinicID)
	if err != nil {
		return notify.AppointmentNotice{}, fmt.Errorf("load clinic: %w", err)
	}
	staff, err := s.clinics.GetStaff(ctx, appt.ClinicID, appt.StaffID)
	if err != nil {
		return notify.AppointmentNotice{}, fmt.Errorf("load staff: %w", err)
	}
	apptType, err := s.clinics.GetAppointmentType(ctx, appt.ClinicID, appt.AppointmentTypeID)
	if err != nil {
		return notify.AppointmentNotice{}, fmt.Errorf("load appointment type: %w", err)
	}
	return s.noticeFor(ctx, appt, cl, staff, apptType, cancelReason)
}

func (s *Service) noticeFor(ctx context.Context, appt *Appointment, cl *clinic.Clinic, staff *clinic.Staff, apptType *clinic.AppointmentType, cancelReason string) (notify.AppointmentNotice, error) {
	p, err := s.patients.GetByID(ctx, appt.ClinicID, appt.PatientID)
	if err != nil {
		return notify.AppointmentNotice{}, fmt.Errorf("load patient: %w", err)
	}

	notice := notify.AppointmentNotice{
		AppointmentID: appt.ID.String(),
		ClinicName:    cl.Name,
		StaffName:     staff.Name,
		PatientName:   p.FullName(),
		SMSOptIn:      p.SMSNotifications,
		ServiceName:   apptType.Name,
		StartTime:     appt.StartTime,
		CancelReason:  cancelReason,
	}
	if p.Email != nil {
		notice.PatientEmail = *p.Email
	}
	if p.Phone != nil {
		notice.PatientPhone = *p.Phone
	}
	return notice, nil
}
