package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/careslot/clinic-booking/internal/availability"
	"github.com/careslot/clinic-booking/internal/booking"
	"github.com/careslot/clinic-booking/internal/clinic"
	"github.com/careslot/clinic-booking/internal/rules"
	"github.com/careslot/clinic-booking/internal/timeslot"
)

type BookAppointmentRequest struct {
	PatientID         string    `json:"patient_id"`
	StaffID           string    `json:"staff_id"`
	AppointmentTypeID string    `json:"appointment_type_id"`
	StartTime         time.Time `json:"start_time"`
	PatientNotes      string    `json:"patient_notes,omitempty"`
	SyncToCalendar    bool      `json:"sync_to_calendar,omitempty"`
}

type RecurringBookingRequest struct {
	BookAppointmentRequest
	Frequency   string `json:"frequency"`
	Occurrences int    `json:"occurrences"`
}

type CancelAppointmentRequest struct {
	CancelledBy string `json:"cancelled_by,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

type AppointmentResponse struct {
	ID                uuid.UUID  `json:"id"`
	ClinicID          uuid.UUID  `json:"clinic_id"`
	PatientID         uuid.UUID  `json:"patient_id"`
	StaffID           uuid.UUID  `json:"staff_id"`
	AppointmentTypeID uuid.UUID  `json:"appointment_type_id"`
	StartTime         time.Time  `json:"start_time"`
	EndTime           time.Time  `json:"end_time"`
	Status            string     `json:"status"`
	PatientNotes      string     `json:"patient_notes,omitempty"`
	PaymentStatus     string     `json:"payment_status"`
	PaymentAmount     string     `json:"payment_amount"`
	CancelReason      *string    `json:"cancel_reason,omitempty"`
	CheckOutTime      *time.Time `json:"check_out_time,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                a.ID,
		ClinicID:          a.ClinicID,
		PatientID:         a.PatientID,
		StaffID:           a.StaffID,
		AppointmentTypeID: a.AppointmentTypeID,
		StartTime:         a.StartTime,
		EndTime:           a.EndTime,
		Status:            string(a.Status),
		PatientNotes:      a.PatientNotes,
		PaymentStatus:     string(a.PaymentStatus),
		PaymentAmount:     a.PaymentAmount.StringFixed(2),
		CancelReason:      a.CancelReason,
		CheckOutTime:      a.CheckOutTime,
		CreatedAt:         a.CreatedAt,
	}
}

type RecurringBookingResponse struct {
	Booked           []AppointmentResponse `json:"booked"`
	FailedOccurrence *int                  `json:"failed_occurrence,omitempty"`
	FailureReason    string                `json:"failure_reason,omitempty"`
}

type SlotResponse struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

func toSlotResponses(slots []timeslot.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{StartTime: s.Start, EndTime: s.End})
	}
	return out
}

type AppointmentTypeResponse struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	DurationMinutes int             `json:"duration_minutes"`
	Price           decimal.Decimal `json:"price"`
	Color           string          `json:"color,omitempty"`
}

func toAppointmentTypeResponse(t *clinic.AppointmentType) AppointmentTypeResponse {
	return AppointmentTypeResponse{
		ID:              t.ID,
		Name:            t.Name,
		DurationMinutes: t.DurationMinutes,
		Price:           t.Price,
		Color:           t.Color,
	}
}

type RuleRequest struct {
	Name               string   `json:"name"`
	Description        string   `json:"description,omitempty"`
	Active             *bool    `json:"active,omitempty"`
	MinAdvanceMinutes  *int     `json:"min_advance_minutes,omitempty"`
	MaxAdvanceMinutes  *int     `json:"max_advance_minutes,omitempty"`
	AppointmentTypeIDs []string `json:"appointment_type_ids,omitempty"`
	StaffIDs           []string `json:"staff_ids,omitempty"`
	NewPatientsAllowed *bool    `json:"new_patients_allowed,omitempty"`
	MaxPerDay          *int     `json:"max_per_day,omitempty"`
	MaxPerWeek         *int     `json:"max_per_week,omitempty"`
	MaxPerMonth        *int     `json:"max_per_month,omitempty"`
}

type RuleResponse struct {
	ID                 uuid.UUID   `json:"id"`
	Name               string      `json:"name"`
	Description        string      `json:"description,omitempty"`
	Type               string      `json:"type"`
	Active             bool        `json:"active"`
	MinAdvanceMinutes  *int        `json:"min_advance_minutes,omitempty"`
	MaxAdvanceMinutes  *int        `json:"max_advance_minutes,omitempty"`
	AppointmentTypeIDs []uuid.UUID `json:"appointment_type_ids,omitempty"`
	StaffIDs           []uuid.UUID `json:"staff_ids,omitempty"`
	NewPatientsAllowed *bool       `json:"new_patients_allowed,omitempty"`
	MaxPerDay          *int        `json:"max_per_day,omitempty"`
	MaxPerWeek         *int        `json:"max_per_week,omitempty"`
	MaxPerMonth        *int        `json:"max_per_month,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
}

func toRuleResponse(r *rules.Rule) RuleResponse {
	return RuleResponse{
		ID:                 r.ID,
		Name:               r.Name,
		Description:        r.Description,
		Type:               string(r.DerivedType()),
		Active:             r.Active,
		MinAdvanceMinutes:  r.MinAdvanceMinutes,
		MaxAdvanceMinutes:  r.MaxAdvanceMinutes,
		AppointmentTypeIDs: r.AppointmentTypeIDs,
		StaffIDs:           r.StaffIDs,
		NewPatientsAllowed: r.NewPatientsAllowed,
		MaxPerDay:          r.MaxPerDay,
		MaxPerWeek:         r.MaxPerWeek,
		MaxPerMonth:        r.MaxPerMonth,
		CreatedAt:          r.CreatedAt,
	}
}

type WindowPayload struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

type DailyAvailabilityRequest struct {
	Date    string          `json:"date"`
	Windows []WindowPayload `json:"windows"`
}

type DailyAvailabilityResponse struct {
	Date    string          `json:"date"`
	Windows []WindowPayload `json:"windows"`
}

type RecurringAvailabilityRequest struct {
	Weekday int             `json:"weekday"` // 0 = Sunday
	Windows []WindowPayload `json:"windows"`
	Active  *bool           `json:"active,omitempty"`
}

type RecurringAvailabilityResponse struct {
	ID      uuid.UUID       `json:"id"`
	Weekday int             `json:"weekday"`
	Windows []WindowPayload `json:"windows"`
	Active  bool            `json:"active"`
}

func toWindows(payload []WindowPayload) []availability.Window {
	out := make([]availability.Window, 0, len(payload))
	for _, w := range payload {
		out = append(out, availability.Window{StartMinute: w.StartMinute, EndMinute: w.EndMinute})
	}
	return out
}

func fromWindows(windows []availability.Window) []WindowPayload {
	out := make([]WindowPayload, 0, len(windows))
	for _, w := range windows {
		out = append(out, WindowPayload{StartMinute: w.StartMinute, EndMinute: w.EndMinute})
	}
	return out
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
