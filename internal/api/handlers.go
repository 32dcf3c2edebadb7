package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/careslot/clinic-booking/internal/booking"
	redisclient "github.com/careslot/clinic-booking/internal/redis"
	"github.com/careslot/clinic-booking/internal/timeslot"
)

func listSlotsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := uuidParam(w, r, "clinicID")
		if !ok {
			return
		}
		staffID, ok := uuidParam(w, r, "staffID")
		if !ok {
			return
		}

		typeID, err := uuid.Parse(r.URL.Query().Get("type_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_type_id", "type_id must be a valid UUID")
			return
		}
		date := r.URL.Query().Get("date")
		if _, err := time.Parse(timeslot.DateLayout, date); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), clinicID, staffID, typeID, date)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponses(slots))
	}
}

func bookAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := uuidParam(w, r, "clinicID")
		if !ok {
			return
		}

		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		bookReq, ok := parseBookingRequest(w, clinicID, req)
		if !ok {
			return
		}

		appt, err := svc.Book(r.Context(), bookReq)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func bookRecurringHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := uuidParam(w, r, "clinicID")
		if !ok {
			return
		}

		var req RecurringBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		bookReq, ok := parseBookingRequest(w, clinicID, req.BookAppointmentRequest)
		if !ok {
			return
		}

		booked, err := svc.BookRecurring(r.Context(), bookReq, booking.Frequency(req.Frequency), req.Occurrences)

		resp := RecurringBookingResponse{Booked: make([]AppointmentResponse, 0, len(booked))}
		for i := range booked {
			resp.Booked = append(resp.Booked, toAppointmentResponse(&booked[i]))
		}

		if err != nil {
			var re *booking.RecurringError
			if errors.As(err, &re) {
				// Partial success: earlier occurrences stay booked.
				resp.FailedOccurrence = &re.Occurrence
				resp.FailureReason = re.Err.Error()
				writeJSON(w, http.StatusMultiStatus, resp)
				return
			}
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func getAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := uuidParam(w, r, "clinicID")
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.Get(r.Context(), clinicID, id)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := uuidParam(w, r, "clinicID")
		if !ok {
			return
		}

		f, ok := parseFilter(w, r)
		if !ok {
			return
		}

		appts, err := svc.List(r.Context(), clinicID, f)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		out := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			out = append(out, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func cancelAppointmentHandler(svc *booking.Service, byPatient bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := uuidParam(w, r, "clinicID")
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req CancelAppointmentRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		cancelledBy := req.CancelledBy
		if byPatient {
			cancelledBy = "patient"
		}

		appt, err := svc.Cancel(r.Context(), clinicID, id, cancelledBy, req.Reason, byPatient)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func completeAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := uuidParam(w, r, "clinicID")
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.Complete(r.Context(), clinicID, id)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func noShowAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := uuidParam(w, r, "clinicID")
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.MarkNoShow(r.Context(), clinicID, id)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func parseBookingRequest(w http.ResponseWriter, clinicID uuid.UUID, req BookAppointmentRequest) (booking.Request, bool) {
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
		return booking.Request{}, false
	}
	staffID, err := uuid.Parse(req.StaffID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_staff_id", "staff_id must be a valid UUID")
		return booking.Request{}, false
	}
	typeID, err := uuid.Parse(req.AppointmentTypeID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_type_id", "appointment_type_id must be a valid UUID")
		return booking.Request{}, false
	}
	if req.StartTime.IsZero() {
		writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time is required")
		return booking.Request{}, false
	}

	return booking.Request{
		ClinicID:          clinicID,
		PatientID:         patientID,
		StaffID:           staffID,
		AppointmentTypeID: typeID,
		StartTime:         req.StartTime,
		PatientNotes:      req.PatientNotes,
		SyncToCalendar:    req.SyncToCalendar,
	}, true
}

func parseFilter(w http.ResponseWriter, r *http.Request) (booking.Filter, bool) {
	var f booking.Filter
	q := r.URL.Query()

	if v := q.Get("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return f, false
		}
		f.PatientID = &id
	}
	if v := q.Get("staff_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_staff_id", "staff_id must be a valid UUID")
			return f, false
		}
		f.StaffID = &id
	}
	if v := q.Get("status"); v != "" {
		status := booking.Status(v)
		f.Status = &status
	}
	if v := q.Get("date"); v != "" {
		day, err := time.Parse(timeslot.DateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return f, false
		}
		next := day.AddDate(0, 0, 1)
		f.From = &day
		f.To = &next
	}

	return f, true
}

func handleBookingError(w http.ResponseWriter, err error) {
	var rv *booking.RuleViolationError
	if errors.As(err, &rv) {
		// The rule's message reaches the patient verbatim.
		writeError(w, http.StatusUnprocessableEntity, "rule_violation", rv.Violation.Message)
		return
	}

	switch {
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, booking.ErrSlotContended),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_contended", "this schedule is being booked, please retry shortly")
	case errors.Is(err, booking.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, booking.ErrAppointmentTypeInactive),
		errors.Is(err, booking.ErrStaffInactive):
		writeError(w, http.StatusUnprocessableEntity, "not_bookable", err.Error())
	case errors.Is(err, booking.ErrInvalidFrequency),
		errors.Is(err, booking.ErrInvalidOccurrences):
		writeError(w, http.StatusBadRequest, "invalid_recurrence", err.Error())
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
