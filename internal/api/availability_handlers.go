package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/careslot/clinic-booking/internal/availability"
	"github.com/careslot/clinic-booking/internal/clinic"
	"github.com/careslot/clinic-booking/internal/timeslot"
)

func listAppointmentTypesHandler(clinics clinic.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := uuidParam(w, r, "clinicID")
		if !ok {
			return
		}

		types, err := clinics.ListActiveAppointmentTypes(r.Context(), clinicID)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		out := make([]AppointmentTypeResponse, 0, len(types))
		for i := range types {
			out = append(out, toAppointmentTypeResponse(&types[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func listDailyAvailabilityHandler(store availability.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := uuidParam(w, r, "clinicID")
		if !ok {
			return
		}
		staffID, ok := uuidParam(w, r, "staffID")
		if !ok {
			return
		}

		from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
		if !validDate(from) || !validDate(to) {
			writeError(w, http.StatusBadRequest, "invalid_range", "from and to must be YYYY-MM-DD")
			return
		}

		days, err := store.ListDailyRange(r.Context(), clinicID, staffID, from, to)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		out := make([]DailyAvailabilityResponse, 0, len(days))
		for _, d := range days {
			out = append(out, DailyAvailabilityResponse{Date: d.Date, Windows: fromWindows(d.Windows)})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func setDailyAvailabilityHandler(store availability.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := uuidParam(w, r, "clinicID")
		if !ok {
			return
		}
		staffID, ok := uuidParam(w, r, "staffID")
		if !ok {
			return
		}

		var req DailyAvailabilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if !validDate(req.Date) {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		windows := toWindows(req.Windows)
		for _, win := range windows {
			if err := win.Validate(); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_window", err.Error())
				return
			}
		}

		d := &availability.DailyAvailability{
			ID:       uuid.New(),
			ClinicID: clinicID,
			StaffID:  staffID,
			Date:     req.Date,
			Windows:  windows,
		}
		if err := store.SetDaily(r.Context(), d); err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, DailyAvailabilityResponse{Date: d.Date, Windows: fromWindows(d.Windows)})
	}
}

func deleteDailyAvailabilityHandler(store availability.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := uuidParam(w, r, "clinicID")
		if !ok {
			return
		}
		staffID, ok := uuidParam(w, r, "staffID")
		if !ok {
			return
		}

		date := r.URL.Query().Get("date")
		if !validDate(date) {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		if err := store.DeleteDaily(r.Context(), clinicID, staffID, date); err != nil {
			handleBookingError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listRecurringAvailabilityHandler(store availability.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := uuidParam(w, r, "clinicID")
		if !ok {
			return
		}
		staffID, ok := uuidParam(w, r, "staffID")
		if !ok {
			return
		}

		patterns, err := store.ListRecurring(r.Context(), clinicID, staffID)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		out := make([]RecurringAvailabilityResponse, 0, len(patterns))
		for _, p := range patterns {
			out = append(out, toRecurringResponse(&p))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func createRecurringAvailabilityHandler(store availability.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := uuidParam(w, r, "clinicID")
		if !ok {
			return
		}
		staffID, ok := uuidParam(w, r, "staffID")
		if !ok {
			return
		}

		p, ok := parseRecurringRequest(w, r)
		if !ok {
			return
		}
		p.ID = uuid.New()
		p.ClinicID = clinicID
		p.StaffID = staffID

		if err := store.CreateRecurring(r.Context(), p); err != nil {
			if errors.Is(err, availability.ErrDuplicatePattern) {
				writeError(w, http.StatusConflict, "duplicate_pattern", err.Error())
				return
			}
			handleBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toRecurringResponse(p))
	}
}

func updateRecurringAvailabilityHandler(store availability.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := uuidParam(w, r, "clinicID")
		if !ok {
			return
		}
		staffID, ok := uuidParam(w, r, "staffID")
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		p, ok := parseRecurringRequest(w, r)
		if !ok {
			return
		}
		p.ID = id
		p.ClinicID = clinicID
		p.StaffID = staffID

		if err := store.UpdateRecurring(r.Context(), p); err != nil {
			if errors.Is(err, availability.ErrDuplicatePattern) {
				writeError(w, http.StatusConflict, "duplicate_pattern", err.Error())
				return
			}
			handleBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRecurringResponse(p))
	}
}

func deleteRecurringAvailabilityHandler(store availability.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := uuidParam(w, r, "clinicID")
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		if err := store.DeleteRecurring(r.Context(), clinicID, id); err != nil {
			handleBookingError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func parseRecurringRequest(w http.ResponseWriter, r *http.Request) (*availability.RecurringAvailability, bool) {
	var req RecurringAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return nil, false
	}
	if req.Weekday < 0 || req.Weekday > 6 {
		writeError(w, http.StatusBadRequest, "invalid_weekday", "weekday must be 0 (Sunday) through 6 (Saturday)")
		return nil, false
	}

	windows := toWindows(req.Windows)
	for _, win := range windows {
		if err := win.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_window", err.Error())
			return nil, false
		}
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	return &availability.RecurringAvailability{
		Weekday: time.Weekday(req.Weekday),
		Windows: windows,
		Active:  active,
	}, true
}

func toRecurringResponse(p *availability.RecurringAvailability) RecurringAvailabilityResponse {
	return RecurringAvailabilityResponse{
		ID:      p.ID,
		Weekday: int(p.Weekday),
		Windows: fromWindows(p.Windows),
		Active:  p.Active,
	}
}

func validDate(s string) bool {
	_, err := time.Parse(timeslot.DateLayout, s)
	return err == nil
}
