package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/careslot/clinic-booking/internal/availability"
	"github.com/careslot/clinic-booking/internal/clinic"
	"github.com/careslot/clinic-booking/internal/patient"
	"github.com/careslot/clinic-booking/internal/rules"
)

func isNotFound(err error) bool {
	return errors.Is(err, clinic.ErrClinicNotFound) ||
		errors.Is(err, clinic.ErrStaffNotFound) ||
		errors.Is(err, clinic.ErrAppointmentTypeNotFound) ||
		errors.Is(err, patient.ErrPatientNotFound) ||
		errors.Is(err, rules.ErrRuleNotFound) ||
		errors.Is(err, availability.ErrPatternNotFound)
}

func listRulesHandler(store rules.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := uuidParam(w, r, "clinicID")
		if !ok {
			return
		}

		clinicRules, err := store.List(r.Context(), clinicID)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		out := make([]RuleResponse, 0, len(clinicRules))
		for i := range clinicRules {
			out = append(out, toRuleResponse(&clinicRules[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getRuleHandler(store rules.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := uuidParam(w, r, "clinicID")
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		rule, err := store.Get(r.Context(), clinicID, id)
		if err != nil {
			handleBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRuleResponse(rule))
	}
}

func createRuleHandler(store rules.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := uuidParam(w, r, "clinicID")
		if !ok {
			return
		}

		var req RuleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		rule, ok := ruleFromRequest(w, clinicID, req)
		if !ok {
			return
		}
		rule.ID = uuid.New()

		if err := store.Create(r.Context(), rule); err != nil {
			handleBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toRuleResponse(rule))
	}
}

func updateRuleHandler(store rules.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := uuidParam(w, r, "clinicID")
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req RuleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		rule, ok := ruleFromRequest(w, clinicID, req)
		if !ok {
			return
		}
		rule.ID = id

		if err := store.Update(r.Context(), rule); err != nil {
			handleBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRuleResponse(rule))
	}
}

func deleteRuleHandler(store rules.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := uuidParam(w, r, "clinicID")
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		if err := store.Delete(r.Context(), clinicID, id); err != nil {
			handleBookingError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ruleFromRequest(w http.ResponseWriter, clinicID uuid.UUID, req RuleRequest) (*rules.Rule, bool) {
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_rule", "name is required")
		return nil, false
	}

	typeIDs, err := parseUUIDs(req.AppointmentTypeIDs)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_rule", "appointment_type_ids must be valid UUIDs")
		return nil, false
	}
	staffIDs, err := parseUUIDs(req.StaffIDs)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_rule", "staff_ids must be valid UUIDs")
		return nil, false
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	return &rules.Rule{
		ClinicID:           clinicID,
		Name:               req.Name,
		Description:        req.Description,
		Active:             active,
		MinAdvanceMinutes:  req.MinAdvanceMinutes,
		MaxAdvanceMinutes:  req.MaxAdvanceMinutes,
		AppointmentTypeIDs: typeIDs,
		StaffIDs:           staffIDs,
		NewPatientsAllowed: req.NewPatientsAllowed,
		MaxPerDay:          req.MaxPerDay,
		MaxPerWeek:         req.MaxPerWeek,
		MaxPerMonth:        req.MaxPerMonth,
	}, true
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
