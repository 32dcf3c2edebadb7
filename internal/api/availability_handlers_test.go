package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careslot/clinic-booking/internal/availability"
)

// stubAvailability keeps one recurring pattern per (staff, weekday), the
// same uniqueness the database enforces.
type stubAvailability struct {
	recurring map[uuid.UUID]*availability.RecurringAvailability
}

func newStubAvailability() *stubAvailability {
	return &stubAvailability{recurring: make(map[uuid.UUID]*availability.RecurringAvailability)}
}

func (s *stubAvailability) GetDaily(context.Context, uuid.UUID, uuid.UUID, string) (*availability.DailyAvailability, error) {
	return nil, availability.ErrNoAvailability
}

func (s *stubAvailability) SetDaily(context.Context, *availability.DailyAvailability) error {
	return nil
}

func (s *stubAvailability) ListDailyRange(context.Context, uuid.UUID, uuid.UUID, string, string) ([]availability.DailyAvailability, error) {
	return nil, nil
}

func (s *stubAvailability) DeleteDaily(context.Context, uuid.UUID, uuid.UUID, string) error {
	return nil
}

func (s *stubAvailability) ListRecurring(_ context.Context, _, staffID uuid.UUID) ([]availability.RecurringAvailability, error) {
	var out []availability.RecurringAvailability
	for _, p := range s.recurring {
		if p.StaffID == staffID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *stubAvailability) ListAllActiveRecurring(context.Context) ([]availability.RecurringAvailability, error) {
	return nil, nil
}

func (s *stubAvailability) CreateRecurring(_ context.Context, p *availability.RecurringAvailability) error {
	for _, existing := range s.recurring {
		if existing.StaffID == p.StaffID && existing.Weekday == p.Weekday {
			return availability.ErrDuplicatePattern
		}
	}
	s.recurring[p.ID] = p
	return nil
}

func (s *stubAvailability) UpdateRecurring(_ context.Context, p *availability.RecurringAvailability) error {
	if _, ok := s.recurring[p.ID]; !ok {
		return availability.ErrPatternNotFound
	}
	for id, existing := range s.recurring {
		if id != p.ID && existing.StaffID == p.StaffID && existing.Weekday == p.Weekday {
			return availability.ErrDuplicatePattern
		}
	}
	s.recurring[p.ID] = p
	return nil
}

func (s *stubAvailability) DeleteRecurring(_ context.Context, _, id uuid.UUID) error {
	if _, ok := s.recurring[id]; !ok {
		return availability.ErrPatternNotFound
	}
	delete(s.recurring, id)
	return nil
}

func availabilityRouter(store availability.Repository) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1/clinics/{clinicID}/staff/{staffID}/availability", func(r chi.Router) {
		r.Post("/recurring", createRecurringAvailabilityHandler(store))
		r.Put("/recurring/{id}", updateRecurringAvailabilityHandler(store))
	})
	return r
}

func TestCreateRecurring_DuplicateWeekdayConflicts(t *testing.T) {
	store := newStubAvailability()
	router := availabilityRouter(store)
	base := "/api/v1/clinics/" + uuid.NewString() + "/staff/" + uuid.NewString() + "/availability/recurring"

	body := `{"weekday":1,"windows":[{"start_minute":540,"end_minute":720}]}`

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, base, strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Same staff, same weekday again.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, base, strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "duplicate_pattern", resp.Error)
}

func TestUpdateRecurring_MoveOntoTakenWeekdayConflicts(t *testing.T) {
	store := newStubAvailability()
	router := availabilityRouter(store)
	base := "/api/v1/clinics/" + uuid.NewString() + "/staff/" + uuid.NewString() + "/availability/recurring"

	monday := `{"weekday":1,"windows":[{"start_minute":540,"end_minute":720}]}`
	tuesday := `{"weekday":2,"windows":[{"start_minute":540,"end_minute":720}]}`

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, base, strings.NewReader(monday)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, base, strings.NewReader(tuesday)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created RecurringAvailabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// Moving the Tuesday pattern onto Monday collides.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, base+"/"+created.ID.String(), strings.NewReader(monday)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}
