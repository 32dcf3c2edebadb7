package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Sync pushes committed appointments to an external calendar provider.
// It runs in the booking service's side-effect fan-out, so failures are
// logged by the caller and never affect booking outcomes.
type Sync interface {
	PushAppointment(ctx context.Context, e Event) error
	RemoveAppointment(ctx context.Context, clinicID, appointmentID uuid.UUID) error
}

// Event is the provider-neutral shape of a calendar entry.
type Event struct {
	ClinicID      uuid.UUID `json:"clinic_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	StaffID       uuid.UUID `json:"staff_id"`
	Title         string    `json:"title"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

// HTTPSync talks to a calendar bridge service over JSON.
type HTTPSync struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewHTTPSync(baseURL, apiKey string) *HTTPSync {
	return &HTTPSync{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSync) PushAppointment(ctx context.Context, e Event) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/events", bytes.NewBuffer(raw))
	if err != nil {
		return err
	}
	return s.do(req)
}

func (s *HTTPSync) RemoveAppointment(ctx context.Context, clinicID, appointmentID uuid.UUID) error {
	url := fmt.Sprintf("%s/events/%s/%s", s.BaseURL, clinicID, appointmentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	return s.do(req)
}

func (s *HTTPSync) do(req *http.Request) error {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.APIKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("calendar bridge returned %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}

// Noop satisfies Sync for clinics without a calendar integration.
type Noop struct{}

func (Noop) PushAppointment(context.Context, Event) error { return nil }

func (Noop) RemoveAppointment(context.Context, uuid.UUID, uuid.UUID) error { return nil }
