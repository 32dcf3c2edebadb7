package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Entry is one line in a clinic's audit trail.
type Entry struct {
	ID         uuid.UUID
	ClinicID   uuid.UUID
	ActorID    *uuid.UUID // nil for system-initiated actions
	Action     string     // e.g. appointment.booked, appointment.cancelled
	Resource   string     // e.g. appointment, booking_rule
	ResourceID uuid.UUID
	Detail     string
	CreatedAt  time.Time
}

// Recorder persists audit entries. Recording runs inside the booking
// fan-out and must never fail a business operation.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// LogRecorder writes audit entries to the structured log only. Used in
// tests and in deployments without a durable audit store.
type LogRecorder struct {
	Log zerolog.Logger
}

func (r LogRecorder) Record(_ context.Context, e Entry) error {
	evt := r.Log.Info().
		Str("clinic_id", e.ClinicID.String()).
		Str("action", e.Action).
		Str("resource", e.Resource).
		Str("resource_id", e.ResourceID.String())
	if e.ActorID != nil {
		evt = evt.Str("actor_id", e.ActorID.String())
	}
	evt.Msg("audit")
	return nil
}
