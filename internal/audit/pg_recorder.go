package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRecorder appends audit entries to the audit_logs table.
type PgRecorder struct {
	pool *pgxpool.Pool
}

func NewPgRecorder(pool *pgxpool.Pool) *PgRecorder {
	return &PgRecorder{pool: pool}
}

func (r *PgRecorder) Record(ctx context.Context, e Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_logs (clinic_id, actor_id, action, resource, resource_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, e.ClinicID, e.ActorID, e.Action, e.Resource, e.ResourceID, e.Detail)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
