package rules

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrRuleNotFound = errors.New("booking rule not found")

// Repository contains all DB interactions for booking rules. List order is
// creation order, which is also evaluation order.
type Repository interface {
	List(ctx context.Context, clinicID uuid.UUID) ([]Rule, error)
	ListActive(ctx context.Context, clinicID uuid.UUID) ([]Rule, error)
	Get(ctx context.Context, clinicID, id uuid.UUID) (*Rule, error)
	Create(ctx context.Context, r *Rule) error
	Update(ctx context.Context, r *Rule) error
	Delete(ctx context.Context, clinicID, id uuid.UUID) error
}
