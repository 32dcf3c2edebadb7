package availability

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "recurring_availability_clinic_id_staff_id_weekday_key",
	}

	assert.True(t, isUniqueViolation(dup))
	assert.True(t, isUniqueViolation(fmt.Errorf("create recurring availability: %w", dup)),
		"wrapped pg errors must still match")

	assert.False(t, isUniqueViolation(errors.New("connection reset")))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}),
		"other integrity violations keep their own mapping")
	assert.False(t, isUniqueViolation(nil))
}
