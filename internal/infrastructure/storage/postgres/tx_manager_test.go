package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"stockledger/internal/core/apperror"
)

func TestClassifyTxError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", fmt.Errorf("commit transaction: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyTxError(tt.err)
			assert.Equal(t, tt.retryable, apperror.IsRetryable(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}
}
