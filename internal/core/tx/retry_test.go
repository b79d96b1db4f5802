package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"stockledger/internal/core/apperror"
)

type passthroughManager struct {
	runs int
}

func (m *passthroughManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.runs++
	return fn(ctx)
}

func TestRetry_SucceedsAfterConflicts(t *testing.T) {
	m := &passthroughManager{}
	calls := 0

	err := Retry(context.Background(), m, RetryPolicy{MaxAttempts: 3}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return apperror.NewConcurrentModification("stock_items", "x")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, m.runs)
}

func TestRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	m := &passthroughManager{}

	err := Retry(context.Background(), m, RetryPolicy{MaxAttempts: 2}, func(ctx context.Context) error {
		return apperror.NewConcurrentModification("stock_items", "x")
	})

	assert.True(t, apperror.IsConcurrentModification(err))
	assert.Equal(t, 2, m.runs)
}

func TestRetry_DoesNotRetryOtherErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"state conflict", apperror.NewStateConflict("order", "x", "approved")},
		{"validation", apperror.NewValidation("bad quantity")},
		{"infrastructure", errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &passthroughManager{}
			err := Retry(context.Background(), m, DefaultRetryPolicy(), func(ctx context.Context) error {
				return tt.err
			})
			assert.Equal(t, tt.err, err)
			assert.Equal(t, 1, m.runs)
		})
	}
}

func TestRetry_StopsOnCancelledContext(t *testing.T) {
	m := &passthroughManager{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, m, RetryPolicy{MaxAttempts: 5, Backoff: 1}, func(ctx context.Context) error {
		return apperror.NewConcurrentModification("stock_items", "x")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, m.runs)
}
