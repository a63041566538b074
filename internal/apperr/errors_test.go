package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatchesSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		kind     Kind
	}{
		{"validation", Validation("import", "amount is required"), ErrValidation, KindValidation},
		{"not found", NotFound("revert", "transaction %s", "abc"), ErrNotFound, KindNotFound},
		{"state conflict", StateConflict("reset", "not ignored"), ErrStateConflict, KindStateConflict},
		{"over allocation", OverAllocation("apply", "exceeds total"), ErrOverAllocation, KindOverAllocation},
		{"concurrency", ConcurrencyConflict("apply", "version moved"), ErrConcurrencyConflict, KindConcurrencyConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("processing: %w", tt.err)
			assert.True(t, errors.Is(wrapped, tt.sentinel))
			assert.Equal(t, tt.kind, KindOf(wrapped))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := Validation("import", "amount is required")
	assert.Equal(t, "import: amount is required", err.Error())

	cause := errors.New("disk full")
	wrapped := Wrap(KindInternal, "commit", cause)
	assert.Equal(t, "commit: failed: disk full", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Nil(t, Wrap(KindInternal, "noop", nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ConcurrencyConflict("apply", "lost race")))
	assert.False(t, IsRetryable(StateConflict("apply", "already matched")))
	assert.False(t, IsRetryable(errors.New("boom")))
}
