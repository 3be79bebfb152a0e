package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByKind(t *testing.T) {
	err := NotFound("item %s not found", "abc")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "item abc not found", err.Error())
}

func TestIsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("create loan: %w", Conflict("item not available"))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, "item not available", Message(err))
}

func TestKindOfAndMessage(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    Kind
		message string
	}{
		{"plain error", errors.New("db down"), KindUnexpected, "internal error"},
		{"validation", Validation("page size must be positive"), KindValidation, "page size must be positive"},
		{"unauthenticated", Unauthenticated("invalid credentials"), KindUnauthenticated, "invalid credentials"},
		{"forbidden sentinel", ErrForbidden, KindForbidden, "forbidden"},
		{"unexpected with cause", &Error{Kind: KindUnexpected, Msg: "boom", Err: errors.New("x")}, KindUnexpected, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.message, Message(tt.err))
		})
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("unique violation")
	err := &Error{Kind: KindConflict, Msg: "code already exists", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "code already exists: unique violation", err.Error())
}
