package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	wrapped := Wrap(context.DeadlineExceeded, ErrTimeout.Code, false, "genetic run timed out")
	assert.True(t, errors.Is(wrapped, ErrTimeout))
	assert.True(t, errors.Is(wrapped, context.DeadlineExceeded))
	assert.False(t, errors.Is(wrapped, ErrAlgorithmInternal))

	outer := fmt.Errorf("run greedy: %w", Clone(ErrInvalidConfiguration, "empty time slot set"))
	assert.True(t, errors.Is(outer, ErrInvalidConfiguration))
}

func TestFromErrorNormalisesUntypedErrors(t *testing.T) {
	assert.Nil(t, FromError(nil))

	typed := FromError(fmt.Errorf("wrapped: %w", ErrNotFound))
	assert.Equal(t, ErrNotFound.Code, typed.Code)

	plain := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, "internal error: boom", plain.Error())
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(ErrTimeout))
	assert.False(t, IsFatal(ErrConstraintUnsatisfiable))
	assert.True(t, IsFatal(ErrInvalidConfiguration))
	assert.True(t, IsFatal(errors.New("untyped")))
}

func TestCloneKeepsOriginal(t *testing.T) {
	clone := Clone(ErrValidation, "semester is required")
	assert.Equal(t, "semester is required", clone.Message)
	assert.Equal(t, "validation failed", ErrValidation.Message)
	assert.Nil(t, Clone(nil, "x"))
}
