package xfault

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf_WithTaggedError_ReturnsKind(t *testing.T) {
	err := New(KindNotFound, "order missing")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestKindOf_WithWrappedError_UnwrapsToKind(t *testing.T) {
	inner := Wrap(KindTransient, "redis gone", errors.New("dial tcp: refused"))
	outer := fmt.Errorf("list orders: %w", inner)

	assert.Equal(t, KindTransient, KindOf(outer))
	assert.True(t, IsTransient(outer))
}

func TestKindOf_WithContextErrors_ReturnsTimeout(t *testing.T) {
	assert.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindTimeout, KindOf(context.Canceled))
}

func TestKindOf_WithPlainError_ReturnsUnknown(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestValidation_CarriesMessageAndFieldErrors(t *testing.T) {
	fields := map[string][]string{
		"refills": {"must be at least 1"},
	}
	err := Validation("order is invalid", fields)

	require.Equal(t, KindValidation, err.Kind())
	assert.Contains(t, err.Error(), "order is invalid")
	assert.Equal(t, fields, FieldsOf(fmt.Errorf("create order: %w", err)))
	assert.False(t, err.Retryable())
}

func TestFieldsOf_WithNonValidationError_ReturnsNil(t *testing.T) {
	assert.Nil(t, FieldsOf(New(KindConflict, "dup")))
	assert.Nil(t, FieldsOf(errors.New("boom")))
}

func TestError_Unwrap_SupportsErrorsIs(t *testing.T) {
	sentinel := errors.New("connection reset")
	err := Wrap(KindTransient, "store call failed", sentinel)

	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "Transient")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestKind_String_CoversAllKinds(t *testing.T) {
	cases := map[Kind]string{
		KindUnknown:          "Unknown",
		KindValidation:       "Validation",
		KindNotFound:         "NotFound",
		KindUnauthorized:     "Unauthorized",
		KindConflict:         "Conflict",
		KindTransient:        "Transient",
		KindPermanentBackend: "PermanentBackend",
		KindTimeout:          "TimeoutExceeded",
		KindRejected:         "Rejected",
		KindShuttingDown:     "ShuttingDown",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
	assert.Equal(t, "Kind(99)", Kind(99).String())
}
