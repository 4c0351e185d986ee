package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanError(t *testing.T) {
	t.Run("Error formatting", func(t *testing.T) {
		err := New(CodeInvalidPlan, "bad plan")
		assert.Equal(t, "INVALID_PLAN: bad plan", err.Error())

		wrapped := Wrap(fmt.Errorf("boom"), CodeQueryFailed, "query failed")
		assert.Equal(t, "QUERY_FAILED: query failed (caused by: boom)", wrapped.Error())
	})

	t.Run("Newf formats the message", func(t *testing.T) {
		err := Newf(CodeUnboundColumn, "column %s not found", "id")
		assert.Equal(t, "column id not found", err.Message)
	})

	t.Run("Wrap nil returns nil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, CodeInternal, "nothing"))
		assert.Nil(t, Wrapf(nil, CodeInternal, "nothing %d", 1))
	})

	t.Run("Unwrap exposes the cause", func(t *testing.T) {
		cause := fmt.Errorf("root cause")
		err := Wrap(cause, CodeConnectionFailed, "connect")
		assert.ErrorIs(t, err, cause)
	})

	t.Run("Is matches by code", func(t *testing.T) {
		err := Newf(CodeUnboundColumn, "column %s", "a")
		assert.ErrorIs(t, err, ErrUnboundColumn)
		assert.NotErrorIs(t, err, ErrAliasConflict)
	})

	t.Run("WithDetail accumulates details", func(t *testing.T) {
		err := New(CodeAliasConflict, "conflict").
			WithDetail("alias", "t0").
			WithDetail("scope", "join")
		require.NotNil(t, err.Details)
		assert.Equal(t, "t0", err.Details["alias"])
		assert.Equal(t, "join", err.Details["scope"])
	})
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "plan error", err: New(CodeInvalidPlan, "x"), want: CodeInvalidPlan},
		{name: "wrapped plan error", err: fmt.Errorf("outer: %w", New(CodeQueryFailed, "x")), want: CodeQueryFailed},
		{name: "plain error", err: errors.New("plain"), want: CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetCode(tt.err))
		})
	}
}

func TestIsContractViolation(t *testing.T) {
	assert.True(t, IsContractViolation(ErrEmptyPlan))
	assert.True(t, IsContractViolation(ErrUnboundColumn))
	assert.True(t, IsContractViolation(ErrAliasConflict))
	assert.False(t, IsContractViolation(New(CodeQueryFailed, "x")))
	assert.False(t, IsContractViolation(errors.New("plain")))
}

func TestGetMessage(t *testing.T) {
	assert.Equal(t, "bad plan", GetMessage(New(CodeInvalidPlan, "bad plan")))
	assert.Equal(t, "plain", GetMessage(errors.New("plain")))
}
