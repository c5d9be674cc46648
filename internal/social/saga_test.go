package social

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaga_RunsStepsInOrder(t *testing.T) {
	var trace []string
	step := func(name string) func(context.Context) error {
		return func(context.Context) error { trace = append(trace, name); return nil }
	}

	err := NewSaga("ok").
		Step("a", step("a"), step("undo-a")).
		Step("b", step("b"), nil).
		Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, trace)
}

func TestSaga_CompensatesInReverse(t *testing.T) {
	var trace []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error { trace = append(trace, name); return nil }
	}
	boom := errors.New("boom")

	err := NewSaga("failing").
		Step("a", record("a"), record("undo-a")).
		Step("b", record("b"), nil).
		Step("c", record("c"), record("undo-c")).
		Step("d", func(context.Context) error { return boom }, record("undo-d")).
		Step("e", record("e"), record("undo-e")).
		Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b", "c", "undo-c", "undo-a"}, trace)

	var sagaErr *SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.Equal(t, "d", sagaErr.Step)
	assert.NoError(t, sagaErr.Compensation)
}

func TestSaga_CompensationFailureIsJoinedNotReturned(t *testing.T) {
	stepErr := errors.New("step failed")
	compErr := errors.New("cleanup failed")

	err := NewSaga("partial").
		Step("upload", func(context.Context) error { return nil }, func(context.Context) error { return compErr }).
		Step("write", func(context.Context) error { return stepErr }, nil).
		Run(context.Background())

	assert.ErrorIs(t, err, stepErr)
	assert.NotErrorIs(t, err, compErr)

	var sagaErr *SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.ErrorIs(t, sagaErr.Compensation, compErr)
}
