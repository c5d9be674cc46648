package social

import (
	"context"
	"errors"
	"fmt"

	"github.com/bassista/snapgram/internal/logger"
)

type sagaStep struct {
	name       string
	run        func(context.Context) error
	compensate func(context.Context) error
}

// Saga runs its steps strictly in order. When a step fails, the compensations of
// the steps that already completed run in reverse order.
type Saga struct {
	name  string
	steps []sagaStep
}

func NewSaga(name string) *Saga {
	return &Saga{name: name}
}

// Step appends a step. compensate may be nil.
func (s *Saga) Step(name string, run, compensate func(context.Context) error) *Saga {
	s.steps = append(s.steps, sagaStep{name: name, run: run, compensate: compensate})
	return s
}

// SagaError reports the failed step. It unwraps to the step error only, so the
// classification seen by callers is the one of the step that failed.
type SagaError struct {
	Saga string
	Step string
	Err  error
	// Compensation joins the failures of compensating actions, if any.
	Compensation error
}

func (e *SagaError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Saga, e.Step, e.Err)
}

func (e *SagaError) Unwrap() error { return e.Err }

func (s *Saga) Run(ctx context.Context) error {
	log := logger.WithComponent("saga").WithField("saga", s.name)

	for i, step := range s.steps {
		err := step.run(ctx)
		if err == nil {
			continue
		}

		log.WithError(err).Warnf("step %s failed, compensating %d completed step(s)", step.name, i)
		var compErrs []error
		for j := i - 1; j >= 0; j-- {
			done := s.steps[j]
			if done.compensate == nil {
				continue
			}
			if cerr := done.compensate(ctx); cerr != nil {
				log.WithError(cerr).Errorf("compensation of step %s failed", done.name)
				compErrs = append(compErrs, fmt.Errorf("compensate %s: %w", done.name, cerr))
			}
		}
		return &SagaError{Saga: s.name, Step: step.name, Err: err, Compensation: errors.Join(compErrs...)}
	}
	return nil
}
