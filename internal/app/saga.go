package app

import (
	"context"
	"fmt"
	"time"

	"drive-service/pkg/logger"
	"drive-service/pkg/metrics"

	"go.uber.org/zap"
)

const (
	defaultCompensationTimeout = 30 * time.Second

	errSagaStepFmt = "%s: step %s: %v"
)

// StepFunc is one forward action or compensation of a saga.
type StepFunc func(ctx context.Context) error

type sagaStep struct {
	name       string
	run        StepFunc
	compensate StepFunc
}

// Saga runs named steps that span the metadata and blob stores. When a step
// fails, the compensations of that step and of every earlier step run in
// reverse order. The failing step is included because a timed out blob write
// may still have landed. The reverse walk stops at the first compensation
// that fails, so earlier steps keep whatever record of the later step's
// leftovers they hold.
type Saga struct {
	name                string
	log                 *zap.Logger
	metrics             Metrics
	compensationTimeout time.Duration
	steps               []sagaStep
}

func newSaga(name string, log *zap.Logger, m Metrics, compensationTimeout time.Duration) *Saga {
	if compensationTimeout <= 0 {
		compensationTimeout = defaultCompensationTimeout
	}
	return &Saga{
		name:                name,
		log:                 log,
		metrics:             m,
		compensationTimeout: compensationTimeout,
	}
}

// Step appends a step. compensate may be nil.
func (s *Saga) Step(name string, run, compensate StepFunc) *Saga {
	s.steps = append(s.steps, sagaStep{name: name, run: run, compensate: compensate})
	return s
}

// SagaError reports which step failed. Err is the step's own error and stays
// reachable through errors.Is and errors.As.
type SagaError struct {
	Saga            string
	Step            string
	Err             error
	CompensationErr error
}

func (e *SagaError) Error() string {
	return fmt.Sprintf(errSagaStepFmt, e.Saga, e.Step, e.Err)
}

func (e *SagaError) Unwrap() error {
	return e.Err
}

// Execute runs every step in order and returns a *SagaError on failure.
func (s *Saga) Execute(ctx context.Context) error {
	log := logger.FromContext(ctx, s.log).With(zap.String("saga", s.name))

	for i, step := range s.steps {
		err := step.run(ctx)
		if err == nil {
			continue
		}

		log.Warn("saga step failed",
			zap.String("step", step.name),
			logger.Err(err),
		)

		compErr := s.compensate(ctx, log, i)
		if compErr != nil {
			s.metrics.ObserveSaga(s.name, metrics.OutcomeFailed)
		} else {
			s.metrics.ObserveSaga(s.name, metrics.OutcomeCompensated)
		}

		return &SagaError{Saga: s.name, Step: step.name, Err: err, CompensationErr: compErr}
	}

	s.metrics.ObserveSaga(s.name, metrics.OutcomeCommitted)
	return nil
}

// compensate undoes steps [0, failed] in reverse. It runs on a context that
// survives cancellation of the request so a client disconnect cannot leave
// half-applied state behind. It returns the first compensation error and
// leaves the remaining earlier steps applied.
func (s *Saga) compensate(ctx context.Context, log *zap.Logger, failed int) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
	defer cancel()

	for i := failed; i >= 0; i-- {
		step := s.steps[i]
		if step.compensate == nil {
			continue
		}

		err := step.compensate(cctx)
		s.metrics.ObserveCompensation(s.name, step.name, err)
		if err != nil {
			log.Error("saga compensation failed, leaving earlier steps applied",
				zap.String("step", step.name),
				zap.Strings("skipped", s.stepNames(i-1)),
				logger.Err(err),
			)
			return err
		}

		log.Info("saga step compensated", zap.String("step", step.name))
	}

	return nil
}

// stepNames lists steps [0, last] that have a compensation, newest first.
func (s *Saga) stepNames(last int) []string {
	var names []string
	for i := last; i >= 0; i-- {
		if s.steps[i].compensate != nil {
			names = append(names, s.steps[i].name)
		}
	}
	return names
}
