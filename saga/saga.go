// Package saga runs a sequence of steps with compensating actions and keeps
// an append-only log of every transition.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ecommerce-backend/logging"
)

// Step is a unit of work with a compensating action.
//
// Compensate must undo whatever Execute managed to do, including a partial
// Execute that returned an error. It is called for the failing step too.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// CompensationError is returned when a step failed and at least one
// compensation failed as well, leaving partially committed state behind.
type CompensationError struct {
	Step          string
	Err           error
	Compensations []error
}

func (e *CompensationError) Error() string {
	msgs := make([]string, len(e.Compensations))
	for i, c := range e.Compensations {
		msgs[i] = c.Error()
	}
	return fmt.Sprintf("step %s failed: %v; compensation failed: %s", e.Step, e.Err, strings.Join(msgs, "; "))
}

func (e *CompensationError) Unwrap() error { return e.Err }

type Orchestrator struct {
	id      string
	steps   []Step
	repo    Repository
	subject func() int64
	log     *slog.Logger
}

// NewOrchestrator builds a saga. repo may be nil, in which case transitions
// are only logged. subject, when set, reports the business id (order id)
// attached to each log entry.
func NewOrchestrator(id string, steps []Step, repo Repository, subject func() int64, logger *slog.Logger) *Orchestrator {
	if subject == nil {
		subject = func() int64 { return 0 }
	}
	return &Orchestrator{
		id:      id,
		steps:   steps,
		repo:    repo,
		subject: subject,
		log:     logging.Module(logger, "Saga").With("saga_id", id),
	}
}

// Start runs the steps in order. When one fails, it and every step before it
// are compensated in reverse order.
func (o *Orchestrator) Start(ctx context.Context, payload string) error {
	o.save(ctx, StatusStarted, "", payload, nil)

	for i, step := range o.steps {
		o.log.Info("executing step", "step", step.Name(), "order_id", o.subject())
		if err := step.Execute(ctx); err != nil {
			o.log.Error("step failed, starting rollback", "step", step.Name(), "order_id", o.subject(), "error", err)
			return o.rollback(ctx, step.Name(), err, o.steps[:i+1])
		}
		o.save(ctx, StatusStepDone, step.Name(), "", nil)
	}

	o.save(ctx, StatusCompleted, "", "", nil)
	return nil
}

func (o *Orchestrator) rollback(ctx context.Context, failed string, cause error, steps []Step) error {
	errs := []string{fmt.Sprintf("step %s failed: %v", failed, cause)}
	o.save(ctx, StatusCompensating, failed, "", errs)

	var compErrs []error
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		o.log.Info("compensating step", "step", step.Name(), "order_id", o.subject())
		if err := step.Compensate(ctx); err != nil {
			o.log.Error("CRITICAL: failed to compensate step", "step", step.Name(), "order_id", o.subject(), "error", err)
			compErrs = append(compErrs, fmt.Errorf("compensate %s: %w", step.Name(), err))
			errs = append(errs, fmt.Sprintf("compensation of %s failed: %v", step.Name(), err))
		}
	}

	if len(compErrs) > 0 {
		o.save(ctx, StatusFailed, failed, "", errs)
		return &CompensationError{Step: failed, Err: cause, Compensations: compErrs}
	}
	o.save(ctx, StatusCompensated, failed, "", errs)
	return cause
}

func (o *Orchestrator) save(ctx context.Context, status Status, step, payload string, errs []string) {
	if o.repo == nil {
		return
	}
	entry := NewEntry(o.id, o.subject(), status, step, payload, errs)
	if err := o.repo.Save(ctx, entry); err != nil {
		o.log.Warn("failed to persist saga log entry", "status", status, "error", err)
	}
}

// IsCompensationFailure reports whether err left partially committed state.
func IsCompensationFailure(err error) bool {
	var ce *CompensationError
	return errors.As(err, &ce)
}
