package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Boundary wraps the start and end of a unit of work. It executes inline with
// the work it instruments: entering Track opens a record, leaving it (normally,
// via error, or via panic) finalizes the record exactly once and submits it
// through the sampling gate to the dispatcher.
//
// Telemetry here is strictly best-effort and invisible to business logic: the
// wrapped function's return value and failure behavior pass through unmodified,
// and any internal telemetry error is logged and swallowed.
type Boundary struct {
	sampler    *Sampler
	dispatcher *Dispatcher
	logger     *logrus.Logger
}

// NewBoundary builds an instrumentation boundary over a sampler and dispatcher.
func NewBoundary(sampler *Sampler, dispatcher *Dispatcher, logger *logrus.Logger) *Boundary {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Boundary{
		sampler:    sampler,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Track runs fn as one instrumented unit of work. The record is available to
// fn through the derived context (SetAttribute, nested Track calls link to it
// as their parent). fn's error is returned untouched; a panic in fn is
// recorded and then re-raised.
func (b *Boundary) Track(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	rec := NewRecord(ctx, name)
	workCtx := ContextWithRecord(ctx, rec)

	var fnErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				b.finish(workCtx, rec, fmt.Errorf("panic: %v", r))
				panic(r)
			}
		}()
		fnErr = fn(workCtx)
	}()

	b.finish(workCtx, rec, fnErr)
	return fnErr
}

// finish finalizes the record, runs it through the sampling gate and hands it
// to the dispatcher. Record.Finalize is idempotent, so the panic path and the
// normal path cannot double-submit. Nothing in here may reach the caller: a
// panic while emitting telemetry is caught and logged locally.
func (b *Boundary) finish(ctx context.Context, rec *Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithFields(logrus.Fields{
				"record_id":   rec.ID,
				"record_name": rec.Name,
				"panic":       fmt.Sprintf("%v", r),
			}).Error("Telemetry emission failed; unit of work unaffected")
		}
	}()

	if rec.Finalized() {
		return
	}
	rec.Finalize(err)

	decision := b.sampler.Decide(rec.Name)
	if !decision.Sampled {
		if b.logger.IsLevelEnabled(logrus.DebugLevel) {
			b.logger.WithFields(logrus.Fields{
				"record_id":   rec.ID,
				"record_name": rec.Name,
				"rule":        decision.Rule,
			}).Debug("Record rejected by sampling")
		}
		return
	}

	b.dispatcher.Submit(ctx, rec)
}
