// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package lif

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"sync"

	"github.com/creachadair/taskgroup"
)

// A Process is a computational node advanced in lock-step by a [Scheduler].
//
// Step executes one discrete time-step: the process receives exactly one
// message from each of its connected input ports, updates its own state,
// and emits exactly one message on each of its connected output ports. A
// process must never skip an emit on a connected output port; a missed emit
// stalls its consumer and is a configuration fault.
type Process interface {
	// Name reports a diagnostic name for the process.
	Name() string

	// Step advances the process through time-step t. Steps are numbered
	// from 1.
	Step(ctx context.Context, t int) error
}

// Checker is an optional interface a [Process] may implement to validate
// its configuration. The scheduler invokes Check on every process that
// implements it before the first step executes, and refuses to run if any
// check fails.
type Checker interface {
	Check() error
}

// Closer is an optional interface a [Process] may implement to release
// resources. The scheduler invokes Close on every process that implements
// it during Stop.
type Closer interface {
	Close() error
}

// A StepLogger is invoked by the scheduler after each completed step.
type StepLogger func(t int)

// ErrStopped is reported by Run after the scheduler has been stopped.
var ErrStopped = errors.New("scheduler is stopped")

// A Scheduler advances a set of processes through discrete time-steps under
// the lock-step protocol. Within a step all processes execute concurrently;
// port rendezvous orders each producer before its consumer, and a barrier
// at the end of the step guarantees every emitted message is delivered
// before any process begins the next step.
//
// A zero-valued Scheduler is ready for use, but must not be copied after
// any method has been called.
type Scheduler struct {
	μ sync.Mutex

	procs   []Process
	step    int // last completed step
	started bool
	stopped bool
	err     error // first step failure
	slog    StepLogger
}

// NewScheduler constructs a new empty scheduler.
func NewScheduler() *Scheduler { return new(Scheduler) }

// Add registers the given processes with s and returns s to permit
// chaining. Add panics if the scheduler has already started running.
func (s *Scheduler) Add(ps ...Process) *Scheduler {
	s.μ.Lock()
	defer s.μ.Unlock()
	if s.started {
		panic("scheduler is already running")
	}
	s.procs = append(s.procs, ps...)
	return s
}

// LogSteps registers a callback invoked after each completed step. Passing
// nil disables step logging. The callback is invoked synchronously with the
// run loop. LogSteps returns s to permit chaining.
func (s *Scheduler) LogSteps(f StepLogger) *Scheduler {
	s.μ.Lock()
	defer s.μ.Unlock()
	s.slog = f
	return s
}

// Steps reports the number of completed steps.
func (s *Scheduler) Steps() int {
	s.μ.Lock()
	defer s.μ.Unlock()
	return s.step
}

// Metrics returns a metrics map for the engine. It is safe for the caller
// to add additional metrics to the map while the scheduler is active.
func (s *Scheduler) Metrics() *expvar.Map { return simMetrics.emap }

// Run advances the simulation by the given number of discrete steps,
// blocking until they complete or fail. Between Run invocations the driver
// is paused and all process state is readable.
//
// The first call validates the configuration of every registered process
// implementing [Checker]; a failed check prevents any step from executing.
// If a step fails, Run cancels the remaining processes of that step and
// reports the first error; completed steps are retained. Cancellation of
// ctx is honored at step boundaries.
func (s *Scheduler) Run(ctx context.Context, steps int) error {
	s.μ.Lock()
	if s.stopped {
		s.μ.Unlock()
		return ErrStopped
	}
	if s.err != nil {
		err := s.err
		s.μ.Unlock()
		return err
	}
	if !s.started {
		for _, p := range s.procs {
			if c, ok := p.(Checker); ok {
				if err := c.Check(); err != nil {
					s.μ.Unlock()
					return fmt.Errorf("process %q: %w", p.Name(), err)
				}
			}
		}
		s.started = true
	}
	procs := s.procs
	base := s.step
	slog := s.slog
	s.μ.Unlock()

	for i := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := base + i + 1
		if err := s.runStep(ctx, procs, t); err != nil {
			s.μ.Lock()
			s.err = err
			s.μ.Unlock()
			return err
		}
		s.μ.Lock()
		s.step = t
		s.μ.Unlock()
		simMetrics.steps.Add(1)
		if slog != nil {
			slog(t)
		}
	}
	return nil
}

// runStep executes one step across all processes and waits for the
// barrier. A process failure cancels the step context so that receivers
// blocked on a port whose producer has failed can unwind.
func (s *Scheduler) runStep(ctx context.Context, procs []Process, t int) error {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g := taskgroup.New(cancel)
	for _, p := range procs {
		g.Go(func() error {
			if err := p.Step(sctx, t); err != nil {
				return fmt.Errorf("process %q step %d: %w", p.Name(), t, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Stop finalizes the run: it closes every registered process implementing
// [Closer] and marks the scheduler stopped. After Stop, all state remains
// readable but further Run calls report ErrStopped. Stop is idempotent and
// reports the first close error.
func (s *Scheduler) Stop() error {
	s.μ.Lock()
	defer s.μ.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true

	var err error
	for _, p := range s.procs {
		if c, ok := p.(Closer); ok {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("process %q: %w", p.Name(), cerr)
			}
		}
	}
	return err
}
