// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package harness provides deterministic source and recorder processes for
// driving and observing a simulation under test.
package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/creachadair/lif"
)

// A VecSend is a process that emits a fixed vector on a boolean schedule.
// At step t it emits its vector if the schedule holds true at position t−1,
// and otherwise a zero vector of the same shape. It emits exactly once per
// step, including steps beyond the end of the schedule, so a connected
// consumer can never stall waiting for it.
type VecSend[T lif.Elem] struct {
	name string
	vec  []T
	at   []bool
	out  *lif.Port[T]
}

// NewVecSend constructs a sender emitting vec at the steps where at is
// true. The schedule is indexed by step, 1-indexed from the caller's
// perspective: at[0] governs step 1.
func NewVecSend[T lif.Elem](name string, vec []T, at []bool) *VecSend[T] {
	return &VecSend[T]{
		name: name,
		vec:  vec,
		at:   at,
		out:  lif.NewPort[T](name+".s_out", len(vec)),
	}
}

// Out returns the output port of s.
func (s *VecSend[T]) Out() *lif.Port[T] { return s.out }

// Name implements part of the [lif.Process] interface.
func (s *VecSend[T]) Name() string { return s.name }

// Check implements the [lif.Checker] interface. A sender with nothing to
// feed is a wiring mistake.
func (s *VecSend[T]) Check() error {
	if !s.out.Connected() {
		return errors.New("output port is not connected")
	}
	return nil
}

// Step implements part of the [lif.Process] interface.
func (s *VecSend[T]) Step(_ context.Context, t int) error {
	msg := make([]T, len(s.vec))
	if t-1 < len(s.at) && s.at[t-1] {
		copy(msg, s.vec)
	}
	return s.out.Send(msg)
}

// Close implements the [lif.Closer] interface.
func (s *VecSend[T]) Close() error { return s.out.Close() }

// A VecRecv is a process that records the vector arriving on its input
// port each step into a fixed-size record allocated at construction.
// Messages arriving after the record is full are consumed and discarded so
// the producer never stalls.
type VecRecv[T lif.Elem] struct {
	name  string
	steps int
	in    *lif.Port[T]
	data  *lif.Var[T]
}

// NewVecRecv constructs a recorder for the given number of steps and
// neurons. The record has shape (steps, neurons); row t−1 holds the
// message received at step t.
func NewVecRecv[T lif.Elem](name string, steps, neurons int) *VecRecv[T] {
	return &VecRecv[T]{
		name:  name,
		steps: steps,
		in:    lif.NewPort[T](name+".s_in", neurons),
		data:  lif.NewVar[T]("spk_data", steps, neurons),
	}
}

// In returns the input port of r.
func (r *VecRecv[T]) In() *lif.Port[T] { return r.in }

// Data returns the record variable of r, shaped (steps, neurons). Rows for
// steps not yet executed read as zero.
func (r *VecRecv[T]) Data() *lif.Var[T] { return r.data }

// Row returns a copy of the vector recorded at step t (1-indexed). A step
// that has not executed, or is out of range, yields a zero vector.
func (r *VecRecv[T]) Row(t int) []T { return r.data.Row(t - 1) }

// Name implements part of the [lif.Process] interface.
func (r *VecRecv[T]) Name() string { return r.name }

// Check implements the [lif.Checker] interface.
func (r *VecRecv[T]) Check() error {
	if !r.in.Connected() {
		return errors.New("input port has no producer")
	}
	return nil
}

// Step implements part of the [lif.Process] interface.
func (r *VecRecv[T]) Step(ctx context.Context, t int) error {
	msg, err := r.in.Recv(ctx)
	if err != nil {
		return err
	}
	if t-1 >= r.steps {
		return nil // past the end of the record; drain and discard
	}
	if err := r.data.SetRow(t-1, msg); err != nil {
		return fmt.Errorf("record step %d: %w", t, err)
	}
	return nil
}

// Always returns a schedule of n steps that is true at every step.
func Always(n int) []bool {
	at := make([]bool, n)
	for i := range at {
		at[i] = true
	}
	return at
}

// Once returns a schedule of n steps that is true only at step 1.
func Once(n int) []bool {
	at := make([]bool, n)
	if n > 0 {
		at[0] = true
	}
	return at
}
