// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package lif

import (
	"context"
	"fmt"
)

// Config carries the constructor parameters for a neuron process. All
// fields are fixed once the process is constructed.
//
// Bias, BiasExp, and Vth may be nil (all zero), a single element (broadcast
// to every neuron), or one element per neuron. Du and Dv are shared by the
// whole ensemble.
//
// For a float32 ensemble the decay constants are retained fractions,
// conceptually in [0, 1]. For an int32 ensemble they are 12-bit unsigned
// hardware fields in 0..[MaxDecay], and BiasExp entries must be
// non-negative shift amounts; values outside those ranges are configuration
// errors.
type Config[T Elem] struct {
	Shape   []int // neuron count/topology; all dimensions positive
	Du, Dv  T     // current and voltage decay
	Bias    []T   // constant drive magnitude
	BiasExp []T   // constant drive exponent
	Vth     []T   // spike threshold, caller-facing units

	// Tag selects the kernel implementation by precision label, one of
	// [TagFloatingPoint] or [TagFixedPoint]. Selection failure is a
	// construction-time error.
	Tag string
}

// A Neuron is a leaky-integrate-and-fire neuron ensemble process. Each
// discrete time-step it consumes one vector from every connected input
// port, sums them into the accumulated input, advances its state through
// the kernel selected at construction, and emits the spike mask on its
// output port.
//
// The state variables u and v are owned by the process and may be read via
// [Neuron.U] and [Neuron.V] while the driver is paused.
type Neuron[T Elem] struct {
	name string
	ens  *Ensemble[T]
	k    Kernel[T]
	u, v *Var[T]
	ins  []*Port[T]
	out  *Port[T]
}

// NewNeuron constructs a neuron process from cfg. It reports an error if
// the shape is invalid, a parameter vector does not broadcast over the
// shape, a decay or exponent value is outside its valid range, or kernel
// selection for cfg.Tag does not yield exactly one candidate.
func NewNeuron[T Elem](name string, cfg Config[T]) (*Neuron[T], error) {
	if len(cfg.Shape) == 0 {
		return nil, fmt.Errorf("neuron %q: empty shape", name)
	}
	n := 1
	for _, d := range cfg.Shape {
		if d <= 0 {
			return nil, fmt.Errorf("neuron %q: invalid dimension %d", name, d)
		}
		n *= d
	}
	if err := checkRanges(cfg); err != nil {
		return nil, fmt.Errorf("neuron %q: %w", name, err)
	}
	k, err := SelectKernel(cfg.Tag, kernels[T]())
	if err != nil {
		return nil, fmt.Errorf("neuron %q: %w", name, err)
	}

	ens := NewEnsemble[T](n)
	ens.Du, ens.Dv = cfg.Du, cfg.Dv
	for _, f := range []struct {
		name string
		src  []T
		dst  []T
	}{
		{"bias", cfg.Bias, ens.Bias},
		{"bias_exp", cfg.BiasExp, ens.BiasExp},
		{"vth", cfg.Vth, ens.Vth},
	} {
		if err := broadcast(f.dst, f.src); err != nil {
			return nil, fmt.Errorf("neuron %q: %s: %w", name, f.name, err)
		}
	}

	nr := &Neuron[T]{
		name: name,
		ens:  ens,
		k:    k,
		u:    NewVar[T]("u", cfg.Shape...),
		v:    NewVar[T]("v", cfg.Shape...),
		out:  NewPort[T](name+".s_out", cfg.Shape...),
	}
	nr.ins = []*Port[T]{NewPort[T](name+".a_in", cfg.Shape...)}
	return nr, nil
}

// broadcast fills dst from src: nil leaves dst zero, a single element is
// replicated, and a full-length slice is copied.
func broadcast[T Elem](dst, src []T) error {
	switch len(src) {
	case 0:
	case 1:
		for i := range dst {
			dst[i] = src[0]
		}
	case len(dst):
		copy(dst, src)
	default:
		return fmt.Errorf("length %d does not broadcast over %d neurons", len(src), len(dst))
	}
	return nil
}

// checkRanges validates the element-type specific parameter domains.
// Fixed-point decay fields are 12-bit unsigned and exponents are shift
// amounts; the floating-point domain is unconstrained.
func checkRanges[T Elem](cfg Config[T]) error {
	c, ok := any(cfg).(Config[int32])
	if !ok {
		return nil
	}
	if c.Du < 0 || c.Du > MaxDecay {
		return fmt.Errorf("du %d outside 0..%d", c.Du, MaxDecay)
	}
	if c.Dv < 0 || c.Dv > MaxDecay {
		return fmt.Errorf("dv %d outside 0..%d", c.Dv, MaxDecay)
	}
	for _, e := range c.BiasExp {
		if e < 0 || e >= uvBits {
			return fmt.Errorf("bias_exp %d outside 0..%d", e, uvBits-1)
		}
	}
	return nil
}

// Name implements part of the [Process] interface.
func (n *Neuron[T]) Name() string { return n.name }

// In returns the primary input port of n.
func (n *Neuron[T]) In() *Port[T] { return n.ins[0] }

// AddInput creates and returns an additional input port. Messages arriving
// on all connected input ports are summed into the accumulated input each
// step. AddInput must not be called once the simulation is running.
func (n *Neuron[T]) AddInput() *Port[T] {
	p := NewPort[T](fmt.Sprintf("%s.a_in[%d]", n.name, len(n.ins)), n.u.Shape()...)
	n.ins = append(n.ins, p)
	return p
}

// Out returns the spike output port of n.
func (n *Neuron[T]) Out() *Port[T] { return n.out }

// U returns the current state variable of n.
func (n *Neuron[T]) U() *Var[T] { return n.u }

// V returns the membrane voltage state variable of n.
func (n *Neuron[T]) V() *Var[T] { return n.v }

// Step implements part of the [Process] interface.
func (n *Neuron[T]) Step(ctx context.Context, t int) error {
	e := n.ens
	clear(e.In)
	for _, in := range n.ins {
		if !in.Connected() {
			continue // no producer; contributes nothing
		}
		msg, err := in.Recv(ctx)
		if err != nil {
			return err
		}
		for i, a := range msg {
			e.In[i] += a
		}
	}

	n.k.Update(e)
	n.u.write(e.U)
	n.v.write(e.V)

	var fired int64
	for _, s := range e.Spike {
		if s != 0 {
			fired++
		}
	}
	simMetrics.spikes.Add(fired)

	if n.out.Connected() {
		spk := make([]T, len(e.Spike))
		copy(spk, e.Spike)
		return n.out.Send(spk)
	}
	return nil
}

// Close implements the [Closer] interface, closing the output port so a
// downstream consumer blocked on a receive can unwind during Stop.
func (n *Neuron[T]) Close() error { return n.out.Close() }
