// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package lif

import (
	"fmt"
	"slices"

	"github.com/chewxy/math32"
)

// Elem is the set of element types a neuron ensemble may be computed over.
// A float32 ensemble is updated by the floating-point kernel; an int32
// ensemble is updated by the fixed-point kernel, whose arithmetic is
// bit-accurate with the reference hardware. The set is exact, not
// underlying-type: kernel dispatch and parameter validation switch on the
// concrete element type.
type Elem interface {
	float32 | int32
}

// Tags identifying the precision variant of a kernel implementation.
const (
	TagFloatingPoint = "floating_pt" // real-valued simulation
	TagFixedPoint    = "fixed_pt"    // bit-accurate hardware emulation
)

// A Resource identifies the compute resource a kernel requires.
type Resource int

const (
	ResourceCPU Resource = iota // host CPU execution
)

func (r Resource) String() string {
	if r == ResourceCPU {
		return "CPU"
	}
	return fmt.Sprintf("resource %d", int(r))
}

// A Protocol identifies the synchronization protocol a kernel is written
// against. The engine implements only the lock-step protocol, in which all
// processes advance through a shared barrier one discrete step at a time.
type Protocol int

const (
	ProtocolLockStep Protocol = iota // barrier-synchronized discrete steps
)

func (p Protocol) String() string {
	if p == ProtocolLockStep {
		return "LOCK_STEP"
	}
	return fmt.Sprintf("protocol %d", int(p))
}

// A Descriptor statically describes the execution requirements and identity
// of a kernel implementation: the resource it runs on, the synchronization
// protocol it satisfies, and the tag set used to select among candidates.
type Descriptor struct {
	Resource Resource
	Protocol Protocol
	Tags     []string
}

// An Ensemble is the mutable state of a group of neurons sharing one
// configuration, updated in place by a kernel once per discrete time-step.
// All slices have one entry per neuron.
type Ensemble[T Elem] struct {
	Du, Dv  T   // decay constants (float: fraction in [0,1]; fixed: 12-bit field)
	Bias    []T // constant drive magnitude
	BiasExp []T // constant drive exponent
	Vth     []T // spike threshold, in caller-facing units

	U, V  []T // current and membrane voltage
	In    []T // accumulated external input for this step
	Spike []T // threshold-crossing mask, written by the kernel
}

// NewEnsemble constructs an ensemble of n neurons with zero initial state.
// The Bias, BiasExp, and Vth slices must be filled in by the caller.
func NewEnsemble[T Elem](n int) *Ensemble[T] {
	return &Ensemble[T]{
		Bias:    make([]T, n),
		BiasExp: make([]T, n),
		Vth:     make([]T, n),
		U:       make([]T, n),
		V:       make([]T, n),
		In:      make([]T, n),
		Spike:   make([]T, n),
	}
}

// Len reports the number of neurons in the ensemble.
func (e *Ensemble[T]) Len() int { return len(e.U) }

// A Kernel computes one discrete-time state update for an ensemble.
//
// Update advances U and V in place given the accumulated input In, and
// writes the spike mask to Spike. Where a neuron spikes, its voltage is
// reset to zero and its current is left unchanged.
type Kernel[T Elem] interface {
	// Descriptor reports the static capability descriptor of the kernel.
	Descriptor() Descriptor

	// Update advances e by one time-step.
	Update(e *Ensemble[T])
}

// SelectKernel returns the unique candidate whose descriptor carries the
// requested tag and whose resource and protocol requirements are satisfied
// by the engine. Zero or multiple matching candidates is a configuration
// error.
func SelectKernel[T Elem](tag string, candidates []Kernel[T]) (Kernel[T], error) {
	var match []Kernel[T]
	for _, k := range candidates {
		d := k.Descriptor()
		if d.Resource != ResourceCPU || d.Protocol != ProtocolLockStep {
			continue
		}
		if slices.Contains(d.Tags, tag) {
			match = append(match, k)
		}
	}
	switch len(match) {
	case 0:
		return nil, fmt.Errorf("no kernel matches tag %q", tag)
	case 1:
		return match[0], nil
	default:
		return nil, fmt.Errorf("%d kernels match tag %q", len(match), tag)
	}
}

// kernels reports the built-in kernel implementations for element type T.
func kernels[T Elem]() []Kernel[T] {
	var ks []Kernel[T]
	switch p := any(&ks).(type) {
	case *[]Kernel[float32]:
		*p = append(*p, FloatKernel{})
	case *[]Kernel[int32]:
		*p = append(*p, FixedKernel{})
	}
	return ks
}

// FloatKernel is the real-valued LIF state update:
//
//	u' = u·(1−du) + a
//	v' = v·(1−dv) + u' + bias·2^bias_exp
//	spike where v' ≥ vth, resetting v' to 0
//
// The decay constants are retained fractions in [0, 1]: du = dv = 0 gives a
// pure integrator driven only by bias and external input.
type FloatKernel struct{}

// Descriptor implements part of the [Kernel] interface.
func (FloatKernel) Descriptor() Descriptor {
	return Descriptor{
		Resource: ResourceCPU,
		Protocol: ProtocolLockStep,
		Tags:     []string{TagFloatingPoint},
	}
}

// Update implements part of the [Kernel] interface.
func (FloatKernel) Update(e *Ensemble[float32]) {
	for i := range e.U {
		u := e.U[i]*(1-e.Du) + e.In[i]
		v := e.V[i]*(1-e.Dv) + u + e.Bias[i]*math32.Exp2(e.BiasExp[i])
		if v >= e.Vth[i] {
			e.Spike[i] = 1
			v = 0
		} else {
			e.Spike[i] = 0
		}
		e.U[i], e.V[i] = u, v
	}
}

// Fixed-point scaling constants, matching the hardware register layout.
// Decay fields are 12-bit unsigned fractions of decayUnity. The current
// decay field is offset by dsOffset before use; the voltage decay field is
// not (dmOffset). The voltage accumulator and threshold carry actShift
// extra fractional bits relative to caller-facing units, and both state
// variables wrap at uvBits via two's-complement truncation.
const (
	decayBits  = 12
	decayUnity = 1 << decayBits
	MaxDecay   = decayUnity - 1 // largest valid du/dv field value

	dsOffset = 1 // hardware offset added to the current decay field
	dmOffset = 0 // no offset on the voltage decay field

	actShift = 6  // fractional bits of u, v, and the scaled input
	uvBits   = 24 // internal signed width of u and v
)

// wrap24 truncates x to the internal 24-bit signed width, wrapping per
// two's complement. Overflow never saturates.
func wrap24(x int64) int32 {
	return int32(uint32(x)<<(32-uvBits)) >> (32 - uvBits)
}

// FixedKernel is the bit-accurate fixed-point LIF state update. It performs
// the same recurrence as [FloatKernel] in bounded-width integer arithmetic:
// decay multiplies by (4096 − field) and arithmetic-shifts the 64-bit
// product right by 12, the input and threshold are left-shifted by 6 to the
// internal scale, and the bias term is bias << bias_exp.
//
// The current decay field has dsOffset (1) added before use, so the
// effective decay is never exactly zero: a fixed-point trace right-shifted
// by 6 tracks the equivalent floating-point trace within ±1 per step. That
// drift reproduces the hardware and is deliberate.
type FixedKernel struct{}

// Descriptor implements part of the [Kernel] interface.
func (FixedKernel) Descriptor() Descriptor {
	return Descriptor{
		Resource: ResourceCPU,
		Protocol: ProtocolLockStep,
		Tags:     []string{TagFixedPoint},
	}
}

// Update implements part of the [Kernel] interface.
func (FixedKernel) Update(e *Ensemble[int32]) {
	ku := int64(decayUnity - (e.Du + dsOffset))
	kv := int64(decayUnity - (e.Dv + dmOffset))
	for i := range e.U {
		u := (int64(e.U[i]) * ku) >> decayBits
		u += int64(e.In[i]) << actShift
		uw := wrap24(u)

		v := (int64(e.V[i]) * kv) >> decayBits
		v += int64(uw) + int64(e.Bias[i])<<uint(e.BiasExp[i])
		vw := wrap24(v)

		if vw >= e.Vth[i]<<actShift {
			e.Spike[i] = 1
			vw = 0
		} else {
			e.Spike[i] = 0
		}
		e.U[i], e.V[i] = uw, vw
	}
}
