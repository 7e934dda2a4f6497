// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package lif

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Sentinel errors reported by port operations.
var (
	// ErrPortClosed is reported by operations on a closed port.
	ErrPortClosed = errors.New("port is closed")

	// ErrNotConnected is reported by a send on an unconnected port.
	ErrNotConnected = errors.New("port is not connected")

	// ErrOverrun is reported by a send whose predecessor has not yet been
	// consumed. A port carries exactly one in-flight message per step;
	// a second emit before consumption is a configuration fault, not an
	// overwrite.
	ErrOverrun = errors.New("message overrun")
)

// connectμ serializes Connect calls across all ports.
var connectμ sync.Mutex

// A Port is one endpoint of a one-directional, shaped, typed data channel
// between two processes. An output port is connected to an input port of
// identical shape with [Connect]; element types must agree at compile time.
//
// Delivery is a rendezvous with capacity one: a send never blocks, a
// receive blocks until the sender's emit for the current step is available.
// Under the lock-step driver each connection carries exactly one message
// per discrete time-step.
type Port[T Elem] struct {
	name  string
	shape []int
	slot  chan []T // delivery slot, read by the owning (input) side

	μ      sync.Mutex
	dst    *Port[T] // set on the output side by Connect
	bound  bool     // set on the input side by Connect
	closed bool
}

// NewPort constructs an unconnected port with the given diagnostic name and
// shape. It panics if any dimension is not positive.
func NewPort[T Elem](name string, shape ...int) *Port[T] {
	n := 1
	for _, d := range shape {
		if d <= 0 {
			panic(fmt.Sprintf("port %q: invalid dimension %d", name, d))
		}
		n *= d
	}
	return &Port[T]{name: name, shape: shape, slot: make(chan []T, 1)}
}

// Name reports the name assigned to p.
func (p *Port[T]) Name() string { return p.name }

// Shape reports the shape of p. The caller must not modify the result.
func (p *Port[T]) Shape() []int { return p.shape }

// Len reports the flat message length of p.
func (p *Port[T]) Len() int {
	n := 1
	for _, d := range p.shape {
		n *= d
	}
	return n
}

// Connected reports whether p has been connected as an output or claimed as
// an input.
func (p *Port[T]) Connected() bool {
	p.μ.Lock()
	defer p.μ.Unlock()
	return p.dst != nil || p.bound
}

// Connect wires output port src to input port dst. The ports must have
// identical shapes, src must not already be connected, and dst must not
// already have a producer. Mismatches are configuration errors reported
// before any step executes.
func Connect[T Elem](src, dst *Port[T]) error {
	if src == dst {
		return fmt.Errorf("connect %q: port to itself", src.name)
	}
	if !slices.Equal(src.shape, dst.shape) {
		return fmt.Errorf("connect %q to %q: shape %v ≠ %v", src.name, dst.name, src.shape, dst.shape)
	}

	// Serialize connections so the two endpoint checks are atomic.
	connectμ.Lock()
	defer connectμ.Unlock()
	src.μ.Lock()
	defer src.μ.Unlock()
	dst.μ.Lock()
	defer dst.μ.Unlock()

	if src.dst != nil {
		return fmt.Errorf("connect %q: already connected", src.name)
	} else if dst.bound {
		return fmt.Errorf("connect %q: %q already has a producer", src.name, dst.name)
	}
	src.dst = dst
	dst.bound = true
	return nil
}

// Send emits msg on p. The caller yields ownership of msg to the consumer.
// Send does not block: the delivery slot is guaranteed empty under the
// lock-step protocol, and a still-occupied slot reports ErrOverrun.
func (p *Port[T]) Send(msg []T) error {
	p.μ.Lock()
	dst, closed := p.dst, p.closed
	p.μ.Unlock()

	if closed {
		return fmt.Errorf("send on %q: %w", p.name, ErrPortClosed)
	} else if dst == nil {
		return fmt.Errorf("send on %q: %w", p.name, ErrNotConnected)
	} else if len(msg) != p.Len() {
		return fmt.Errorf("send on %q: message length %d, want %d", p.name, len(msg), p.Len())
	}
	select {
	case dst.slot <- msg:
		simMetrics.msgSent.Add(1)
		return nil
	default:
		return fmt.Errorf("send on %q: %w", p.name, ErrOverrun)
	}
}

// Recv returns the next message delivered to p. It blocks until the sender
// completes its emit for the current step, the sending side closes, or ctx
// ends.
func (p *Port[T]) Recv(ctx context.Context) ([]T, error) {
	select {
	case msg, ok := <-p.slot:
		if !ok {
			return nil, fmt.Errorf("recv on %q: %w", p.name, ErrPortClosed)
		}
		simMetrics.msgRecv.Add(1)
		return msg, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("recv on %q: %w", p.name, ctx.Err())
	}
}

// Close closes the output side of p, unblocking the consumer's pending or
// future receives with ErrPortClosed. Closing an already-closed or
// unconnected port is a no-op.
func (p *Port[T]) Close() error {
	p.μ.Lock()
	defer p.μ.Unlock()
	if p.closed || p.dst == nil {
		p.closed = true
		return nil
	}
	p.closed = true
	close(p.dst.slot)
	return nil
}
