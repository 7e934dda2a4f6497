// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package lif_test

import (
	"context"
	"testing"

	"github.com/creachadair/lif"
	"github.com/creachadair/lif/harness"
	"github.com/fortytw2/leaktest"
	"github.com/google/go-cmp/cmp"
)

// runOrFatal runs s for the given number of steps and fails the test on
// error.
func runOrFatal(t *testing.T, s *lif.Scheduler, steps int) {
	t.Helper()
	if err := s.Run(context.Background(), steps); err != nil {
		t.Fatalf("Run %d steps: unexpected error: %v", steps, err)
	}
}

func stopOrFatal(t *testing.T, s *lif.Scheduler) {
	t.Helper()
	if err := s.Stop(); err != nil {
		t.Errorf("Stop: unexpected error: %v", err)
	}
}

func mustConnect[T lif.Elem](t *testing.T, src, dst *lif.Port[T]) {
	t.Helper()
	if err := lif.Connect(src, dst); err != nil {
		t.Fatalf("Connect %q to %q: unexpected error: %v", src.Name(), dst.Name(), err)
	}
}

func mustNeuron[T lif.Elem](t *testing.T, name string, cfg lif.Config[T]) *lif.Neuron[T] {
	t.Helper()
	nrn, err := lif.NewNeuron(name, cfg)
	if err != nil {
		t.Fatalf("NewNeuron %q: unexpected error: %v", name, err)
	}
	return nrn
}

func TestBiasDrivenSpiking(t *testing.T) {
	defer leaktest.Check(t)()

	// With zero decay and a constant drive of 2 against a threshold of 4,
	// every neuron spikes on every second step.
	const steps, neurons = 10, 10

	src := harness.NewVecSend("src", make([]float32, neurons), harness.Always(steps))
	nrn := mustNeuron(t, "lif", lif.Config[float32]{
		Shape:   []int{neurons},
		Bias:    []float32{1},
		BiasExp: []float32{1},
		Vth:     []float32{4},
		Tag:     lif.TagFloatingPoint,
	})
	rec := harness.NewVecRecv[float32]("rec", steps, neurons)
	mustConnect(t, src.Out(), nrn.In())
	mustConnect(t, nrn.Out(), rec.In())

	s := lif.NewScheduler().Add(src, nrn, rec)
	runOrFatal(t, s, steps)
	stopOrFatal(t, s)

	for step := 1; step <= steps; step++ {
		want := make([]float32, neurons)
		if step%2 == 0 {
			for i := range want {
				want[i] = 1
			}
		}
		if diff := cmp.Diff(want, rec.Row(step)); diff != "" {
			t.Errorf("step %d spikes (-want, +got):\n%s", step, diff)
		}
	}
}

func TestFixedBiasDrivenSpiking(t *testing.T) {
	defer leaktest.Check(t)()

	// Fixed-point drive of 2<<6 per step against an effective threshold of
	// 8<<6: spikes at steps 4 and 8 of 10.
	const steps, neurons = 10, 10

	src := harness.NewVecSend("src", make([]int32, neurons), harness.Always(steps))
	nrn := mustNeuron(t, "lif", lif.Config[int32]{
		Shape:   []int{neurons},
		Bias:    []int32{2},
		BiasExp: []int32{6},
		Vth:     []int32{8},
		Tag:     lif.TagFixedPoint,
	})
	rec := harness.NewVecRecv[int32]("rec", steps, neurons)
	mustConnect(t, src.Out(), nrn.In())
	mustConnect(t, nrn.Out(), rec.In())

	s := lif.NewScheduler().Add(src, nrn, rec)
	runOrFatal(t, s, steps)
	stopOrFatal(t, s)

	for step := 1; step <= steps; step++ {
		want := make([]int32, neurons)
		if step%4 == 0 {
			for i := range want {
				want[i] = 1
			}
		}
		if diff := cmp.Diff(want, rec.Row(step)); diff != "" {
			t.Errorf("step %d spikes (-want, +got):\n%s", step, diff)
		}
	}
}

// traceState runs an 8-step single-neuron simulation one step at a time,
// reading the requested state variable between runs. The impulse is fed at
// step 1 only. The neuron's output port is left unconnected.
func traceState[T lif.Elem](t *testing.T, cfg lif.Config[T], impulse T, read func(*lif.Neuron[T]) *lif.Var[T]) []T {
	t.Helper()
	defer leaktest.Check(t)()
	const steps = 8

	src := harness.NewVecSend("src", []T{impulse}, harness.Once(steps))
	nrn := mustNeuron(t, "lif", cfg)
	mustConnect(t, src.Out(), nrn.In())

	s := lif.NewScheduler().Add(src, nrn)
	var got []T
	for range steps {
		runOrFatal(t, s, 1)
		got = append(got, read(nrn).Get()[0])
	}
	stopOrFatal(t, s)
	return got
}

func TestImpulseResponse(t *testing.T) {
	shape := []int{1}
	uOf := func(n *lif.Neuron[float32]) *lif.Var[float32] { return n.U() }
	vOf := func(n *lif.Neuron[float32]) *lif.Var[float32] { return n.V() }

	t.Run("Current", func(t *testing.T) {
		got := traceState(t, lif.Config[float32]{
			Shape: shape, Du: 0.5, Vth: []float32{256}, Tag: lif.TagFloatingPoint,
		}, 128, uOf)
		want := []float32{128, 64, 32, 16, 8, 4, 2, 1}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("u trace (-want, +got):\n%s", diff)
		}
	})

	t.Run("Voltage", func(t *testing.T) {
		got := traceState(t, lif.Config[float32]{
			Shape: shape, Dv: 0.5, Vth: []float32{256}, Tag: lif.TagFloatingPoint,
		}, 128, vOf)
		want := []float32{128, 192, 224, 240, 248, 252, 254, 255}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("v trace (-want, +got):\n%s", diff)
		}
	})
}

func TestFixedImpulseResponse(t *testing.T) {
	shape := []int{1}
	uOf := func(n *lif.Neuron[int32]) *lif.Var[int32] { return n.U() }
	vOf := func(n *lif.Neuron[int32]) *lif.Var[int32] { return n.V() }

	t.Run("Current", func(t *testing.T) {
		got := traceState(t, lif.Config[int32]{
			Shape: shape, Du: 2047, Vth: []int32{256}, Tag: lif.TagFixedPoint,
		}, 128, uOf)
		want := make([]int32, 8)
		for j := range want {
			want[j] = 1 << (13 - j)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("u trace (-want, +got):\n%s", diff)
		}
	})

	t.Run("Voltage", func(t *testing.T) {
		got := traceState(t, lif.Config[int32]{
			Shape: shape, Dv: 2048, Vth: []int32{256}, Tag: lif.TagFixedPoint,
		}, 128, vOf)
		want := []int32{8192, 12286, 14331, 15351, 15859, 16111, 16235, 16295}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("v trace (-want, +got):\n%s", diff)
		}
	})
}

// A rampSource emits a distinct, step-dependent vector each time-step, so a
// recorder can verify that message delivery preserves step order.
type rampSource struct {
	name string
	out  *lif.Port[float32]
}

func (r *rampSource) Name() string { return r.name }

func (r *rampSource) Step(_ context.Context, t int) error {
	msg := make([]float32, r.out.Len())
	for i := range msg {
		msg[i] = float32(100*t + i)
	}
	return r.out.Send(msg)
}

func (r *rampSource) Close() error { return r.out.Close() }

func TestDeliveryOrder(t *testing.T) {
	defer leaktest.Check(t)()
	const steps, neurons = 16, 4

	src := &rampSource{name: "ramp", out: lif.NewPort[float32]("ramp.out", neurons)}
	rec := harness.NewVecRecv[float32]("rec", steps, neurons)
	mustConnect(t, src.out, rec.In())

	s := lif.NewScheduler().Add(src, rec)
	runOrFatal(t, s, steps)
	stopOrFatal(t, s)

	for step := 1; step <= steps; step++ {
		want := make([]float32, neurons)
		for i := range want {
			want[i] = float32(100*step + i)
		}
		if diff := cmp.Diff(want, rec.Row(step)); diff != "" {
			t.Errorf("step %d record (-want, +got):\n%s", step, diff)
		}
	}
}

func TestMultipleInputs(t *testing.T) {
	defer leaktest.Check(t)()

	// Messages on all connected input ports are summed into the
	// accumulated input for the step.
	nrn := mustNeuron(t, "lif", lif.Config[float32]{
		Shape: []int{3}, Vth: []float32{1000}, Tag: lif.TagFloatingPoint,
	})
	s1 := harness.NewVecSend("s1", []float32{1, 2, 3}, harness.Once(1))
	s2 := harness.NewVecSend("s2", []float32{10, 20, 30}, harness.Once(1))
	mustConnect(t, s1.Out(), nrn.In())
	mustConnect(t, s2.Out(), nrn.AddInput())

	s := lif.NewScheduler().Add(s1, s2, nrn)
	runOrFatal(t, s, 1)
	stopOrFatal(t, s)

	want := []float32{11, 22, 33}
	if diff := cmp.Diff(want, nrn.U().Get()); diff != "" {
		t.Errorf("u after step 1 (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, nrn.V().Get()); diff != "" {
		t.Errorf("v after step 1 (-want, +got):\n%s", diff)
	}
}

func TestConfigErrors(t *testing.T) {
	t.Run("Float", func(t *testing.T) {
		tests := []struct {
			desc string
			cfg  lif.Config[float32]
		}{
			{"empty shape", lif.Config[float32]{Tag: lif.TagFloatingPoint}},
			{"zero dimension", lif.Config[float32]{Shape: []int{4, 0}, Tag: lif.TagFloatingPoint}},
			{"bias does not broadcast", lif.Config[float32]{
				Shape: []int{3}, Bias: []float32{1, 2}, Tag: lif.TagFloatingPoint}},
			{"unknown tag", lif.Config[float32]{Shape: []int{1}, Tag: "bogus"}},
		}
		for _, tc := range tests {
			if nrn, err := lif.NewNeuron("bad", tc.cfg); err == nil {
				t.Errorf("NewNeuron (%s): got %+v, want error", tc.desc, nrn)
			}
		}
	})

	t.Run("Fixed", func(t *testing.T) {
		tests := []struct {
			desc string
			cfg  lif.Config[int32]
		}{
			{"du too large", lif.Config[int32]{Shape: []int{1}, Du: 4096, Tag: lif.TagFixedPoint}},
			{"dv negative", lif.Config[int32]{Shape: []int{1}, Dv: -1, Tag: lif.TagFixedPoint}},
			{"bias_exp too large", lif.Config[int32]{
				Shape: []int{1}, BiasExp: []int32{24}, Tag: lif.TagFixedPoint}},
			{"bias_exp negative", lif.Config[int32]{
				Shape: []int{1}, BiasExp: []int32{-1}, Tag: lif.TagFixedPoint}},
			{"wrong tag", lif.Config[int32]{Shape: []int{1}, Tag: lif.TagFloatingPoint}},
		}
		for _, tc := range tests {
			if nrn, err := lif.NewNeuron("bad", tc.cfg); err == nil {
				t.Errorf("NewNeuron (%s): got %+v, want error", tc.desc, nrn)
			}
		}
	})
}
