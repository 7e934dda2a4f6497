// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package lif implements a discrete-time leaky-integrate-and-fire (LIF)
// neuron simulation engine.
//
// Processes exchange dense numeric vectors over shaped point-to-point ports
// and advance in lock-step under a shared scheduler, one discrete time-step
// at a time. The neuron state update is provided in two precisions: a
// real-valued float32 kernel, and an int32 kernel that is bit-accurate with
// the reference neuromorphic hardware, including its fixed-point scaling,
// truncation, and decay-offset quirks.
//
// # Processes and ports
//
// A [Process] is a computational node with a Name and a Step method. Ports
// are created with [NewPort] and wired with [Connect]; shapes must match at
// connection time and element types must match at compile time. Each
// connection delivers exactly one message per step: a send never blocks,
// and a receive suspends until the producer's emit for the current step is
// available. See the harness subpackage for ready-made source and recorder
// processes.
//
// # Neurons
//
// [NewNeuron] constructs a LIF ensemble process from a [Config]. The
// precision variant is chosen at construction by the Tag field: each kernel
// carries a static [Descriptor] naming its resource, protocol, and tag set,
// and [SelectKernel] picks the unique candidate matching the requested tag.
//
//	nrn, err := lif.NewNeuron("lif", lif.Config[float32]{
//	    Shape:   []int{10},
//	    Bias:    []float32{1},
//	    BiasExp: []float32{1},
//	    Vth:     []float32{4},
//	    Tag:     lif.TagFloatingPoint,
//	})
//
// Per step, each neuron integrates the summed input vectors into its
// current u, decays and accumulates its voltage v, and emits a spike mask
// for every position where v crossed threshold, resetting those voltages
// to zero.
//
// # Running
//
// A [Scheduler] drives the simulation:
//
//	sched := lif.NewScheduler().Add(src, nrn, rec)
//	if err := sched.Run(ctx, 10); err != nil {
//	    log.Fatalf("Run: %v", err)
//	}
//	defer sched.Stop()
//
// Run blocks until the requested steps complete. Between Run invocations
// the driver is paused and state variables may be read with their Get
// methods. Stop finalizes the run; all state remains readable afterward.
package lif
