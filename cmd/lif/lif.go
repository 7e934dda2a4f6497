// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Program lif runs a small leaky-integrate-and-fire simulation from the
// command line and prints the resulting spike raster.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/creachadair/lif"
	"github.com/creachadair/lif/harness"
	"github.com/creachadair/lif/wire"
)

var runFlags struct {
	Steps   int     `flag:"steps,default=10,Number of discrete steps to simulate"`
	Neurons int     `flag:"neurons,default=10,Number of neurons in the ensemble"`
	Fixed   bool    `flag:"fixed,Use the bit-accurate fixed-point kernel"`
	Du      float64 `flag:"du,default=0,Current decay (fraction, or 12-bit field with -fixed)"`
	Dv      float64 `flag:"dv,default=0,Voltage decay (fraction, or 12-bit field with -fixed)"`
	Bias    float64 `flag:"bias,default=1,Constant drive magnitude"`
	BiasExp float64 `flag:"bias-exp,default=1,Constant drive exponent"`
	Vth     float64 `flag:"vth,default=4,Spike threshold"`
	Impulse float64 `flag:"impulse,default=0,External input delivered at step 1"`
	Output  string  `flag:"output,Write a binary spike trace to this file"`
}

func main() {
	root := &command.C{
		Name: filepath.Base(os.Args[0]),
		Help: "Run leaky-integrate-and-fire neuron simulations.",
		Commands: []*command.C{
			{
				Name:     "run",
				Help:     "Run a simulation and print its spike raster.",
				SetFlags: command.Flags(flax.MustBind, &runFlags),
				Run:      runSim,
			},
			command.VersionCommand(),
			command.HelpCommand(nil),
		},
	}
	command.RunOrFail(root.NewEnv(nil).MergeFlags(true), os.Args[1:])
}

func runSim(env *command.Env) error {
	if runFlags.Steps <= 0 || runFlags.Neurons <= 0 {
		return env.Usagef("steps and neurons must be positive")
	}
	if runFlags.Fixed {
		return simulate(lif.Config[int32]{
			Shape:   []int{runFlags.Neurons},
			Du:      int32(runFlags.Du),
			Dv:      int32(runFlags.Dv),
			Bias:    []int32{int32(runFlags.Bias)},
			BiasExp: []int32{int32(runFlags.BiasExp)},
			Vth:     []int32{int32(runFlags.Vth)},
			Tag:     lif.TagFixedPoint,
		}, int32(runFlags.Impulse))
	}
	return simulate(lif.Config[float32]{
		Shape:   []int{runFlags.Neurons},
		Du:      float32(runFlags.Du),
		Dv:      float32(runFlags.Dv),
		Bias:    []float32{float32(runFlags.Bias)},
		BiasExp: []float32{float32(runFlags.BiasExp)},
		Vth:     []float32{float32(runFlags.Vth)},
		Tag:     lif.TagFloatingPoint,
	}, float32(runFlags.Impulse))
}

// simulate wires an impulse source, a neuron ensemble, and a recorder,
// runs the configured number of steps, and reports the results.
func simulate[T lif.Elem](cfg lif.Config[T], impulse T) error {
	steps, n := runFlags.Steps, runFlags.Neurons

	vec := make([]T, n)
	for i := range vec {
		vec[i] = impulse
	}
	src := harness.NewVecSend("source", vec, harness.Once(steps))
	nrn, err := lif.NewNeuron("lif", cfg)
	if err != nil {
		return err
	}
	rec := harness.NewVecRecv[T]("record", steps, n)
	if err := lif.Connect(src.Out(), nrn.In()); err != nil {
		return err
	} else if err := lif.Connect(nrn.Out(), rec.In()); err != nil {
		return err
	}

	sched := lif.NewScheduler().Add(src, nrn, rec)
	if err := sched.Run(context.Background(), steps); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if err := sched.Stop(); err != nil {
		return fmt.Errorf("stop: %w", err)
	}

	printRaster(rec, steps)
	fmt.Printf("u: %v\n", nrn.U().Get())
	fmt.Printf("v: %v\n", nrn.V().Get())

	if runFlags.Output != "" {
		data, err := wire.EncodeRecord(steps, n, rec.Data().Get())
		if err != nil {
			return fmt.Errorf("encode trace: %w", err)
		}
		if err := os.WriteFile(runFlags.Output, data, 0600); err != nil {
			return fmt.Errorf("write trace: %w", err)
		}
		fmt.Printf("wrote %d trace bytes to %s\n", len(data), runFlags.Output)
	}
	return nil
}

// printRaster writes one line per step, marking spiking neurons with "|".
func printRaster[T lif.Elem](rec *harness.VecRecv[T], steps int) {
	var sb strings.Builder
	for t := 1; t <= steps; t++ {
		sb.Reset()
		fmt.Fprintf(&sb, "%4d ", t)
		for _, s := range rec.Row(t) {
			if s != 0 {
				sb.WriteByte('|')
			} else {
				sb.WriteByte('.')
			}
		}
		fmt.Println(sb.String())
	}
}
