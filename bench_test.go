// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package lif_test

import (
	"testing"

	"github.com/creachadair/lif"
)

func BenchmarkFloatKernel(b *testing.B) {
	e := lif.NewEnsemble[float32](1024)
	e.Du, e.Dv = 0.1, 0.2
	for i := range 1024 {
		e.Bias[i] = 1
		e.BiasExp[i] = 2
		e.Vth[i] = 100
		e.In[i] = float32(i % 7)
	}
	var k lif.FloatKernel

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k.Update(e)
	}
}

func BenchmarkFixedKernel(b *testing.B) {
	e := lif.NewEnsemble[int32](1024)
	e.Du, e.Dv = 400, 800
	for i := range 1024 {
		e.Bias[i] = 1
		e.BiasExp[i] = 8
		e.Vth[i] = 1 << 12
		e.In[i] = int32(i % 7)
	}
	var k lif.FixedKernel

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k.Update(e)
	}
}
