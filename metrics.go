// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package lif

import "expvar"

// engineMetrics records simulation activity counters.
type engineMetrics struct {
	steps   expvar.Int // number of completed steps
	msgSent expvar.Int // number of port messages emitted
	msgRecv expvar.Int // number of port messages consumed
	spikes  expvar.Int // number of individual neuron spikes

	emap *expvar.Map
}

var simMetrics = newEngineMetrics()

func newEngineMetrics() *engineMetrics {
	em := &engineMetrics{emap: new(expvar.Map)}
	em.emap.Set("steps_run", &em.steps)
	em.emap.Set("messages_sent", &em.msgSent)
	em.emap.Set("messages_received", &em.msgRecv)
	em.emap.Set("spikes_emitted", &em.spikes)
	return em
}
