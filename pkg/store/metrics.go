package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chat",
		Subsystem: "store",
		Name:      "ops_total",
		Help:      "Thread store operations by kind.",
	}, []string{"op"})

	opFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chat",
		Subsystem: "store",
		Name:      "op_failures_total",
		Help:      "Thread store operation failures by kind.",
	}, []string{"op"})
)
