package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricBeacons = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redquill_beacons_total",
		Help: "Agent check-ins handled.",
	})
	metricLinksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redquill_links_created_total",
		Help: "Links materialized by the scheduler, retries included.",
	})
	metricLinksTerminal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redquill_links_terminal_total",
		Help: "Links that reached a terminal state.",
	}, []string{"status"})
	metricFacts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redquill_facts_total",
		Help: "Facts committed to fact stores, seeds included.",
	})
)
