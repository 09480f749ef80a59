package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Route metrics
	RouteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpharouter_route_requests_total",
			Help: "Total number of route requests",
		},
		[]string{"trade_type", "status"},
	)

	RouteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alpharouter_route_duration_seconds",
			Help:    "Route request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"trade_type"},
	)

	SplitSearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "alpharouter_split_search_duration_seconds",
		Help:    "Best split search duration in seconds",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})

	RatioIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "alpharouter_ratio_iterations",
		Help:    "Iterations used by ratio balancing",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
	})

	// Quote metrics
	QuoteCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpharouter_quote_calls_total",
			Help: "Total number of route/amount quotes attempted",
		},
		[]string{"protocol", "status"},
	)

	CandidatePools = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alpharouter_candidate_pools",
			Help:    "Candidate pools selected per request",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"protocol"},
	)

	// Multicall metrics
	MulticallBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpharouter_multicall_batches_total",
			Help: "Total number of multicall round trips",
		},
		[]string{"status"},
	)

	MulticallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "alpharouter_multicall_duration_seconds",
		Help:    "Multicall round trip duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// Cache metrics
	PoolCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpharouter_pool_cache_hits_total",
			Help: "Total number of pool state cache hits",
		},
		[]string{"protocol"},
	)

	PoolCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpharouter_pool_cache_misses_total",
			Help: "Total number of pool state cache misses",
		},
		[]string{"protocol"},
	)

	// Token risk metrics
	TokenRiskProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpharouter_token_risk_probes_total",
			Help: "Total number of token fee probes by result",
		},
		[]string{"result"},
	)

	// Simulation metrics
	Simulations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpharouter_simulations_total",
			Help: "Total number of simulations by outcome",
		},
		[]string{"status"},
	)
)
