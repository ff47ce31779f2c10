package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EngineCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipbridge_engine_calls_total",
			Help: "Logical engine calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	EngineRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipbridge_engine_retries_total",
			Help: "Engine attempts repeated after a timeout",
		},
		[]string{"operation"},
	)

	EngineCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tipbridge_engine_call_duration_seconds",
			Help:    "Wall time of a logical engine call including retries",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"operation"},
	)

	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipbridge_transfers_total",
			Help: "Orchestrated transfers by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	FeeFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tipbridge_fee_failures_total",
			Help: "Fee transfers that failed after a successful primary transfer",
		},
	)

	LockContentionTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tipbridge_lock_contention_total",
			Help: "Transfers refused because the sender account was locked",
		},
	)

	FanOutRecipientsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipbridge_fanout_recipients_total",
			Help: "Tip recipients processed by outcome",
		},
		[]string{"outcome"},
	)

	ReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipbridge_reconciliations_total",
			Help: "Pending-inbound reconciliations by outcome",
		},
		[]string{"outcome"},
	)

	PriceFeedUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipbridge_price_feed_updates_total",
			Help: "Price feed polls by outcome",
		},
		[]string{"outcome"},
	)

	BalanceFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipbridge_balance_flushes_total",
			Help: "Bulk cached-balance flushes by outcome",
		},
		[]string{"outcome"},
	)

	BalanceFlushDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tipbridge_balance_flush_dropped_total",
			Help: "Cached balances dropped after exhausting flush retries",
		},
	)
)
