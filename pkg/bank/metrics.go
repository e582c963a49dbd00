package bank

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stakeflow_bank_transactions_total",
			Help: "Total number of transactions processed by the bank",
		},
		[]string{"status"},
	)

	TransactionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stakeflow_bank_transaction_duration_seconds",
			Help:    "Duration of transaction execution including commit",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14), // 50us to ~410ms
		},
	)

	LockWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stakeflow_bank_lock_wait_seconds",
			Help:    "Time spent acquiring account locks",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
		},
	)

	ComputeUnitsConsumed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stakeflow_bank_compute_units",
			Help:    "Compute units consumed per transaction",
			Buckets: prometheus.LinearBuckets(0, 10_000, 20),
		},
	)

	ComputeUnitsAverage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stakeflow_bank_compute_units_average",
			Help: "Moving average of compute units consumed per transaction",
		},
	)

	CurrentSlot = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stakeflow_bank_slot",
			Help: "Current slot of the bank",
		},
	)
)

const (
	statusSuccess  = "success"
	statusFailed   = "failed"
	statusRejected = "rejected"
)
