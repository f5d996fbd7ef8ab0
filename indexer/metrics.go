package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "humanity_index_records_total",
		Help: "Ledger records durably processed.",
	})
	mLastBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "humanity_index_last_block",
		Help: "Last fully processed block number.",
	})
	mRollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "humanity_index_rollbacks_total",
		Help: "Reorg rollbacks performed.",
	})
	mHalted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "humanity_index_halted",
		Help: "1 while indexing is halted on a fatal inconsistency.",
	})
)
