// Package metrics holds the prometheus collectors exported by a run. They are
// registered with the default registry and served by the health server.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MoveProposals counts proposals by move name and result.
	MoveProposals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "burstmc_move_proposals_total",
		Help: "Total move proposals by move and result",
	}, []string{"move", "result"})

	// SwapProposals counts heat swap proposals by result.
	SwapProposals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "burstmc_swap_proposals_total",
		Help: "Total MC3 heat swap proposals by result",
	}, []string{"result"})

	// ChainGeneration is the current generation of each chain.
	ChainGeneration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "burstmc_chain_generation",
		Help: "Current sampling generation per chain",
	}, []string{"chain"})

	// ChainLnPosterior is the latest log-posterior of each chain.
	ChainLnPosterior = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "burstmc_chain_ln_posterior",
		Help: "Latest log-posterior per chain",
	}, []string{"chain"})

	// BlockDuration observes the wall time of one parallel MC3 block.
	BlockDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "burstmc_mc3_block_duration_seconds",
		Help:    "Duration of one parallel block between swaps",
		Buckets: []float64{0.001, 0.01, 0.1, 1, 10},
	})
)

// Result label values.
const (
	Accepted = "accepted"
	Rejected = "rejected"
)

// ResultLabel maps an accept decision to its label value.
func ResultLabel(accepted bool) string {
	if accepted {
		return Accepted
	}
	return Rejected
}

// ChainLabel formats a chain index as a label value.
func ChainLabel(index int) string {
	return strconv.Itoa(index)
}
