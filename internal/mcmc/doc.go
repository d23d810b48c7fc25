// Package mcmc implements the Monte Carlo sampler: one Markov chain over a
// private model graph.
//
// # Lifecycle
//
//	Uninitialized ──Initialize──▶ Initialized ──Burnin──▶ BurningIn
//	                                   │                     │
//	                                   └──────Run──────▶ Sampling ◀─┘
//
// Burnin and Run may be called repeatedly. Only Run advances the generation
// counter and notifies monitors.
//
// # One Cycle
//
// A cycle draws round(MovesPerIteration) moves from the schedule. For each
// one the sampler asks the move to propose, sums the log-probability ratios of
// the affected stochastic nodes, and accepts when
//
//	ln u < heat·ΔlnPosterior + ln(Hastings ratio)
//
// Accepted proposals are kept, rejected ones restored. A proposal is never
// interrupted; cancellation is observed between generations only.
//
// # Thread-Safety
//
// A Sampler is not safe for concurrent use. Parallel chains are independent
// clones with their own model, moves, schedule and random stream.
package mcmc
