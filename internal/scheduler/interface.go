// Package scheduler decides which move a chain applies next.
//
// # Why Schedules Exist
//
// A chain does not know how many proposals make up one generation or in
// which order its moves run. The schedule owns both decisions:
//   - **Count:** MovesPerIteration reports how many proposals form one
//     generation. The sampler draws round(MovesPerIteration) moves per cycle,
//     so the reported value must match what the schedule hands out.
//   - **Order:** Next returns the move to propose, either drawn at random
//     proportionally to its weight or in a fixed round-robin order.
//
// # Policies
//
//   - **random:** every selection is an independent draw ∝ weight;
//     MovesPerIteration is the sum of weights.
//   - **sequential:** moves run in list order, each repeated round(weight)
//     times, wrapping around; MovesPerIteration is the sum of the rounded
//     weights.
//   - **single:** one move per generation, drawn ∝ weight.
//
// # Thread-Safety
//
// A Schedule carries per-chain state (the sequential cursor) and is used by
// exactly one chain. Chains build their own schedule over their cloned moves.
package scheduler

import (
	"errors"
	"math/rand/v2"

	"github.com/specialistvlad/burstmc/internal/move"
)

// ErrNoMoves is returned when a schedule is built without moves.
var ErrNoMoves = errors.New("schedule needs at least one move")

// Schedule selects the moves of a generation.
type Schedule interface {
	// Kind returns the policy name as accepted by New.
	Kind() string
	// MovesPerIteration is the number of proposals in one generation.
	MovesPerIteration() float64
	// Next returns the move to propose.
	Next(r *rand.Rand) move.Move
	// Moves returns the scheduled moves in configuration order.
	Moves() []move.Move
}
