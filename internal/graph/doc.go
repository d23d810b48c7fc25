// Package graph implements the model graph: the dependency graph of values and
// log-probability contributions that a Markov chain mutates and evaluates.
//
// # Why an Arena
//
// Every node lives in a single owned table (the Model) and is referred to by a
// Handle, which is its index in that table. Parent and child relations are
// stored as sets of handles on both endpoints. Removing a node is a table
// operation and can never leave a dangling reference in a live neighbour.
//
//	┌──────────────────────────── Model ────────────────────────────┐
//	│  slot 0: constant   "mean"   children {2}                     │
//	│  slot 1: constant   "sd"     children {2}                     │
//	│  slot 2: stochastic "x"      parents  [0 1]  dist Normal      │
//	│  slot 3: deterministic "y"   parents  [2]    fn   Exp         │
//	└───────────────────────────────────────────────────────────────┘
//
// # Node Variants
//
// All nodes share the lifecycle fields (value, stored value, log-probability,
// touched flag). What differs is kept behind a small per-variant behaviour:
//
//   - Constant: immutable after construction, contributes nothing.
//   - Deterministic: a pure Function of its parents, recomputed lazily after
//     a touch.
//   - Stochastic: drawn from a Distribution over its parents. A clamped
//     stochastic node holds observed data and is never redrawn.
//
// # Touch / Keep / Restore
//
// A proposal follows a three-phase protocol:
//
//  1. Touch the node about to change. The node snapshots its value and
//     log-probability, then notifies its children. Deterministic children
//     snapshot, go stale, and keep propagating. Stochastic children only mark
//     their density dirty; their own value does not change, so propagation
//     stops there.
//  2. Evaluate. LnProbabilityRatio returns the change of a node's
//     contribution since the snapshot, touching only the changed
//     neighbourhood.
//  3. Keep (accept) or Restore (reject). Both walk the touched region once,
//     committing or reinstating every node exactly once.
//
// # Thread-Safety
//
// A Model is not safe for concurrent use. Every chain owns a private copy
// obtained through Clone, so no locking is needed on the hot path.
package graph
