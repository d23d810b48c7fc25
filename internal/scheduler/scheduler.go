package scheduler

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/specialistvlad/burstmc/internal/move"
)

// Policy names accepted by New.
const (
	Random     = "random"
	Sequential = "sequential"
	Single     = "single"
)

// New builds a schedule of the given kind over moves.
func New(kind string, moves []move.Move) (Schedule, error) {
	if len(moves) == 0 {
		return nil, ErrNoMoves
	}
	w := weighted{moves: slices.Clone(moves)}
	for _, mv := range moves {
		w.total += mv.Weight()
	}

	switch kind {
	case Random:
		return &RandomSchedule{weighted: w}, nil
	case Sequential:
		return newSequential(w), nil
	case Single:
		return &SingleSchedule{weighted: w}, nil
	}
	return nil, fmt.Errorf("unknown schedule %q (want %s, %s or %s)", kind, Random, Sequential, Single)
}

// weighted holds the moves and their total weight.
type weighted struct {
	moves []move.Move
	total float64
}

func (w *weighted) Moves() []move.Move { return slices.Clone(w.moves) }

// pick draws a move with probability proportional to its weight.
func (w *weighted) pick(r *rand.Rand) move.Move {
	target := r.Float64() * w.total
	acc := 0.0
	for _, mv := range w.moves {
		acc += mv.Weight()
		if target < acc {
			return mv
		}
	}
	return w.moves[len(w.moves)-1]
}

// RandomSchedule draws every move independently, proportionally to weight.
type RandomSchedule struct {
	weighted
}

func (*RandomSchedule) Kind() string { return Random }

// MovesPerIteration returns the sum of the move weights.
func (s *RandomSchedule) MovesPerIteration() float64 { return s.total }

func (s *RandomSchedule) Next(r *rand.Rand) move.Move { return s.pick(r) }

// SequentialSchedule walks the moves in order, proposing each one
// round(weight) times in a row. Moves whose weight rounds to zero are
// skipped.
type SequentialSchedule struct {
	weighted
	repeats []int
	perIter int
	cursor  int
	used    int // proposals of moves[cursor] so far
}

func newSequential(w weighted) *SequentialSchedule {
	s := &SequentialSchedule{weighted: w, repeats: make([]int, len(w.moves))}
	for i, mv := range w.moves {
		s.repeats[i] = int(math.Round(mv.Weight()))
		s.perIter += s.repeats[i]
	}
	return s
}

func (*SequentialSchedule) Kind() string { return Sequential }

// MovesPerIteration returns the sum of the rounded move weights.
func (s *SequentialSchedule) MovesPerIteration() float64 { return float64(s.perIter) }

func (s *SequentialSchedule) Next(*rand.Rand) move.Move {
	if s.perIter == 0 {
		// Every weight rounds to zero: plain rotation.
		mv := s.moves[s.cursor]
		s.cursor = (s.cursor + 1) % len(s.moves)
		return mv
	}
	for s.used >= s.repeats[s.cursor] {
		s.cursor = (s.cursor + 1) % len(s.moves)
		s.used = 0
	}
	s.used++
	return s.moves[s.cursor]
}

// SingleSchedule proposes exactly one weighted-random move per generation.
type SingleSchedule struct {
	weighted
}

func (*SingleSchedule) Kind() string { return Single }

// MovesPerIteration is always 1.
func (*SingleSchedule) MovesPerIteration() float64 { return 1 }

func (s *SingleSchedule) Next(r *rand.Rand) move.Move { return s.pick(r) }
