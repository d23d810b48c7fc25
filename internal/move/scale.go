package move

import (
	"math"
	"math/rand/v2"

	"github.com/specialistvlad/burstmc/internal/graph"
)

// Scale multiplies the target by exp(λ(u-½)), u ~ U(0,1). It suits
// positive-valued parameters.
type Scale struct {
	base
}

var _ Move = (*Scale)(nil)

// NewScale binds a scale move to cfg.Target in m.
func NewScale(m *graph.Model, cfg Config) (*Scale, error) {
	b, err := newBase("scale", m, cfg, 1e-4, 1e4)
	if err != nil {
		return nil, err
	}
	return &Scale{base: b}, nil
}

// Propose scales every addressed element by the same factor. The Hastings
// ratio is n·ln(m) for n scaled elements.
func (s *Scale) Propose(r *rand.Rand, _ float64) (float64, error) {
	v, err := s.current()
	if err != nil {
		return 0, err
	}
	lnM := s.tuning * (r.Float64() - 0.5)
	factor := math.Exp(lnM)
	for i := range v {
		v[i] *= factor
	}
	if err := s.set(v); err != nil {
		return 0, err
	}
	s.proposed()
	return float64(len(v)) * lnM, nil
}

// Clone returns a copy bound to the same-named node in m.
func (s *Scale) Clone(m *graph.Model) (Move, error) {
	b, err := s.base.rebind(m)
	if err != nil {
		return nil, err
	}
	return &Scale{base: b}, nil
}
