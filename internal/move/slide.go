package move

import (
	"math/rand/v2"

	"github.com/specialistvlad/burstmc/internal/graph"
)

// Slide shifts the target by δ(u-½), u ~ U(0,1). The proposal is symmetric.
type Slide struct {
	base
}

var _ Move = (*Slide)(nil)

// NewSlide binds a slide move to cfg.Target in m.
func NewSlide(m *graph.Model, cfg Config) (*Slide, error) {
	b, err := newBase("slide", m, cfg, 1e-6, 1e6)
	if err != nil {
		return nil, err
	}
	return &Slide{base: b}, nil
}

// Propose shifts every addressed element by the same offset.
func (s *Slide) Propose(r *rand.Rand, _ float64) (float64, error) {
	v, err := s.current()
	if err != nil {
		return 0, err
	}
	delta := s.tuning * (r.Float64() - 0.5)
	for i := range v {
		v[i] += delta
	}
	if err := s.set(v); err != nil {
		return 0, err
	}
	s.proposed()
	return 0, nil
}

// Clone returns a copy bound to the same-named node in m.
func (s *Slide) Clone(m *graph.Model) (Move, error) {
	b, err := s.base.rebind(m)
	if err != nil {
		return nil, err
	}
	return &Slide{base: b}, nil
}
