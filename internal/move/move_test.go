package move

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/specialistvlad/burstmc/internal/dist"
	"github.com/specialistvlad/burstmc/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModel(t *testing.T) *graph.Model {
	t.Helper()
	m := graph.New()
	mu, err := m.AddConstant("mu", graph.Scalar(0))
	require.NoError(t, err)
	sd, err := m.AddConstant("sd", graph.Scalar(1))
	require.NoError(t, err)
	_, err = m.AddStochastic("x", dist.Normal(1), graph.Scalar(2), mu, sd)
	require.NoError(t, err)
	_, err = m.AddStochastic("v", dist.Normal(3), graph.Value{1, 2, 3}, mu, sd)
	require.NoError(t, err)
	_, err = m.AddDeterministic("y", dist.Exp(), mu)
	require.NoError(t, err)
	return m
}

func valueOf(t *testing.T, m *graph.Model, name string) graph.Value {
	t.Helper()
	h, _, err := m.Lookup(name)
	require.NoError(t, err)
	v, err := m.Value(h)
	require.NoError(t, err)
	return v
}

func TestNew(t *testing.T) {
	m := testModel(t)

	mv, err := New("scale", m, Config{Target: "x", Weight: 2, Tuning: 1})
	require.NoError(t, err)
	assert.Equal(t, "scale", mv.Name())
	assert.Equal(t, "x", mv.ParamName())
	assert.Equal(t, 2.0, mv.Weight())
	assert.Equal(t, 1.0, mv.TuningParameter())

	mu, _, err := m.Lookup("mu")
	require.NoError(t, err)
	sd, _, err := m.Lookup("sd")
	require.NoError(t, err)
	obs, err := m.AddStochastic("obs", dist.Normal(2), graph.Value{0.1, 0.2}, mu, sd)
	require.NoError(t, err)
	require.NoError(t, m.Clamp(obs, graph.Value{0.1, 0.2}))

	tests := []struct {
		name string
		kind string
		cfg  Config
		want error
	}{
		{"unknown kind", "flip", Config{Target: "x", Weight: 1, Tuning: 1}, ErrInvalid},
		{"zero weight", "scale", Config{Target: "x", Weight: 0, Tuning: 1}, ErrInvalid},
		{"negative tuning", "slide", Config{Target: "x", Weight: 1, Tuning: -1}, ErrInvalid},
		{"empty target", "slide", Config{Target: "", Weight: 1, Tuning: 1}, graph.ErrEmptyName},
		{"unmatched target", "slide", Config{Target: "nope", Weight: 1, Tuning: 1}, graph.ErrUnmatchedName},
		{"deterministic target", "scale", Config{Target: "y", Weight: 1, Tuning: 1}, graph.ErrKind},
		{"clamped target", "slide", Config{Target: "obs", Weight: 1, Tuning: 1}, graph.ErrClamped},
		{"clamped element", "scale", Config{Target: "obs[1]", Weight: 1, Tuning: 1}, graph.ErrClamped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.kind, m, tt.cfg)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestScalePropose(t *testing.T) {
	m := testModel(t)
	r := rand.New(rand.NewPCG(3, 4))
	s, err := NewScale(m, Config{Target: "x", Weight: 1, Tuning: 1})
	require.NoError(t, err)

	lnHastings, err := s.Propose(r, 1)
	require.NoError(t, err)
	assert.InDelta(t, 2*math.Exp(lnHastings), valueOf(t, m, "x").Float(), 1e-12)
	assert.LessOrEqual(t, math.Abs(lnHastings), 0.5)
	assert.Equal(t, 1, s.Tried())

	n, _ := m.Node(s.Targets()[0])
	assert.True(t, n.IsTouched())
	require.NoError(t, m.Restore(s.Targets()[0]))
	assert.Equal(t, 2.0, valueOf(t, m, "x").Float())
}

func TestScaleVectorHastings(t *testing.T) {
	m := testModel(t)
	r := rand.New(rand.NewPCG(5, 6))
	s, err := NewScale(m, Config{Target: "v", Weight: 1, Tuning: 1})
	require.NoError(t, err)

	lnHastings, err := s.Propose(r, 1)
	require.NoError(t, err)
	factor := math.Exp(lnHastings / 3)
	assert.InDeltaSlice(t, []float64{factor, 2 * factor, 3 * factor}, valueOf(t, m, "v"), 1e-12)
}

func TestSlideElement(t *testing.T) {
	m := testModel(t)
	r := rand.New(rand.NewPCG(7, 8))
	s, err := NewSlide(m, Config{Target: "v[1]", Weight: 1, Tuning: 0.5})
	require.NoError(t, err)

	lnHastings, err := s.Propose(r, 0.5)
	require.NoError(t, err)
	assert.Zero(t, lnHastings)

	v := valueOf(t, m, "v")
	assert.Equal(t, 1.0, v[0])
	assert.Equal(t, 3.0, v[2])
	assert.LessOrEqual(t, math.Abs(v[1]-2), 0.25)

	n, _ := m.Node(s.Targets()[0])
	assert.Equal(t, []int{1}, n.TouchedElements())
}

func TestProposeClamped(t *testing.T) {
	m := testModel(t)
	s, err := NewSlide(m, Config{Target: "x", Weight: 1, Tuning: 1})
	require.NoError(t, err)
	require.NoError(t, m.Clamp(s.Targets()[0], graph.Scalar(0.1)))

	_, err = s.Propose(rand.New(rand.NewPCG(1, 1)), 1)
	assert.ErrorIs(t, err, graph.ErrClamped)
	assert.Zero(t, s.Tried())
}

func TestTuneRule(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want float64
	}{
		{"at target", TargetAcceptance, 1},
		{"all accepted", 1, 2},
		{"none accepted", 0, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tune(1, tt.rate, 1e-4, 1e4), 1e-12)
		})
	}
	assert.Equal(t, 10.0, tune(8, 1, 0, 10), "bounded above")
	assert.Equal(t, 0.1, tune(0.1, 0, 0.1, 10), "bounded below")
}

func TestTuneCounters(t *testing.T) {
	m := testModel(t)
	r := rand.New(rand.NewPCG(9, 9))
	s, err := NewSlide(m, Config{Target: "x", Weight: 1, Tuning: 1, AutoTune: true})
	require.NoError(t, err)

	for range 4 {
		_, err := s.Propose(r, 1)
		require.NoError(t, err)
		s.Accept()
		require.NoError(t, m.Keep(s.Targets()[0]))
	}
	assert.Equal(t, 4, s.Tried())
	assert.Equal(t, 4, s.Accepted())

	s.Tune()
	assert.InDelta(t, 2.0, s.TuningParameter(), 1e-12)
	s.Tune() // no proposals since the last tune
	assert.InDelta(t, 2.0, s.TuningParameter(), 1e-12)

	s.ResetCounters()
	assert.Zero(t, s.Tried())
	assert.Zero(t, s.Accepted())

	fixed, err := NewSlide(m, Config{Target: "x", Weight: 1, Tuning: 1})
	require.NoError(t, err)
	_, _ = fixed.Propose(r, 1)
	fixed.Reject()
	require.NoError(t, m.Restore(fixed.Targets()[0]))
	fixed.Tune()
	assert.Equal(t, 1.0, fixed.TuningParameter())
}

func TestClone(t *testing.T) {
	m := testModel(t)
	s, err := NewScale(m, Config{Target: "v[2]", Weight: 1, Tuning: 1})
	require.NoError(t, err)

	c := m.Clone()
	cm, err := s.Clone(c)
	require.NoError(t, err)
	assert.Equal(t, s.Targets(), cm.Targets())

	_, err = cm.Propose(rand.New(rand.NewPCG(1, 2)), 1)
	require.NoError(t, err)
	assert.Equal(t, 3.0, valueOf(t, m, "v")[2], "original untouched")
	assert.Equal(t, 0, s.Tried())

	_, err = s.Clone(graph.New())
	assert.ErrorIs(t, err, graph.ErrUnmatchedName)
}
