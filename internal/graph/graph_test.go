package graph

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gaussian is an iid normal over every element, parameterised by the first
// element of its two parents.
type gaussian struct{}

func (gaussian) Name() string { return "gaussian" }

func (gaussian) LnProb(x Value, params []Value) float64 {
	mu, sd := params[0].Float(), params[1].Float()
	var sum float64
	for _, v := range x {
		z := (v - mu) / sd
		sum += -0.5*z*z - math.Log(sd) - 0.5*math.Log(2*math.Pi)
	}
	return sum
}

func (gaussian) Sample(r *rand.Rand, params []Value) (Value, error) {
	return Scalar(params[0].Float() + params[1].Float()*r.NormFloat64()), nil
}

// ratioGaussian additionally exposes the parent-only shortcut.
type ratioGaussian struct{ gaussian }

func (g ratioGaussian) LnProbRatio(x Value, params, stored []Value) float64 {
	return g.LnProb(x, params) - g.LnProb(x, stored)
}

// sumFn adds the first element of every argument.
type sumFn struct{}

func (sumFn) Name() string { return "sum" }

func (sumFn) Evaluate(args []Value) (Value, error) {
	var s float64
	for _, a := range args {
		s += a.Float()
	}
	return Scalar(s), nil
}

type failingFn struct{}

func (failingFn) Name() string { return "fail" }

func (failingFn) Evaluate([]Value) (Value, error) { return nil, errors.New("boom") }

// diamond builds mu, sd -> a -> {b, c} -> d -> e where b, c, d are sums and
// a, e are stochastic.
type diamond struct {
	m *Model

	mu, sd, a, b, c, d, e Handle
}

func newDiamond(t *testing.T, d Distribution) diamond {
	t.Helper()
	var g diamond
	var err error
	g.m = New()
	g.mu, err = g.m.AddConstant("mu", Scalar(0))
	require.NoError(t, err)
	g.sd, err = g.m.AddConstant("sd", Scalar(1))
	require.NoError(t, err)
	g.a, err = g.m.AddStochastic("a", d, Scalar(1), g.mu, g.sd)
	require.NoError(t, err)
	g.b, err = g.m.AddDeterministic("b", sumFn{}, g.a)
	require.NoError(t, err)
	g.c, err = g.m.AddDeterministic("c", sumFn{}, g.a)
	require.NoError(t, err)
	g.d, err = g.m.AddDeterministic("d", sumFn{}, g.b, g.c)
	require.NoError(t, err)
	g.e, err = g.m.AddStochastic("e", d, Scalar(0.5), g.d, g.sd)
	require.NoError(t, err)
	return g
}

func value(t *testing.T, m *Model, h Handle) float64 {
	t.Helper()
	v, err := m.Value(h)
	require.NoError(t, err)
	return v.Float()
}

func lnProb(t *testing.T, m *Model, h Handle) float64 {
	t.Helper()
	p, err := m.LnProbability(h)
	require.NoError(t, err)
	return p
}

func touchedNames(m *Model) []string {
	var names []string
	for _, h := range m.Handles() {
		if n, _ := m.Node(h); n.IsTouched() {
			names = append(names, n.Name())
		}
	}
	return names
}

func TestAddNodes(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := newDiamond(t, gaussian{})
		assert.Equal(t, 7, g.m.Len())
		assert.Equal(t, 2.0, value(t, g.m, g.d))

		n, ok := g.m.Node(g.e)
		require.True(t, ok)
		assert.Equal(t, Stochastic, n.Kind())
		assert.Equal(t, "gaussian", n.Distribution().Name())
		assert.Equal(t, []Handle{g.d, g.sd}, g.m.Parents(g.e))
		assert.Equal(t, []Handle{g.b, g.c}, g.m.Children(g.a))
		assert.NoError(t, g.m.CheckConsistency())
	})

	t.Run("error cases", func(t *testing.T) {
		g := newDiamond(t, gaussian{})

		_, err := g.m.AddConstant("mu", Scalar(1))
		assert.ErrorIs(t, err, ErrDuplicateName)

		_, err = g.m.AddConstant("mu[1]", Scalar(1))
		assert.ErrorContains(t, err, "must not carry an element index")

		_, err = g.m.AddStochastic("x", gaussian{}, nil, g.mu, g.sd)
		assert.ErrorContains(t, err, "initial value is required")

		_, err = g.m.AddDeterministic("y", sumFn{}, g.a, g.a)
		assert.ErrorContains(t, err, "listed twice")

		_, err = g.m.AddDeterministic("y", sumFn{}, Handle(99))
		assert.ErrorIs(t, err, ErrNodeNotFound)

		before := g.m.Len()
		_, err = g.m.AddDeterministic("broken", failingFn{}, g.a)
		assert.ErrorContains(t, err, "boom")
		assert.Equal(t, before, g.m.Len(), "failed node must be unlinked")
		assert.Equal(t, []Handle{g.b, g.c}, g.m.Children(g.a))
		_, _, err = g.m.Lookup("broken")
		assert.ErrorIs(t, err, ErrUnmatchedName)
	})
}

func TestLookup(t *testing.T) {
	m := New()
	mu, _ := m.AddConstant("mu", Scalar(0))
	sd, _ := m.AddConstant("sd", Scalar(1))
	rates, err := m.AddStochastic("rates", gaussian{}, Value{1, 2, 3}, mu, sd)
	require.NoError(t, err)

	h, idx, err := m.Lookup("rates")
	require.NoError(t, err)
	assert.Equal(t, rates, h)
	assert.Equal(t, -1, idx)

	h, idx, err = m.Lookup("rates[2]")
	require.NoError(t, err)
	assert.Equal(t, rates, h)
	assert.Equal(t, 2, idx)

	_, _, err = m.Lookup("rates[3]")
	assert.ErrorIs(t, err, ErrUnmatchedName)

	_, _, err = m.Lookup("")
	assert.ErrorIs(t, err, ErrEmptyName)

	_, _, err = m.Lookup("nope")
	assert.ErrorIs(t, err, ErrUnmatchedName)

	require.NoError(t, m.SetName(rates, "theta"))
	_, _, err = m.Lookup("rates")
	assert.ErrorIs(t, err, ErrUnmatchedName)
	h, _, err = m.Lookup("theta")
	require.NoError(t, err)
	assert.Equal(t, rates, h)
	assert.ErrorIs(t, m.SetName(rates, "mu"), ErrDuplicateName)
}

func TestTouchKeep(t *testing.T) {
	g := newDiamond(t, gaussian{})

	require.NoError(t, g.m.SetValue(g.a, Scalar(3)))
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, touchedNames(g.m))

	require.NoError(t, g.m.Keep(g.a))
	assert.Empty(t, touchedNames(g.m))
	assert.Equal(t, 3.0, value(t, g.m, g.a))
	assert.Equal(t, 6.0, value(t, g.m, g.d))

	want := gaussian{}.LnProb(Scalar(3), []Value{Scalar(0), Scalar(1)}) +
		gaussian{}.LnProb(Scalar(0.5), []Value{Scalar(6), Scalar(1)})
	got, err := g.m.LnPosterior()
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)
}

func TestTouchRestore(t *testing.T) {
	g := newDiamond(t, gaussian{})
	beforeA, beforeD := value(t, g.m, g.a), value(t, g.m, g.d)
	beforeE := lnProb(t, g.m, g.e)

	require.NoError(t, g.m.SetValue(g.a, Scalar(3)))
	assert.Equal(t, 6.0, value(t, g.m, g.d))
	assert.NotEqual(t, beforeE, lnProb(t, g.m, g.e))

	require.NoError(t, g.m.Restore(g.a))
	assert.Empty(t, touchedNames(g.m))
	assert.Equal(t, math.Float64bits(beforeA), math.Float64bits(value(t, g.m, g.a)))
	assert.Equal(t, math.Float64bits(beforeD), math.Float64bits(value(t, g.m, g.d)))
	assert.Equal(t, math.Float64bits(beforeE), math.Float64bits(lnProb(t, g.m, g.e)))
}

func TestTouchDiamondPropagation(t *testing.T) {
	g := newDiamond(t, gaussian{})

	require.NoError(t, g.m.Touch(g.a))
	require.NoError(t, g.m.Touch(g.a)) // idempotent
	for _, h := range []Handle{g.b, g.c, g.d, g.e} {
		n, _ := g.m.Node(h)
		assert.True(t, n.IsTouched(), n.Name())
	}
	n, _ := g.m.Node(g.mu)
	assert.False(t, n.IsTouched())

	// Refresh the region, then change a again: d must go stale once more.
	assert.Equal(t, 2.0, value(t, g.m, g.d))
	require.NoError(t, g.m.SetValue(g.a, Scalar(4)))
	assert.Equal(t, 8.0, value(t, g.m, g.d))

	require.NoError(t, g.m.Restore(g.a))
	assert.Equal(t, 2.0, value(t, g.m, g.d))
	assert.Empty(t, touchedNames(g.m))
}

func TestLnProbabilityRatio(t *testing.T) {
	params := func(mu float64) []Value { return []Value{Scalar(mu), Scalar(1)} }

	tests := []struct {
		name string
		dist Distribution
	}{
		{"full recompute", gaussian{}},
		{"parent ratio shortcut", ratioGaussian{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.dist
			g := newDiamond(t, d)

			ratio, err := g.m.LnProbabilityRatio(g.e)
			require.NoError(t, err)
			assert.Zero(t, ratio, "untouched node")

			require.NoError(t, g.m.Touch(g.mu))
			ratio, err = g.m.LnProbabilityRatio(g.a)
			require.NoError(t, err)
			assert.Zero(t, ratio, "parent touched without a new value")
			require.NoError(t, g.m.Keep(g.mu))

			require.NoError(t, g.m.SetValue(g.a, Scalar(3)))

			// self only
			ratio, err = g.m.LnProbabilityRatio(g.a)
			require.NoError(t, err)
			want := d.LnProb(Scalar(3), params(0)) - d.LnProb(Scalar(1), params(0))
			assert.InDelta(t, want, ratio, 1e-12)

			// parents only
			ratio, err = g.m.LnProbabilityRatio(g.e)
			require.NoError(t, err)
			assert.InDelta(t, -14.0, ratio, 1e-12)

			// deterministic nodes contribute nothing
			ratio, err = g.m.LnProbabilityRatio(g.d)
			require.NoError(t, err)
			assert.Zero(t, ratio)

			// self and parents
			require.NoError(t, g.m.SetValue(g.e, Scalar(6)))
			ratio, err = g.m.LnProbabilityRatio(g.e)
			require.NoError(t, err)
			want = d.LnProb(Scalar(6), params(6)) - d.LnProb(Scalar(0.5), params(2))
			assert.InDelta(t, want, ratio, 1e-12)
		})
	}
}

func TestAffectedStochastic(t *testing.T) {
	g := newDiamond(t, gaussian{})
	require.NoError(t, g.m.SetValue(g.a, Scalar(2)))
	assert.Equal(t, []Handle{g.a, g.e}, g.m.AffectedStochastic(g.a))
	assert.Empty(t, g.m.AffectedStochastic(g.mu))
}

func TestSetElement(t *testing.T) {
	m := New()
	mu, _ := m.AddConstant("mu", Scalar(0))
	sd, _ := m.AddConstant("sd", Scalar(1))
	rates, err := m.AddStochastic("rates", gaussian{}, Value{1, 2, 3}, mu, sd)
	require.NoError(t, err)

	require.NoError(t, m.SetElement(rates, 1, 5))
	n, _ := m.Node(rates)
	assert.Equal(t, []int{1}, n.TouchedElements())
	v, err := m.Value(rates)
	require.NoError(t, err)
	assert.Equal(t, Value{1, 5, 3}, v)

	assert.Error(t, m.SetElement(rates, 3, 0))

	require.NoError(t, m.Restore(rates))
	assert.Empty(t, n.TouchedElements())
	v, _ = m.Value(rates)
	assert.Equal(t, Value{1, 2, 3}, v)
}

func TestClampAndRedraw(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	g := newDiamond(t, gaussian{})

	require.NoError(t, g.m.Touch(g.e))
	assert.ErrorIs(t, g.m.Clamp(g.e, Scalar(0.7)), ErrVolatile)
	require.NoError(t, g.m.Keep(g.e))

	require.NoError(t, g.m.Clamp(g.e, Scalar(0.7)))
	n, _ := g.m.Node(g.e)
	assert.True(t, n.IsClamped())
	assert.False(t, n.IsTouched())
	assert.Equal(t, 0.7, value(t, g.m, g.e))

	assert.ErrorIs(t, g.m.Redraw(r, g.e), ErrClamped)
	assert.ErrorIs(t, g.m.SetValue(g.e, Scalar(1)), ErrClamped)
	assert.ErrorIs(t, g.m.Redraw(r, g.d), ErrKind)
	assert.ErrorIs(t, g.m.SetValue(g.mu, Scalar(1)), ErrKind)
	assert.ErrorIs(t, g.m.Clamp(g.d, Scalar(1)), ErrKind)

	require.NoError(t, g.m.Redraw(r, g.a))
	assert.True(t, touchedNamesContain(g.m, "d"))
	require.NoError(t, g.m.Keep(g.a))

	require.NoError(t, g.m.Unclamp(g.e))
	assert.NoError(t, g.m.Redraw(r, g.e))
}

func touchedNamesContain(m *Model, name string) bool {
	for _, n := range touchedNames(m) {
		if n == name {
			return true
		}
	}
	return false
}

func TestTopology(t *testing.T) {
	t.Run("cycle rejection leaves graph unchanged", func(t *testing.T) {
		g := newDiamond(t, gaussian{})

		err := g.m.AddParent(g.b, g.e)
		assert.ErrorIs(t, err, ErrCycle)
		assert.Equal(t, []Handle{g.a}, g.m.Parents(g.b))
		assert.Empty(t, g.m.Children(g.e))
		assert.Empty(t, touchedNames(g.m))

		assert.ErrorIs(t, g.m.AddParent(g.d, g.d), ErrCycle)
		assert.ErrorIs(t, g.m.SwapParent(g.b, g.a, g.d), ErrCycle)
		assert.ErrorIs(t, g.m.AddParent(g.mu, g.sd), ErrKind)
		assert.NoError(t, g.m.DetectCycles())
		assert.NoError(t, g.m.CheckConsistency())
	})

	t.Run("add and remove parents", func(t *testing.T) {
		g := newDiamond(t, gaussian{})

		require.NoError(t, g.m.RemoveParent(g.d, g.c))
		assert.Equal(t, []Handle{g.b}, g.m.Parents(g.d))
		assert.Empty(t, g.m.Children(g.c))
		assert.True(t, touchedNamesContain(g.m, "d"))
		assert.Equal(t, 1.0, value(t, g.m, g.d))
		g.m.KeepAll()

		require.NoError(t, g.m.AddChild(g.c, g.d))
		assert.Equal(t, []Handle{g.b, g.c}, g.m.Parents(g.d))
		assert.Equal(t, 2.0, value(t, g.m, g.d))

		require.NoError(t, g.m.SwapParent(g.d, g.c, g.sd))
		assert.Equal(t, []Handle{g.b, g.sd}, g.m.Parents(g.d))
		assert.Equal(t, []Handle{g.a, g.d, g.e}, g.m.Children(g.sd))
		assert.Equal(t, 2.0, value(t, g.m, g.d))

		assert.ErrorIs(t, g.m.RemoveParent(g.d, g.c), ErrNoRelation)
		assert.ErrorIs(t, g.m.RemoveChild(g.mu, g.e), ErrNoRelation)
		assert.NoError(t, g.m.CheckConsistency())
	})

	t.Run("detect cycles in corrupted graph", func(t *testing.T) {
		g := newDiamond(t, gaussian{})
		g.m.nodes[g.e].children.add(g.a)
		g.m.nodes[g.a].parents = append(g.m.nodes[g.a].parents, g.e)
		assert.ErrorIs(t, g.m.DetectCycles(), ErrCycle)
	})

	t.Run("topological order", func(t *testing.T) {
		g := newDiamond(t, gaussian{})
		order := g.m.TopologicalOrder()
		require.Len(t, order, 7)
		pos := make(map[Handle]int)
		for i, h := range order {
			pos[h] = i
		}
		for _, h := range order {
			for _, c := range g.m.Children(h) {
				assert.Less(t, pos[h], pos[c])
			}
		}
	})
}

func TestRemoveNode(t *testing.T) {
	g := newDiamond(t, gaussian{})

	assert.ErrorIs(t, g.m.RemoveNode(g.d), ErrInUse)
	require.NoError(t, g.m.RemoveNode(g.e))
	assert.Equal(t, 6, g.m.Len())
	assert.Empty(t, g.m.Children(g.d))
	assert.Equal(t, []Handle{g.a}, g.m.Children(g.sd))
	_, _, err := g.m.Lookup("e")
	assert.ErrorIs(t, err, ErrUnmatchedName)
	assert.ErrorIs(t, g.m.RemoveNode(g.e), ErrNodeNotFound)
	assert.NoError(t, g.m.CheckConsistency())
}

type shape struct {
	Kind     Kind
	Parents  []string
	Children []string
}

func snapshot(m *Model) map[string]shape {
	names := func(hs []Handle) []string {
		var out []string
		for _, h := range hs {
			out = append(out, m.Name(h))
		}
		return out
	}
	s := make(map[string]shape)
	for _, h := range m.Handles() {
		n, _ := m.Node(h)
		s[n.Name()] = shape{Kind: n.Kind(), Parents: names(m.Parents(h)), Children: names(m.Children(h))}
	}
	return s
}

func TestClone(t *testing.T) {
	g := newDiamond(t, gaussian{})
	require.NoError(t, g.m.SetValue(g.a, Scalar(2)))

	c := g.m.Clone()
	if diff := cmp.Diff(snapshot(g.m), snapshot(c)); diff != "" {
		t.Errorf("clone topology mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, touchedNames(g.m), touchedNames(c))

	// Rebinding by name.
	ca, _, err := c.Lookup("a")
	require.NoError(t, err)

	// The copy is independent of the original.
	require.NoError(t, c.Restore(ca))
	assert.Equal(t, 1.0, value(t, c, ca))
	assert.Equal(t, 4.0, value(t, g.m, g.d))
	require.NoError(t, c.SetValue(ca, Scalar(10)))
	assert.Equal(t, 2.0, value(t, g.m, g.a))
}

func TestCloneDownstream(t *testing.T) {
	g := newDiamond(t, gaussian{})
	visited := make(map[Handle]Handle)

	a2, err := g.m.CloneDownstream(g.a, visited)
	require.NoError(t, err)
	assert.Len(t, visited, 5)
	assert.Equal(t, 12, g.m.Len())

	b2, c2, d2, e2 := visited[g.b], visited[g.c], visited[g.d], visited[g.e]
	assert.Equal(t, []Handle{g.mu, g.sd}, g.m.Parents(a2), "outside parents are shared")
	assert.Equal(t, []Handle{b2, c2}, g.m.Children(a2))
	assert.Equal(t, []Handle{b2, c2}, g.m.Parents(d2), "diamond copy is wired to copies")
	assert.Equal(t, []Handle{d2, g.sd}, g.m.Parents(e2))
	assert.Empty(t, g.m.Name(d2))
	assert.NoError(t, g.m.CheckConsistency())
	assert.NoError(t, g.m.DetectCycles())

	require.NoError(t, g.m.SetValue(a2, Scalar(5)))
	assert.Equal(t, 10.0, value(t, g.m, d2))
	assert.Equal(t, 2.0, value(t, g.m, g.d))

	again, err := g.m.CloneDownstream(g.a, visited)
	require.NoError(t, err)
	assert.Equal(t, a2, again)
}
