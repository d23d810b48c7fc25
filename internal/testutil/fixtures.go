package testutil

import (
	"testing"

	"github.com/specialistvlad/burstmc/internal/dist"
	"github.com/specialistvlad/burstmc/internal/graph"
	"github.com/stretchr/testify/require"
)

// NormalModel returns mean = 0 and sd = 1 constants feeding an unclamped
// x ~ N(mean, sd) that starts at start, plus a vector v ~ N(mean, sd) of
// length two.
func NormalModel(t *testing.T, start float64) *graph.Model {
	t.Helper()
	m := graph.New()
	mean, err := m.AddConstant("mean", graph.Scalar(0))
	require.NoError(t, err)
	sd, err := m.AddConstant("sd", graph.Scalar(1))
	require.NoError(t, err)
	_, err = m.AddStochastic("x", dist.Normal(1), graph.Scalar(start), mean, sd)
	require.NoError(t, err)
	_, err = m.AddStochastic("v", dist.Normal(2), graph.Value{start, -start}, mean, sd)
	require.NoError(t, err)
	return m
}
