package session

import (
	"bytes"
	"context"
	"testing"

	"github.com/specialistvlad/burstmc/internal/mc3"
	"github.com/specialistvlad/burstmc/internal/mcmc"
	"github.com/specialistvlad/burstmc/internal/move"
	"github.com/specialistvlad/burstmc/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSampler(t *testing.T) *mcmc.Sampler {
	t.Helper()
	m := testutil.NormalModel(t, 0.5)
	mv, err := move.NewScale(m, move.Config{Target: "x", Weight: 1, Tuning: 1, AutoTune: true})
	require.NoError(t, err)
	s, err := mcmc.New(m, []move.Move{mv}, nil, mcmc.Config{Heat: 1, Active: true, Seed: 3})
	require.NoError(t, err)
	return s
}

func TestSessions(t *testing.T) {
	tests := []struct {
		name       string
		population *mc3.Config
		chains     int
	}{
		{name: "single chain", chains: 1},
		{name: "population", population: &mc3.Config{Chains: 3, Processors: 2, SwapInterval: 5, DeltaHeat: 0.3, Swaps: 1, Seed: 3}, chains: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := New(newSampler(t), tt.population)
			require.NoError(t, err)
			defer sess.Close()

			ctx := context.Background()
			require.NoError(t, sess.Initialize(ctx))
			require.NoError(t, sess.Burnin(ctx, 50, 10))
			require.NoError(t, sess.Run(ctx, 20))

			status := sess.Status()
			require.Len(t, status, tt.chains)
			active := 0
			for _, st := range status {
				assert.Equal(t, 20, st.Generation)
				assert.Equal(t, "sampling", st.State)
				if st.Active {
					active++
				}
			}
			assert.Equal(t, 1, active)

			var buf bytes.Buffer
			require.NoError(t, sess.WriteSummary(&buf))
			assert.Contains(t, buf.String(), "scale")
		})
	}
}

func TestNewPopulationError(t *testing.T) {
	_, err := New(newSampler(t), &mc3.Config{Chains: 0, SwapInterval: 1})
	assert.ErrorIs(t, err, mc3.ErrInvalidConfig)
}
