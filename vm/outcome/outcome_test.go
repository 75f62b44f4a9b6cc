package outcome_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/monchain/core"
	"github.com/tolelom/monchain/internal/testutil"
	"github.com/tolelom/monchain/vm/outcome"
)

func mon(id, xp, evo uint64) *core.Creature {
	return &core.Creature{ID: id, XP: xp, EvolutionLevel: evo}
}

func TestResolveIsDeterministic(t *testing.T) {
	a, b := mon(0, 50, 1), mon(1, 10, 1)
	for entropy := uint64(0); entropy < 50; entropy++ {
		assert.Equal(t, outcome.Resolve(a, b, entropy), outcome.Resolve(a, b, entropy))
	}
}

func TestResolveReachesBothWinners(t *testing.T) {
	a, b := mon(3, 10, 1), mon(8, 50, 2)
	wins := map[uint64]int{}
	for entropy := uint64(0); entropy < 500; entropy++ {
		w := outcome.Resolve(a, b, entropy)
		require.Contains(t, []uint64{a.ID, b.ID}, w)
		wins[w]++
	}
	assert.Positive(t, wins[a.ID])
	assert.Positive(t, wins[b.ID])
	assert.Greater(t, wins[b.ID], wins[a.ID], "the stronger creature should win more often")
}

func TestPowerNeverZero(t *testing.T) {
	assert.Equal(t, uint64(1), outcome.Power(mon(0, 0, 0)))
	assert.Equal(t, uint64(150), outcome.Power(mon(0, 50, 1)))
}

func TestApply(t *testing.T) {
	state := testutil.NewStateDB()
	w, l := mon(0, 10, 1), mon(1, 10, 1)
	for _, c := range []*core.Creature{w, l} {
		c.BattleReady = true
		c.Engaged = core.BattleKey(0, 1)
	}

	require.NoError(t, outcome.Apply(state, w, l))

	gw, err := state.GetCreature(0)
	require.NoError(t, err)
	gl, err := state.GetCreature(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gw.Wins)
	assert.Equal(t, uint64(1), gl.Losses)
	for _, c := range []*core.Creature{gw, gl} {
		assert.False(t, c.BattleReady)
		assert.Empty(t, c.Engaged)
	}
}

func TestSplit(t *testing.T) {
	a, b := mon(4, 0, 1), mon(9, 0, 1)
	w, l := outcome.Split(a, b, 9)
	assert.Same(t, b, w)
	assert.Same(t, a, l)
}
