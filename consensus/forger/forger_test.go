package forger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrichain/harvestnode/blockchain/state"
	"github.com/agrichain/harvestnode/storage/database"
)

func newTestForger(t *testing.T) *Forger {
	t.Helper()
	st := state.New(database.NewChainDB(database.NewMemDatabase()))
	return New(st)
}

func TestElectFailsWithNoStakers(t *testing.T) {
	f := newTestForger(t)
	_, err := f.Elect("deadbeef")
	assert.ErrorIs(t, err, ErrNoStakers)
}

func TestElectIsDeterministicAcrossRuns(t *testing.T) {
	f := newTestForger(t)
	require.NoError(t, f.Update("orderer", 1))
	require.NoError(t, f.Update("alice-node", 3))
	require.NoError(t, f.Update("bob-node", 2))

	seed := "abcd1234"
	first, err := f.Elect(seed)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		got, err := f.Elect(seed)
		require.NoError(t, err)
		assert.Equal(t, first, got, "election must be a pure function of (staker table, seed)")
	}
}

func TestElectChangesWithSeed(t *testing.T) {
	f := newTestForger(t)
	require.NoError(t, f.Update("alice-node", 5))
	require.NoError(t, f.Update("bob-node", 5))

	winnerA, err := f.Elect("00000000")
	require.NoError(t, err)
	winnerB, err := f.Elect("ffffffff")
	require.NoError(t, err)

	// Not a hard requirement that they differ, but with two evenly staked
	// participants and opposite-extreme seeds, the winner should at least
	// be a valid staker in both cases.
	assert.Contains(t, []string{"alice-node", "bob-node"}, winnerA)
	assert.Contains(t, []string{"alice-node", "bob-node"}, winnerB)
}

func TestSingleStakerAlwaysWinsGenesisSelfSeed(t *testing.T) {
	f := newTestForger(t)
	require.NoError(t, f.Update("orderer", 1))

	winner, err := f.Elect("deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "orderer", winner)
}
