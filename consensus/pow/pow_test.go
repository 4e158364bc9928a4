package pow

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrichain/harvestnode/blockchain/types"
	"github.com/agrichain/harvestnode/crypto"
)

func TestAdjustDifficultyIncreasesWithinMineRate(t *testing.T) {
	last := types.Genesis()
	last.Timestamp = 1000
	got := AdjustDifficulty(last, 1000+MineRate-1)
	assert.Equal(t, last.Difficulty+1, got)
}

func TestAdjustDifficultyDecreasesBeyondMineRate(t *testing.T) {
	last := types.Genesis()
	last.Timestamp = 1000
	got := AdjustDifficulty(last, 1000+MineRate+1)
	assert.Equal(t, last.Difficulty-1, got)
}

func TestAdjustDifficultyClampsAtMinimum(t *testing.T) {
	last := types.Genesis()
	last.Difficulty = 1
	last.Timestamp = 1000
	got := AdjustDifficulty(last, 1000+MineRate+1)
	assert.Equal(t, MinDifficulty, got)
}

func TestMineProducesValidBlock(t *testing.T) {
	last := types.Genesis()
	last.Difficulty = 1

	block, err := Mine(last, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, last.Number+1, block.Number)
	assert.Equal(t, last.Hash, block.LastHash)
	require.NoError(t, block.VerifyHash())

	binary, err := crypto.HexToBinary(block.Hash)
	require.NoError(t, err)
	assert.Equal(t, block.Difficulty, strings.Count(binary[:block.Difficulty], "0"))
}

func TestMineIsCancellable(t *testing.T) {
	last := types.Genesis()
	last.Difficulty = 64 // unreachable in the test's time budget

	quit := make(chan struct{})
	done := make(chan struct{})
	var err error
	go func() {
		_, err = Mine(last, nil, quit)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	close(quit)
	<-done

	assert.ErrorIs(t, err, ErrCancelled)
}
