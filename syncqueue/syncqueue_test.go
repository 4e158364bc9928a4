package syncqueue

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrichain/harvestnode/blockchain/types"
)

func blockNumbered(n uint64) *types.Block {
	return &types.Block{Number: n, Data: []*types.Transaction{}}
}

func TestAddDrainsToFirstSuccessAndDiscardsRest(t *testing.T) {
	var mu sync.Mutex
	var succeeded []uint64
	q := New(10, func(b *types.Block) {
		mu.Lock()
		succeeded = append(succeeded, b.Number)
		mu.Unlock()
	})

	verify := func(b *types.Block) error {
		if b.Number == 2 {
			return errors.New("bad block")
		}
		return nil
	}

	q.Add(blockNumbered(2), verify) // fails, discarded
	q.Add(blockNumbered(3), verify) // succeeds, ends the drain
	q.Add(blockNumbered(4), verify) // never reached: cleared with the drain

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(succeeded) == 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{3}, succeeded)
	assert.Equal(t, 0, q.Len())
}

func TestWipeClearsWithoutVerifying(t *testing.T) {
	called := false
	q := New(10, nil)
	// Seed one in-flight verification that blocks until we wipe, so the
	// remaining queued entries are the ones under test.
	block := make(chan struct{})
	q.Add(blockNumbered(1), func(*types.Block) error {
		<-block
		return nil
	})
	q.Add(blockNumbered(2), func(*types.Block) error {
		called = true
		return nil
	})

	require.Eventually(t, func() bool { return q.Len() == 1 }, time.Second, time.Millisecond)
	q.Wipe()
	close(block)

	time.Sleep(10 * time.Millisecond)
	assert.False(t, called, "wiped entries must never be verified")
}

func TestAddDropsOldestOnOverflow(t *testing.T) {
	block := make(chan struct{})
	q := New(1, nil)
	// Hold the drain open on block #1 so #2/#3 queue up behind it.
	q.Add(blockNumbered(1), func(*types.Block) error {
		<-block
		return nil
	})
	require.Eventually(t, func() bool { return true }, time.Second, time.Millisecond)

	q.Add(blockNumbered(2), func(*types.Block) error { return nil })
	q.Add(blockNumbered(3), func(*types.Block) error { return nil })

	close(block)
	// Only #3 should have survived the capacity-1 overflow.
	assert.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, time.Millisecond)
}
