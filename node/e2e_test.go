// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrichain/harvestnode/blockchain/types"
	"github.com/agrichain/harvestnode/consensus/forger"
	"github.com/agrichain/harvestnode/consensus/pow"
	"github.com/agrichain/harvestnode/crypto"
	"github.com/agrichain/harvestnode/storage/database"
)

// newTestNode builds a Node over an in-memory store without opening any
// network listener, so its handlers/schedulers can be driven directly.
func newTestNode(t *testing.T, isOrdererNode bool) *Node {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	cfg := &Config{
		AppPort:       0,
		APIPort:       0,
		PrivateKeyHex: crypto.PrivateKeyHex(kp.Private),
		MaxPeers:      8,
		IsOrdererNode: isOrdererNode,
		DBType:        database.MEMDB,
		NAT:           "none",
	}
	n, err := New(cfg)
	require.NoError(t, err)
	return n
}

// creditAccount bootstraps pub's balance by applying a coin-purchase block
// directly against state, bypassing mempool admission the way a FIRST_ACCOUNT
// issuance would (spec.md §8 scenario 1's opening step), since FIRST_ACCOUNT
// itself is not a signable keypair.
func creditAccount(t *testing.T, n *Node, pub string, amount uint64) {
	t.Helper()
	latest, err := n.state.LatestBlock()
	require.NoError(t, err)
	purchase := types.NewTransaction(types.FirstAccount, pub, &types.CoinPurchaseData{Amount: amount})
	b, err := types.NewBlock(latest.Number+1, latest.Timestamp+1, latest.Hash, latest.Difficulty, 0, []*types.Transaction{purchase})
	require.NoError(t, err)
	require.NoError(t, n.state.ApplyBlock(b))
}

// TestSubmitTransactionCoinPurchaseThenTransfer covers spec.md §8 scenario 1:
// a funded account's signed transfer is admitted and, once mined, moves the
// balance and is evicted from the pool.
func TestSubmitTransactionCoinPurchaseThenTransfer(t *testing.T) {
	n := newTestNode(t, false)
	require.NoError(t, n.startup())

	alice, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	bob, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	creditAccount(t, n, alice.PublicKeyHex(), 100)

	transfer := types.NewTransaction(alice.PublicKeyHex(), bob.PublicKeyHex(), &types.TransferData{Amount: 40})
	require.NoError(t, transfer.Sign(alice.Private))

	assert.True(t, n.submitTransaction(transfer))
	assert.Equal(t, 1, n.pool.Len())

	latest, err := n.state.LatestBlock()
	require.NoError(t, err)
	mined, err := pow.Mine(latest, []*types.Transaction{transfer}, nil)
	require.NoError(t, err)
	require.NoError(t, n.state.ApplyBlock(mined))
	n.pool.EvictCommitted(mined)

	aliceAcc, err := n.state.GetAccount(alice.PublicKeyHex())
	require.NoError(t, err)
	assert.Equal(t, uint64(60), aliceAcc.Balance)

	bobAcc, err := n.state.GetAccount(bob.PublicKeyHex())
	require.NoError(t, err)
	require.NotNil(t, bobAcc)
	assert.Equal(t, uint64(40), bobAcc.Balance)

	assert.Equal(t, 0, n.pool.Len(), "committed transfer must be evicted")
}

// TestSubmitTransactionRejectsInvalidSignature covers spec.md §8's "tamper
// with tx signature before submit" boundary case.
func TestSubmitTransactionRejectsInvalidSignature(t *testing.T) {
	n := newTestNode(t, false)
	require.NoError(t, n.startup())

	alice, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	bob, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	creditAccount(t, n, alice.PublicKeyHex(), 100)

	transfer := types.NewTransaction(alice.PublicKeyHex(), bob.PublicKeyHex(), &types.TransferData{Amount: 40})
	require.NoError(t, transfer.Sign(alice.Private))
	transfer.Signature = transfer.Signature[:len(transfer.Signature)-2] + "ff"

	assert.False(t, n.submitTransaction(transfer))
	assert.Equal(t, 0, n.pool.Len())
}

// TestCatchUpAcceptsGenesisThenSubsequentBlocks covers spec.md §8 scenario 3:
// a node with ENABLE_CHAIN_REQUEST and an empty store defers genesis to
// catch-up instead of self-applying it, then accepts blocks in order.
func TestCatchUpAcceptsGenesisThenSubsequentBlocks(t *testing.T) {
	n := newTestNode(t, false)
	n.cfg.EnableChainRequest = true
	require.NoError(t, n.startup())

	n.mu.Lock()
	want := n.currentSyncBlock
	n.mu.Unlock()
	assert.Equal(t, types.GenesisNumber, want)

	latest, err := n.state.LatestBlock()
	require.NoError(t, err)
	assert.Nil(t, latest, "genesis must not be self-applied when catch-up is pending")

	require.NoError(t, n.verifyAndApplySync(types.Genesis()))
	n.onSyncVerified(types.Genesis())

	genesisBlock, err := n.state.LatestBlock()
	require.NoError(t, err)
	require.NotNil(t, genesisBlock)
	assert.Equal(t, types.GenesisNumber, genesisBlock.Number)

	next, err := pow.Mine(genesisBlock, nil, nil)
	require.NoError(t, err)
	require.NoError(t, n.verifyAndApplySync(next))
	n.onSyncVerified(next)

	latest, err = n.state.LatestBlock()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, next.Number, latest.Number)

	n.mu.Lock()
	want = n.currentSyncBlock
	n.mu.Unlock()
	assert.Equal(t, next.Number+1, want)
}

// TestHandleBlockPublishedAcceptsPastGenesisWhileSyncing covers spec.md
// §4.9's PUBLISH_BLOCK row, "live mode (or past genesis in sync)": once
// catch-up has committed genesis, a live PUBLISH_BLOCK extending the tip
// must be accepted even though n.syncing is still true, but a publish that
// arrives before genesis itself has landed is still rejected.
func TestHandleBlockPublishedAcceptsPastGenesisWhileSyncing(t *testing.T) {
	n := newTestNode(t, false)
	n.cfg.EnableChainRequest = true
	require.NoError(t, n.startup())

	n.mu.Lock()
	n.syncing = true
	n.mu.Unlock()

	rejected := n.handleBlockPublished(types.Genesis())
	assert.False(t, rejected, "a publish before genesis has landed must still be rejected while syncing")

	require.NoError(t, n.verifyAndApplySync(types.Genesis()))
	n.onSyncVerified(types.Genesis())

	n.mu.Lock()
	n.syncing = true
	n.mu.Unlock()

	genesisBlock, err := n.state.LatestBlock()
	require.NoError(t, err)
	next, err := pow.Mine(genesisBlock, nil, nil)
	require.NoError(t, err)

	accepted := n.handleBlockPublished(next)
	assert.True(t, accepted, "past genesis, a publish must be accepted even while n.syncing is still true")

	latest, err := n.state.LatestBlock()
	require.NoError(t, err)
	assert.Equal(t, next.Number, latest.Number)
}

// TestForgerElectionIsDeterministic covers spec.md §8's forger-election
// determinism invariant: two independent nodes with the same staker table
// and seed must elect the same winner.
func TestForgerElectionIsDeterministic(t *testing.T) {
	// Both nodes built as non-orderer so startup doesn't self-seed a stake
	// under each node's own (necessarily distinct) keypair, which would
	// leave the two staker tables different and the test flaky.
	n1 := newTestNode(t, false)
	n2 := newTestNode(t, false)
	require.NoError(t, n1.startup())
	require.NoError(t, n2.startup())

	staker1, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	staker2, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	for _, f := range []*forger.Forger{n1.forger, n2.forger} {
		require.NoError(t, f.Update(staker1.PublicKeyHex(), 3))
		require.NoError(t, f.Update(staker2.PublicKeyHex(), 5))
	}

	seed := "abc123"
	winner1, err := n1.forger.Elect(seed)
	require.NoError(t, err)
	winner2, err := n2.forger.Elect(seed)
	require.NoError(t, err)
	assert.Equal(t, winner1, winner2)
}

// TestHandleBlockPublishedPreemptsInFlightMining covers spec.md §8 scenario
// 5: a competing block accepted for the number this node is mining cancels
// the in-flight attempt.
func TestHandleBlockPublishedPreemptsInFlightMining(t *testing.T) {
	n := newTestNode(t, false)
	require.NoError(t, n.startup())
	n.agent.Start()
	defer n.agent.Stop()

	alice, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	bob, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	creditAccount(t, n, alice.PublicKeyHex(), 100)

	transfer := types.NewTransaction(alice.PublicKeyHex(), bob.PublicKeyHex(), &types.TransferData{Amount: 10})
	require.NoError(t, transfer.Sign(alice.Private))
	require.NoError(t, n.pool.Add(transfer))

	n.triggerMining()
	n.mu.Lock()
	mining := n.mining
	n.mu.Unlock()
	require.True(t, mining, "triggerMining must mark a mine as in flight")

	latest, err := n.state.LatestBlock()
	require.NoError(t, err)
	competing, err := pow.Mine(latest, nil, nil)
	require.NoError(t, err)

	accepted := n.handleBlockPublished(competing)
	assert.True(t, accepted)

	n.mu.Lock()
	mining = n.mining
	n.mu.Unlock()
	assert.False(t, mining, "a competing published block must cancel the in-flight attempt")

	newLatest, err := n.state.LatestBlock()
	require.NoError(t, err)
	assert.Equal(t, competing.Number, newLatest.Number)
}

// TestVerifyBlockRejectsDifficultyJump covers spec.md §3's difficulty-delta
// invariant: a claimed jump of more than one from the predecessor is
// rejected regardless of whether the PoW prefix happens to check out.
func TestVerifyBlockRejectsDifficultyJump(t *testing.T) {
	n := newTestNode(t, false)
	require.NoError(t, n.startup())

	latest, err := n.state.LatestBlock()
	require.NoError(t, err)

	bad, err := types.NewBlock(latest.Number+1, latest.Timestamp+1, latest.Hash, latest.Difficulty+5, 0, nil)
	require.NoError(t, err)

	err = n.verifyBlock(bad, latest)
	assert.ErrorIs(t, err, ErrInvalidBlock)
}

// TestVerifyBlockRejectsOverdraw covers spec.md §7's InvalidBlock-by-overdraw
// edge case: a block debiting more than the shadow balance holds is rejected
// before ever reaching ApplyBlock.
func TestVerifyBlockRejectsOverdraw(t *testing.T) {
	n := newTestNode(t, false)
	require.NoError(t, n.startup())

	alice, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	bob, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	creditAccount(t, n, alice.PublicKeyHex(), 10)

	overdraw := types.NewTransaction(alice.PublicKeyHex(), bob.PublicKeyHex(), &types.TransferData{Amount: 9999})
	require.NoError(t, overdraw.Sign(alice.Private))

	latest, err := n.state.LatestBlock()
	require.NoError(t, err)
	block, err := pow.Mine(latest, []*types.Transaction{overdraw}, nil)
	require.NoError(t, err)

	err = n.verifyBlock(block, latest)
	assert.ErrorIs(t, err, ErrInvalidBlock)
}

// TestVerifyBlockRejectsForgedMintTransaction covers the mint-trust boundary
// spec.md §8.268 draws around "coinbase transactions" specifically: a
// mint-sourced transaction anywhere other than a correctly-typed index-0
// coinbase must be rejected, not silently trusted the way every other
// mint-sourced transaction in the block would be if the exception were
// applied by From alone.
func TestVerifyBlockRejectsForgedMintTransaction(t *testing.T) {
	n := newTestNode(t, false)
	require.NoError(t, n.startup())

	bob, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	latest, err := n.state.LatestBlock()
	require.NoError(t, err)

	t.Run("forged transfer at index 0", func(t *testing.T) {
		forged := types.NewTransaction(types.MintAccount, bob.PublicKeyHex(), &types.TransferData{Amount: 1_000_000})
		block, err := pow.Mine(latest, []*types.Transaction{forged}, nil)
		require.NoError(t, err)

		err = n.verifyBlock(block, latest)
		assert.ErrorIs(t, err, ErrInvalidBlock)
	})

	t.Run("extra mining reward behind a legitimate coinbase", func(t *testing.T) {
		coinbase := types.NewMiningRewardTx(n.keys.PublicKeyHex())
		require.NoError(t, coinbase.Sign(n.mintKey.Private))
		extraReward := types.NewMiningRewardTx(bob.PublicKeyHex())
		require.NoError(t, extraReward.Sign(n.mintKey.Private))

		block, err := pow.Mine(latest, []*types.Transaction{coinbase, extraReward}, nil)
		require.NoError(t, err)

		err = n.verifyBlock(block, latest)
		assert.ErrorIs(t, err, ErrInvalidBlock)
	})
}
