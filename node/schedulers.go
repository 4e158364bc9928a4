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
	"time"

	"github.com/agrichain/harvestnode/blockchain/types"
	"github.com/agrichain/harvestnode/consensus/pow"
	"github.com/agrichain/harvestnode/networks/p2p"
)

// beginCatchUp enters sync mode and, after a short delay, requests the
// first block this node lacks (spec.md §4.10 "after short delay").
func (n *Node) beginCatchUp() {
	n.mu.Lock()
	n.syncing = true
	target := n.currentSyncBlock
	n.mu.Unlock()

	go func() {
		time.Sleep(chainRequestDelay)
		n.engine.RequestBlock(target)
	}()
}

// schedulerLoop drives the mining/orderer schedulers and the catch-up
// re-request poller off one shared ticker (spec.md §4.10).
func (n *Node) schedulerLoop() {
	ticker := time.NewTicker(schedulerInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n.syncPoll() {
				continue
			}
			n.tryMine()
			n.tryOrder()
		case <-n.stopCh:
			return
		}
	}
}

// syncPoll re-requests the awaited block while catching up, switching to
// live mode once syncStallRounds consecutive ticks see no progress (spec.md
// §8 scenario 3). It returns whether the node is still syncing.
func (n *Node) syncPoll() bool {
	n.mu.Lock()
	if !n.syncing {
		n.mu.Unlock()
		return false
	}
	n.syncStallTicks++
	target := n.currentSyncBlock
	caughtUp := n.syncStallTicks >= syncStallRounds
	if caughtUp {
		n.syncing = false
	}
	n.mu.Unlock()

	if caughtUp {
		logger.Info("catch-up reached current tip, switching to live mode", "nextExpected", target)
		return false
	}
	n.engine.RequestBlock(target)
	return true
}

// resultLoop applies whatever the mining agent produces.
func (n *Node) resultLoop() {
	for {
		select {
		case res := <-n.minedCh:
			n.handleMiningResult(res)
		case <-n.stopCh:
			return
		}
	}
}

func (n *Node) handleMiningResult(res *pow.Result) {
	n.mu.Lock()
	n.mining = false
	n.mu.Unlock()

	if res.Block == nil {
		return // cancelled (preempted) or failed; next tick retries
	}

	latest, err := n.state.LatestBlock()
	if err != nil || latest == nil || latest.Hash != res.Task.LastBlock.Hash {
		logger.Info("discarding stale mined block", "number", res.Block.Number)
		return
	}

	if err := n.state.ApplyBlock(res.Block); err != nil {
		logger.Error("apply mined block failed", "number", res.Block.Number, "err", err)
		return
	}
	n.pool.EvictCommitted(res.Block)
	n.engine.Broadcast(p2p.MsgPublishBlock, res.Block)
	logger.Info("mined and published block", "number", res.Block.Number, "txs", len(res.Block.Data))
}

// tryMine starts a mining attempt if mining is enabled, nothing is already
// in flight, and there is something to mine.
func (n *Node) tryMine() {
	if !n.cfg.EnableMining {
		return
	}
	if n.pool.Len() == 0 {
		return
	}
	n.triggerMining()
}

// tryOrder runs the orderer scheduler: elect a forger seeded by the current
// tip and hand it the mining job, locally if this node won.
func (n *Node) tryOrder() {
	if !n.cfg.IsOrdererNode {
		return
	}
	if n.pool.Len() == 0 {
		return
	}
	latest, err := n.state.LatestBlock()
	if err != nil || latest == nil {
		return
	}
	winner, err := n.forger.Elect(latest.Hash)
	if err != nil {
		logger.Warn("forger election failed", "err", err)
		return
	}
	if winner == n.keys.PublicKeyHex() {
		n.triggerMining()
		return
	}
	if !n.engine.SendToPeer(winner, p2p.MsgStartMining, p2p.StartMiningPayload{OrdererAddress: n.cfg.MyAddress}) {
		logger.Debug("elected forger not connected", "pubKey", winner)
	}
}

// triggerMining builds the coinbase plus a balance-checked slice of pending
// transactions and submits them to the mining agent (spec.md §4.10 "Reward
// construction"). It is a no-op if a mining attempt is already in flight or
// there is nothing worth including.
func (n *Node) triggerMining() {
	n.mu.Lock()
	if n.mining {
		n.mu.Unlock()
		return
	}
	n.mining = true
	n.mu.Unlock()

	abort := func() {
		n.mu.Lock()
		n.mining = false
		n.mu.Unlock()
	}

	latest, err := n.state.LatestBlock()
	if err != nil || latest == nil {
		logger.Error("cannot mine: no tip to extend", "err", err)
		abort()
		return
	}

	txs, err := n.buildTxsToMine()
	if err != nil {
		logger.Error("build txs to mine failed", "err", err)
		abort()
		return
	}
	if len(txs) == 0 {
		abort()
		return
	}

	n.mu.Lock()
	n.miningBlockNum = latest.Number + 1
	n.mu.Unlock()

	n.agent.Work() <- &pow.Task{LastBlock: latest, Txs: txs}
}

// buildTxsToMine prepends a freshly signed coinbase to a balance-checked cut
// of the mempool. Each debiting transaction is pre-applied against a shadow
// balance map; one that would overdraw is left in the pool rather than
// included (spec.md §4.10).
func (n *Node) buildTxsToMine() ([]*types.Transaction, error) {
	pending := n.pool.Pending()
	if len(pending) == 0 {
		return nil, nil
	}

	reward := types.NewMiningRewardTx(n.keys.PublicKeyHex())
	if err := reward.Sign(n.mintKey.Private); err != nil {
		return nil, err
	}
	txs := []*types.Transaction{reward}

	shadow := make(map[types.AccountID]uint64)
	balanceOf := func(id types.AccountID) (uint64, error) {
		if b, ok := shadow[id]; ok {
			return b, nil
		}
		acc, err := n.state.GetAccount(id)
		if err != nil {
			return 0, err
		}
		var bal uint64
		if acc != nil {
			bal = acc.Balance
		}
		shadow[id] = bal
		return bal, nil
	}

	for _, tx := range pending {
		amount := tx.Amount()
		if amount == 0 || tx.From == types.MintAccount {
			txs = append(txs, tx)
			continue
		}
		bal, err := balanceOf(tx.From)
		if err != nil {
			return nil, err
		}
		if bal < amount {
			continue // left in the pool
		}
		shadow[tx.From] = bal - amount
		txs = append(txs, tx)
	}
	return txs, nil
}
