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
	"github.com/pkg/errors"

	"github.com/agrichain/harvestnode/blockchain/types"
	"github.com/agrichain/harvestnode/networks/p2p"
)

// submitTransaction is the single local-API entry point spec.md §6 requires:
// it runs mempool admission and, on acceptance, broadcasts CREATE_TRANSACTION.
func (n *Node) submitTransaction(tx *types.Transaction) bool {
	if err := n.pool.Add(tx); err != nil {
		logger.Debug("rejected submitted transaction", "err", err)
		return false
	}
	n.engine.Broadcast(p2p.MsgCreateTransaction, tx)
	return true
}

// handleIncomingTransaction is the engine's OnTransaction hook: gossiped and
// locally-submitted transactions share the same admission gate.
func (n *Node) handleIncomingTransaction(tx *types.Transaction) bool {
	if err := n.pool.Add(tx); err != nil {
		logger.Debug("rejected gossiped transaction", "err", err)
		return false
	}
	return true
}

// handleBlockRequested answers REQUEST_BLOCK.
func (n *Node) handleBlockRequested(number uint64) (*types.Block, bool) {
	block, err := n.state.GetBlockByNumber(number)
	if err != nil {
		logger.Warn("block lookup failed", "number", number, "err", err)
		return nil, false
	}
	if block == nil {
		return nil, false
	}
	return block, true
}

// handleBlockReceived feeds a SEND_BLOCK response into the sync queue if it
// matches the block this node is currently waiting for.
func (n *Node) handleBlockReceived(from *p2p.Peer, block *types.Block) {
	n.mu.Lock()
	syncing := n.syncing
	want := n.currentSyncBlock
	n.mu.Unlock()

	if !syncing || block.Number != want {
		return
	}
	n.sync.Add(block, n.verifyAndApplySync)
}

// verifyAndApplySync is the syncqueue.VerifyFunc driving catch-up: it
// special-cases the genesis block (no predecessor to chain against) and
// otherwise verifies against the immediate predecessor before applying.
func (n *Node) verifyAndApplySync(block *types.Block) error {
	if block.Number == types.GenesisNumber {
		if !block.IsGenesis() {
			return errors.Wrap(ErrInvalidBlock, "received genesis does not match the shared constant")
		}
		if err := n.state.ApplyBlock(block); err != nil {
			return err
		}
		if err := n.state.SeedInitialSupply(); err != nil {
			return err
		}
		if n.cfg.IsOrdererNode {
			return n.forger.Update(n.keys.PublicKeyHex(), 1)
		}
		return nil
	}

	prev, err := n.state.GetBlockByNumber(block.Number - 1)
	if err != nil {
		return err
	}
	if prev == nil {
		return errors.Wrap(ErrInvalidBlock, "predecessor not yet committed")
	}
	if err := n.verifyBlock(block, prev); err != nil {
		return err
	}
	return n.state.ApplyBlock(block)
}

// onSyncVerified is the syncqueue's onSuccess callback: advance past the
// committed block, evict it from the mempool, and ask for the next one.
func (n *Node) onSyncVerified(block *types.Block) {
	n.pool.EvictCommitted(block)
	n.mu.Lock()
	n.currentSyncBlock = block.Number + 1
	n.syncStallTicks = 0
	n.mu.Unlock()
	logger.Info("sync advanced", "number", block.Number)
	n.engine.RequestBlock(block.Number + 1)
}

// handleBlockPublished is the live-mode path for an incoming mined block. It
// ignores blocks that arrive while this node is still catching up toward
// genesis (those are driven exclusively by SEND_BLOCK/C8), but once catch-up
// has passed genesis it runs the same accept path live mode does: a
// published block extending the current tip is verified and applied
// regardless of whether the sync poller still considers itself "syncing"
// (spec.md §4.9's PUBLISH_BLOCK row, "live mode (or past genesis in
// sync)"). verifyBlock's number-continuity check keeps this safe even if it
// races the sync queue: a block that does not extend the current tip by
// exactly one is rejected either way.
func (n *Node) handleBlockPublished(block *types.Block) bool {
	n.mu.Lock()
	syncing := n.syncing
	pastGenesis := n.currentSyncBlock > types.GenesisNumber
	n.mu.Unlock()
	if syncing && !pastGenesis {
		return false
	}

	latest, err := n.state.LatestBlock()
	if err != nil {
		logger.Error("load latest block failed", "err", err)
		return false
	}
	if latest == nil || block.Number <= latest.Number {
		return false
	}
	if err := n.verifyBlock(block, latest); err != nil {
		logger.Warn("rejecting published block", "number", block.Number, "err", err)
		return false
	}

	n.mu.Lock()
	preempting := n.mining && n.miningBlockNum == block.Number
	n.mu.Unlock()
	if preempting {
		n.agent.Stop()
		n.agent.Start()
		n.mu.Lock()
		n.mining = false
		n.mu.Unlock()
	}

	if err := n.state.ApplyBlock(block); err != nil {
		logger.Error("apply published block failed", "number", block.Number, "err", err)
		return false
	}
	n.pool.EvictCommitted(block)
	logger.Info("applied published block", "number", block.Number)
	return true
}

// handleStartMining is the elected forger's entry point: mine immediately if
// there is anything worth including.
func (n *Node) handleStartMining(ordererAddress string) {
	if n.pool.Len() == 0 {
		return
	}
	n.triggerMining()
}
