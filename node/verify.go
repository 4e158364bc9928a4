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

	"github.com/pkg/errors"

	"github.com/agrichain/harvestnode/blockchain/types"
	"github.com/agrichain/harvestnode/consensus/pow"
)

// ErrInvalidBlock is returned by verifyBlock for every rejection reason
// spec.md §7's InvalidBlock kind lists (hash mismatch, insufficient PoW, bad
// lastHash/number, future timestamp, an invalid tx, or an overdraw).
var ErrInvalidBlock = errors.New("node: invalid block")

// verifyBlock checks candidate against prev, the block it claims to extend,
// per spec.md §3's block invariants and §7's InvalidBlock kind. It never
// mutates state: the overdraw check runs against a shadow balance map so a
// rejected candidate never reaches ApplyBlock.
func (n *Node) verifyBlock(candidate, prev *types.Block) error {
	if candidate.Number != prev.Number+1 {
		return errors.Wrapf(ErrInvalidBlock, "block %d does not extend %d", candidate.Number, prev.Number)
	}
	if candidate.LastHash != prev.Hash {
		return errors.Wrapf(ErrInvalidBlock, "block %d has lastHash %s, want %s", candidate.Number, candidate.LastHash, prev.Hash)
	}
	if candidate.Timestamp <= prev.Timestamp {
		return errors.Wrapf(ErrInvalidBlock, "block %d timestamp %d does not advance past %d", candidate.Number, candidate.Timestamp, prev.Timestamp)
	}
	if candidate.Timestamp > nowMillis() {
		return errors.Wrapf(ErrInvalidBlock, "block %d has a future timestamp", candidate.Number)
	}
	if diff := candidate.Difficulty - prev.Difficulty; diff > 1 || diff < -1 {
		return errors.Wrapf(ErrInvalidBlock, "block %d difficulty jumped by %d", candidate.Number, diff)
	}

	if err := candidate.VerifyHash(); err != nil {
		return errors.Wrap(ErrInvalidBlock, err.Error())
	}
	if !pow.MeetsDifficulty(candidate.Hash, candidate.Difficulty) {
		return errors.Wrapf(ErrInvalidBlock, "block %d does not satisfy its claimed difficulty", candidate.Number)
	}

	for i, tx := range candidate.Data {
		// The coinbase alone is signed by the shared mint identity, recognized
		// by AccountID rather than by a decodable public key (see the
		// mintPrivateKeyHex comment in node.go), and only at index 0 (spec.md
		// "the first transaction", "coinbase transactions"). Any other
		// mint-sourced tx is a forgery attempt, not a trusted exception, and
		// every non-mint tx must verify under its own `from` key.
		if tx.From == types.MintAccount {
			if i == 0 && tx.Data.Type() == types.TxMiningReward {
				continue
			}
			return errors.Wrapf(ErrInvalidBlock, "block %d tx %d: unexpected mint-sourced transaction", candidate.Number, i)
		}
		if err := tx.IsValid(); err != nil {
			return errors.Wrapf(ErrInvalidBlock, "block %d tx %d: %s", candidate.Number, i, err.Error())
		}
	}

	return n.checkNoOverdraw(candidate)
}

// checkNoOverdraw simulates every debiting transaction in block against a
// shadow copy of current balances, without touching the real store, so an
// overdrawing block is rejected before ApplyBlock ever runs (spec.md §4.4
// step 4, §7 InvalidBlock).
func (n *Node) checkNoOverdraw(block *types.Block) error {
	shadow := make(map[types.AccountID]uint64)
	balanceOf := func(id types.AccountID) (uint64, error) {
		if b, ok := shadow[id]; ok {
			return b, nil
		}
		acc, err := n.state.GetAccount(id)
		if err != nil {
			return 0, err
		}
		var balance uint64
		if acc != nil {
			balance = acc.Balance
		}
		shadow[id] = balance
		return balance, nil
	}

	for i, tx := range block.Data {
		if tx.From == types.MintAccount {
			if i == 0 && tx.Data.Type() == types.TxMiningReward {
				continue
			}
			return errors.Wrapf(ErrInvalidBlock, "block %d tx %d: unexpected mint-sourced transaction", block.Number, i)
		}
		amount := tx.Amount()
		if amount == 0 {
			continue
		}
		balance, err := balanceOf(tx.From)
		if err != nil {
			return err
		}
		if balance < amount {
			return errors.Wrapf(ErrInvalidBlock, "block %d tx %d: %s would overdraw %s", block.Number, i, tx.Data.Type(), tx.From)
		}
		shadow[tx.From] = balance - amount
	}
	return nil
}

// nowMillis mirrors pow's own wall-clock accessor so block timestamps and
// the "future timestamp" check are compared on the same clock/unit.
var nowMillis = func() int64 { return time.Now().UnixNano() / int64(time.Millisecond) }
