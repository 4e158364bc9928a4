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

package pow

import (
	"errors"
	"strings"

	"github.com/agrichain/harvestnode/blockchain/types"
	"github.com/agrichain/harvestnode/crypto"
)

// ErrCancelled is returned by Mine when quit fires before a valid nonce is
// found. No partial block is ever returned in this case (spec.md §4.6
// "Cancellation").
var ErrCancelled = errors.New("pow: mining cancelled")

// MinDifficulty is the floor every adjustment clamps to (spec.md §8
// "Boundary behaviors").
const MinDifficulty = 1

// AdjustDifficulty implements spec.md §4.6's rule: +1 if the gap since the
// last block is within MineRate, -1 otherwise, clamped to MinDifficulty.
func AdjustDifficulty(lastBlock *types.Block, timestamp int64) int {
	difficulty := lastBlock.Difficulty
	if timestamp-lastBlock.Timestamp <= MineRate {
		difficulty++
	} else {
		difficulty--
	}
	if difficulty < MinDifficulty {
		return MinDifficulty
	}
	return difficulty
}

// Mine runs the loop of spec.md §4.6: increment nonce and refresh timestamp
// until hash's binary prefix of length `difficulty` is all zeros, or quit
// fires. txs must already have the coinbase prepended by the caller.
func Mine(lastBlock *types.Block, txs []*types.Transaction, quit <-chan struct{}) (*types.Block, error) {
	var nonce uint64
	timestamp := now()

	for {
		select {
		case <-quit:
			return nil, ErrCancelled
		default:
		}

		difficulty := AdjustDifficulty(lastBlock, timestamp)
		hash, err := types.ComputeHash(timestamp, lastBlock.Hash, txs, nonce, difficulty)
		if err != nil {
			return nil, err
		}

		if MeetsDifficulty(hash, difficulty) {
			return &types.Block{
				Number:     lastBlock.Number + 1,
				Timestamp:  timestamp,
				LastHash:   lastBlock.Hash,
				Hash:       hash,
				Difficulty: difficulty,
				Nonce:      nonce,
				Data:       txs,
			}, nil
		}

		nonce++
		timestamp = now()
		hashesPerSecond.Mark(1)
	}
}

// MeetsDifficulty reports whether hash's first difficulty bits are all zero,
// the predicate both the miner and any receiver of a published block check
// (spec.md §4.6, §7 "PoW insufficient").
func MeetsDifficulty(hash string, difficulty int) bool {
	binary, err := crypto.HexToBinary(hash)
	if err != nil {
		return false
	}
	if len(binary) < difficulty {
		return false
	}
	return strings.Count(binary[:difficulty], "0") == difficulty
}
