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

package state

import (
	"encoding/json"

	"github.com/agrichain/harvestnode/blockchain/types"
	"github.com/agrichain/harvestnode/storage/database"
)

// GetBlockByNumber returns the committed block at number, or nil if none has
// been applied yet (the Resume/catch-up startup paths of spec.md §4.10 use
// this to find where to resume and to serve REQUEST_BLOCK).
func (s *State) GetBlockByNumber(number uint64) (*types.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, err := s.db.Block.Get(database.BlockNumberKey(number))
	if err == database.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var block types.Block
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// GetBlockByHash resolves hash via the block-hash index and loads the block.
func (s *State) GetBlockByHash(hash string) (*types.Block, error) {
	s.mu.RLock()
	numberKey, err := s.db.BlockHash.Get([]byte(hash))
	s.mu.RUnlock()
	if err == database.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	number, err := database.ParseBlockNumberKey(numberKey)
	if err != nil {
		return nil, err
	}
	return s.GetBlockByNumber(number)
}

// LatestBlock scans the block namespace for the highest committed block
// number (spec.md §4.10's Resume mode: "load latest block by maximum
// block-number key"). It returns nil if the store holds no blocks at all.
func (s *State) LatestBlock() (*types.Block, error) {
	s.mu.RLock()
	keys, err := s.db.Block.Keys(nil)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	var max uint64
	for i, k := range keys {
		n, err := database.ParseBlockNumberKey(k)
		if err != nil {
			return nil, err
		}
		if i == 0 || n > max {
			max = n
		}
	}
	return s.GetBlockByNumber(max)
}
