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

// Package state implements the world-state transition (C4): the mapping
// from accounts to balances/roles and the staker table, mutated only by
// applying committed blocks (spec.md §3, §4.4).
package state

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/agrichain/harvestnode/blockchain/types"
	"github.com/agrichain/harvestnode/log"
	"github.com/agrichain/harvestnode/storage/database"
)

var logger = log.NewModuleLogger(log.ModuleState)

// InitialSupply is the balance FirstAccount is seeded with at genesis.
const InitialSupply uint64 = 1_000_000

// accountCacheBytes sizes the fastcache read-through layer in front of the
// account namespace, mirroring go-ethereum/klaytn's state-trie cache.
const accountCacheBytes = 8 * 1024 * 1024

// State is the facade over the account and staker namespaces. All writes
// for a single block are serialized through mu so no reader ever observes a
// half-applied block (spec.md §5).
type State struct {
	mu    sync.RWMutex
	db    *database.ChainDB
	cache *fastcache.Cache
}

// New wraps db with a fresh read-through cache.
func New(db *database.ChainDB) *State {
	return &State{db: db, cache: fastcache.New(accountCacheBytes)}
}

// GetAccount returns the account record for id, or nil if it does not exist.
func (s *State) GetAccount(id types.AccountID) (*types.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getAccountLocked(id)
}

func (s *State) getAccountLocked(id types.AccountID) (*types.Account, error) {
	if raw, ok := s.cache.HasGet(nil, []byte(id)); ok {
		var acc types.Account
		if err := json.Unmarshal(raw, &acc); err != nil {
			return nil, err
		}
		return &acc, nil
	}

	raw, err := s.db.State.Get([]byte(id))
	if err == database.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var acc types.Account
	if err := json.Unmarshal(raw, &acc); err != nil {
		return nil, err
	}
	s.cache.Set([]byte(id), raw)
	return &acc, nil
}

// HasAccount reports whether id exists in the state (or is the mint
// account, which is always implicitly present for coin-purchase validation).
func (s *State) HasAccount(id types.AccountID) (bool, error) {
	if id == types.MintAccount {
		return true, nil
	}
	acc, err := s.GetAccount(id)
	if err != nil {
		return false, err
	}
	return acc != nil, nil
}

// putAccountLocked writes acc directly to the State namespace, outside of
// any batch. Used only by callers that commit a single key on their own
// (SeedInitialSupply, Update); ApplyBlock uses putAccountBatched instead so
// every account mutation it makes lands in the same atomic commit.
func (s *State) putAccountLocked(id types.AccountID, acc *types.Account) error {
	raw, err := json.Marshal(acc)
	if err != nil {
		return err
	}
	if err := s.db.State.Put([]byte(id), raw); err != nil {
		return err
	}
	s.cache.Set([]byte(id), raw)
	return nil
}

// putAccountBatched stages acc's write in b instead of committing it
// immediately. The read-through cache is still updated eagerly so later
// reads within the same ApplyBlock call see the pending value, even though
// it is not yet durable until b.Write() runs.
func (s *State) putAccountBatched(b *database.ChainBatch, id types.AccountID, acc *types.Account) error {
	raw, err := json.Marshal(acc)
	if err != nil {
		return err
	}
	if err := b.PutState([]byte(id), raw); err != nil {
		return err
	}
	s.cache.Set([]byte(id), raw)
	return nil
}

// ensureAccount returns the existing account, or stages a fresh zero-balance
// one into b, per spec.md §4.4 step 1.
func (s *State) ensureAccount(b *database.ChainBatch, id types.AccountID) (*types.Account, error) {
	acc, err := s.getAccountLocked(id)
	if err != nil {
		return nil, err
	}
	if acc != nil {
		return acc, nil
	}
	acc = types.NewAccount(id)
	if err := s.putAccountBatched(b, id, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// SeedInitialSupply creates FirstAccount with InitialSupply at genesis.
func (s *State) SeedInitialSupply() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := &types.Account{Name: types.FirstAccount, Balance: InitialSupply}
	return s.putAccountLocked(types.FirstAccount, acc)
}

// GetStake returns the stake currently recorded for pubKey.
func (s *State) GetStake(pubKey types.AccountID) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, err := s.db.Stake.Get([]byte(pubKey))
	if err == database.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(raw), 10, 64)
}

// AllStakes returns every staker's current stake, keyed by public key.
func (s *State) AllStakes() (map[types.AccountID]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys, err := s.db.Stake.Keys(nil)
	if err != nil {
		return nil, err
	}
	values, err := s.db.Stake.Values(nil)
	if err != nil {
		return nil, err
	}
	out := make(map[types.AccountID]uint64, len(keys))
	for i, k := range keys {
		v, err := strconv.ParseUint(string(values[i]), 10, 64)
		if err != nil {
			return nil, err
		}
		out[string(k)] = v
	}
	return out, nil
}

// Update adds delta to pubKey's stake (C7's update operation, spec.md §4.7).
// A delta of zero with a positive starting stake is used by the
// orchestrator to self-seed the orderer at genesis with stake 1.
func (s *State) Update(pubKey types.AccountID, delta uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateStakeLocked(pubKey, delta)
}

func (s *State) updateStakeLocked(pubKey types.AccountID, delta uint64) error {
	current, err := s.getStakeLocked(pubKey)
	if err != nil {
		return err
	}
	return s.db.Stake.Put([]byte(pubKey), []byte(strconv.FormatUint(current+delta, 10)))
}

// updateStakeBatched stages the updated stake in b rather than committing it
// immediately, so a STAKE transaction's debit and stake credit land in the
// same atomic commit as the rest of the block.
func (s *State) updateStakeBatched(b *database.ChainBatch, pubKey types.AccountID, delta uint64) error {
	current, err := s.getStakeLocked(pubKey)
	if err != nil {
		return err
	}
	return b.PutStake([]byte(pubKey), []byte(strconv.FormatUint(current+delta, 10)))
}

func (s *State) getStakeLocked(pubKey types.AccountID) (uint64, error) {
	raw, err := s.db.Stake.Get([]byte(pubKey))
	if err == database.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(raw), 10, 64)
}

// appliedMarkerKey namespaces the idempotence marker away from any real
// account id inside the state namespace (spec.md §4.4's idempotence note).
func appliedMarkerKey(number uint64) []byte {
	return []byte(fmt.Sprintf("\x00applied\x00%d", number))
}

// alreadyApplied reports whether ApplyBlock has already run for number.
func (s *State) alreadyApplied(number uint64) (bool, error) {
	return s.db.State.Has(appliedMarkerKey(number))
}

func (s *State) markApplied(number uint64) error {
	return s.db.State.Put(appliedMarkerKey(number), []byte("1"))
}

// markAppliedBatched stages the idempotence marker in b so it commits
// atomically with the block it marks: if the process crashes before
// b.Write() runs, neither the block nor the marker is durable, and a replay
// re-applies the block from scratch instead of seeing it half-committed.
func (s *State) markAppliedBatched(b *database.ChainBatch, number uint64) error {
	return b.PutState(appliedMarkerKey(number), []byte("1"))
}
