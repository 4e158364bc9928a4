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

// Package mempool implements C5: the ordered set of pending transactions
// awaiting inclusion in a mined block (spec.md §3, §4.5).
package mempool

import (
	"sync"

	"github.com/agrichain/harvestnode/blockchain/state"
	"github.com/agrichain/harvestnode/blockchain/types"
	"github.com/agrichain/harvestnode/common"
	"github.com/agrichain/harvestnode/log"
)

var logger = log.NewModuleLogger(log.ModuleMempool)

// dedupCacheSize bounds the signature-dedup LRU; it tracks Capacity 1:1
// since a signature can appear at most once in the pool at a time.
const dedupCacheSize = 4096

// Mempool is the ordered, capacity-bounded pending-transaction set.
// Dedup key is the transaction signature (spec.md §3's Mempool definition).
type Mempool struct {
	mu       sync.Mutex
	capacity int
	txs      []*types.Transaction
	seen     common.Cache
	state    *state.State
}

// New builds an empty pool of the given capacity backed by state for
// sender-existence and balance checks.
func New(capacity int, st *state.State) (*Mempool, error) {
	seen, err := common.NewCache(common.LRUConfig{CacheSize: dedupCacheSize})
	if err != nil {
		return nil, err
	}
	return &Mempool{capacity: capacity, seen: seen, state: st}, nil
}

// Add runs the admission gate of spec.md §4.5 and, if it passes, appends tx
// to the pool. On overflow the oldest entry is dropped to make room.
func (p *Mempool) Add(tx *types.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := tx.IsValid(); err != nil {
		return err
	}
	if p.seen.Contains(tx.Signature) {
		return ErrDuplicateTransaction
	}

	exists, err := p.state.HasAccount(tx.From)
	if err != nil {
		return err
	}
	if !exists && tx.From != types.MintAccount {
		return ErrUnknownSender
	}

	if len(p.txs) >= p.capacity {
		evicted := p.txs[0]
		p.txs = p.txs[1:]
		p.seen.Remove(evicted.Signature)
		logger.Warn("mempool at capacity, dropping oldest entry", "signature", evicted.Signature)
	}

	p.txs = append(p.txs, tx)
	p.seen.Add(tx.Signature, struct{}{})
	return nil
}

// Pending returns a snapshot of the pool in admission order.
func (p *Mempool) Pending() []*types.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*types.Transaction, len(p.txs))
	copy(out, p.txs)
	return out
}

// Len reports the number of pending transactions.
func (p *Mempool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.txs)
}

// EvictCommitted drops every pooled transaction whose signature appears in
// block (spec.md §4.5 "Eviction"), then runs the balance garbage pass.
func (p *Mempool) EvictCommitted(block *types.Block) {
	p.mu.Lock()
	defer p.mu.Unlock()

	committed := make(map[string]struct{}, len(block.Data))
	for _, tx := range block.Data {
		committed[tx.Signature] = struct{}{}
	}
	p.filterLocked(func(tx *types.Transaction) bool {
		_, ok := committed[tx.Signature]
		return !ok
	})
	p.garbageCollectLocked()
}

// garbageCollectLocked silently drops any pooled transaction whose sender
// can no longer afford it after the latest commit (spec.md §4.5).
func (p *Mempool) garbageCollectLocked() {
	p.filterLocked(func(tx *types.Transaction) bool {
		if tx.From == types.MintAccount {
			return true
		}
		acc, err := p.state.GetAccount(tx.From)
		if err != nil {
			logger.Error("mempool garbage pass: state lookup failed", "err", err)
			return true
		}
		if acc == nil {
			return false
		}
		return acc.Balance >= tx.Amount()
	})
}

func (p *Mempool) filterLocked(keep func(*types.Transaction) bool) {
	kept := p.txs[:0]
	for _, tx := range p.txs {
		if keep(tx) {
			kept = append(kept, tx)
		} else {
			p.seen.Remove(tx.Signature)
		}
	}
	p.txs = kept
}
