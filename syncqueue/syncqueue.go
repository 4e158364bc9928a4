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

// Package syncqueue implements C8: a bounded, single-flight in-order
// verification queue for blocks delivered during catch-up (spec.md §4.8),
// following the single in-flight worker shape of consensus/pow.Agent but
// draining a FIFO to the first verified block rather than mining one.
package syncqueue

import (
	"sync"

	"github.com/agrichain/harvestnode/blockchain/types"
	"github.com/agrichain/harvestnode/log"
)

var logger = log.NewModuleLogger(log.ModuleSyncQueue)

// VerifyFunc validates and, on success, applies a fetched block.
type VerifyFunc func(*types.Block) error

type entry struct {
	block  *types.Block
	verify VerifyFunc
}

// Queue is a bounded, single-flight, in-order block verifier.
type Queue struct {
	mu        sync.Mutex
	capacity  int
	entries   []entry
	inFlight  bool
	onSuccess func(*types.Block)
}

// New builds an empty queue of the given capacity. onSuccess, if non-nil,
// is called with the block that ends a drain by passing verification.
func New(capacity int, onSuccess func(*types.Block)) *Queue {
	return &Queue{capacity: capacity, onSuccess: onSuccess}
}

// Add enqueues block with its verifier and, if no drain is currently
// running, starts one (spec.md §4.8). On overflow the oldest queued entry
// is dropped to make room, mirroring the mempool's bounded-capacity policy.
func (q *Queue) Add(block *types.Block, verify VerifyFunc) {
	q.mu.Lock()
	if len(q.entries) >= q.capacity {
		dropped := q.entries[0]
		q.entries = q.entries[1:]
		logger.Warn("sync queue at capacity, dropping oldest entry", "number", dropped.block.Number)
	}
	q.entries = append(q.entries, entry{block: block, verify: verify})
	shouldStart := !q.inFlight
	if shouldStart {
		q.inFlight = true
	}
	q.mu.Unlock()

	if shouldStart {
		go q.drain()
	}
}

// drain processes the queue in arrival order, discarding each block that
// fails verification, until one succeeds (at which point the remainder is
// cleared) or the queue empties.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.entries) == 0 {
			q.inFlight = false
			q.mu.Unlock()
			return
		}
		next := q.entries[0]
		q.entries = q.entries[1:]
		q.mu.Unlock()

		if err := next.verify(next.block); err != nil {
			logger.Warn("sync queue discarding block that failed verification",
				"number", next.block.Number, "err", err)
			continue
		}

		q.mu.Lock()
		q.entries = nil
		q.inFlight = false
		q.mu.Unlock()

		if q.onSuccess != nil {
			q.onSuccess(next.block)
		}
		return
	}
}

// Wipe clears the queue without verifying any entry.
func (q *Queue) Wipe() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = nil
}

// Len reports the number of blocks currently queued (not counting the one,
// if any, currently being verified).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
