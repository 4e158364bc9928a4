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
//
// ChainDB is this repository's analogue of the teacher's DBManager
// (db_manager.go): a single facade in front of several logical namespaces
// carved out of one physical Database via key prefixing.

package database

import (
	"encoding/binary"
	"fmt"
)

// The five logical namespaces required by spec.md §4.3.
const (
	nsState     = "s/"
	nsBlock     = "b/"
	nsBlockHash = "h/"
	nsTxHash    = "t/"
	nsStake     = "k/"
)

// ChainDB is the facade the rest of the node talks to: it never exposes the
// raw Database, only the five namespaces named in spec.md §4.3.
type ChainDB struct {
	raw   Database
	State *Namespace
	Block *Namespace
	BlockHash *Namespace
	TxHash *Namespace
	Stake *Namespace
}

// NewChainDB wraps raw with the five namespaces.
func NewChainDB(raw Database) *ChainDB {
	return &ChainDB{
		raw:       raw,
		State:     NewNamespace(raw, nsState),
		Block:     NewNamespace(raw, nsBlock),
		BlockHash: NewNamespace(raw, nsBlockHash),
		TxHash:    NewNamespace(raw, nsTxHash),
		Stake:     NewNamespace(raw, nsStake),
	}
}

// Close closes the underlying physical database.
func (c *ChainDB) Close() { c.raw.Close() }

// ChainBatch buffers writes across every namespace behind one physical
// Batch, so a multi-namespace commit (account balances, the staker table,
// and the block/hash/tx indexes) lands atomically instead of as a sequence
// of independent Puts (spec.md §4.4, §5).
type ChainBatch struct {
	raw Batch
}

// NewBatch opens a single physical batch shared by every namespace write
// that belongs to one ApplyBlock call.
func (c *ChainDB) NewBatch() *ChainBatch {
	return &ChainBatch{raw: c.raw.NewBatch()}
}

func (b *ChainBatch) PutState(key, value []byte) error     { return b.raw.Put(append([]byte(nsState), key...), value) }
func (b *ChainBatch) PutBlock(key, value []byte) error     { return b.raw.Put(append([]byte(nsBlock), key...), value) }
func (b *ChainBatch) PutBlockHash(key, value []byte) error { return b.raw.Put(append([]byte(nsBlockHash), key...), value) }
func (b *ChainBatch) PutTxHash(key, value []byte) error    { return b.raw.Put(append([]byte(nsTxHash), key...), value) }
func (b *ChainBatch) PutStake(key, value []byte) error     { return b.raw.Put(append([]byte(nsStake), key...), value) }

// Write commits every buffered namespace write in one atomic call.
func (b *ChainBatch) Write() error { return b.raw.Write() }

// BlockNumberKey renders a block number as a fixed-width, byte-sortable key
// so that Keys()/Values() range scans over the block namespace return
// blocks in ascending number order.
func BlockNumberKey(number uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, number)
	return b
}

// blockNumberKey is the package-internal spelling used by this file's own
// tests; kept as an alias so chaindb_test.go reads naturally.
func blockNumberKey(number uint64) []byte { return BlockNumberKey(number) }

// ParseBlockNumberKey is the inverse of BlockNumberKey, used when iterating
// the block namespace's Keys().
func ParseBlockNumberKey(key []byte) (uint64, error) {
	if len(key) != 8 {
		return 0, fmt.Errorf("database: malformed block-number key (len %d)", len(key))
	}
	return binary.BigEndian.Uint64(key), nil
}

// TxIndexKey is the (blockNumber, txIndex) location recorded for a
// committed transaction's signature, per spec.md §3/§4.3.
type TxIndexKey struct {
	BlockNumber uint64
	TxIndex     int
}

// EncodeTxIndex packs idx into the 12-byte value stored under a
// transaction's signature in the TxHash namespace.
func EncodeTxIndex(idx TxIndexKey) []byte {
	b := make([]byte, 12)
	binary.BigEndian.PutUint64(b[:8], idx.BlockNumber)
	binary.BigEndian.PutUint32(b[8:], uint32(idx.TxIndex))
	return b
}

// DecodeTxIndex is the inverse of EncodeTxIndex.
func DecodeTxIndex(b []byte) (TxIndexKey, error) {
	if len(b) != 12 {
		return TxIndexKey{}, fmt.Errorf("database: malformed tx-index value (len %d)", len(b))
	}
	return TxIndexKey{
		BlockNumber: binary.BigEndian.Uint64(b[:8]),
		TxIndex:     int(binary.BigEndian.Uint32(b[8:])),
	}, nil
}
