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

package types

import (
	"encoding/json"
	"fmt"

	"github.com/agrichain/harvestnode/crypto"
)

// Block is the ordered tuple (number, timestamp, lastHash, hash, difficulty,
// nonce, data) of spec.md §3. The first entry of Data in a mined block is
// the mining-reward coinbase.
type Block struct {
	Number     uint64         `json:"number"`
	Timestamp  int64          `json:"timestamp"`
	LastHash   string         `json:"lastHash"`
	Hash       string         `json:"hash"`
	Difficulty int            `json:"difficulty"`
	Nonce      uint64         `json:"nonce"`
	Data       []*Transaction `json:"data"`
}

// GenesisTimestamp, GenesisDifficulty and the other genesis fields are the
// fixed constants shared by every node (spec.md §3, §6).
const (
	GenesisNumber     uint64 = 1
	GenesisTimestamp  int64  = 1
	GenesisLastHash          = "----"
	GenesisHash              = "hash-one"
	GenesisDifficulty        = 3
	GenesisNonce      uint64 = 0
)

// Genesis returns the fixed genesis block constant. It must be bit-identical
// on every node (spec.md §8 invariant).
func Genesis() *Block {
	return &Block{
		Number:     GenesisNumber,
		Timestamp:  GenesisTimestamp,
		LastHash:   GenesisLastHash,
		Hash:       GenesisHash,
		Difficulty: GenesisDifficulty,
		Nonce:      GenesisNonce,
		Data:       []*Transaction{},
	}
}

// IsGenesis reports whether b is bit-identical to the shared genesis block.
func (b *Block) IsGenesis() bool {
	g := Genesis()
	return b.Number == g.Number && b.Timestamp == g.Timestamp &&
		b.LastHash == g.LastHash && b.Hash == g.Hash &&
		b.Difficulty == g.Difficulty && b.Nonce == g.Nonce && len(b.Data) == 0
}

// canonicalData renders Data as the deterministic byte string hashed into
// Block.Hash. Fields are fixed-width/fixed-order via Transaction's own
// canonical MarshalJSON, so the result is stable across implementations
// (spec.md §4.2's serialization contract).
func canonicalData(data []*Transaction) (string, error) {
	enc, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(enc), nil
}

// ComputeHash computes hash = H(timestamp, lastHash, data, nonce, difficulty)
// per spec.md §3.
func ComputeHash(timestamp int64, lastHash string, data []*Transaction, nonce uint64, difficulty int) (string, error) {
	enc, err := canonicalData(data)
	if err != nil {
		return "", err
	}
	return crypto.Hash(timestamp, lastHash, enc, nonce, difficulty), nil
}

// NewBlock constructs and hashes a block extending lastBlock.
func NewBlock(number uint64, timestamp int64, lastHash string, difficulty int, nonce uint64, data []*Transaction) (*Block, error) {
	hash, err := ComputeHash(timestamp, lastHash, data, nonce, difficulty)
	if err != nil {
		return nil, err
	}
	return &Block{
		Number:     number,
		Timestamp:  timestamp,
		LastHash:   lastHash,
		Hash:       hash,
		Difficulty: difficulty,
		Nonce:      nonce,
		Data:       data,
	}, nil
}

// VerifyHash recomputes the block's hash from its fields and checks it
// against the stored Hash, guarding against tampering or mis-transmission.
func (b *Block) VerifyHash() error {
	want, err := ComputeHash(b.Timestamp, b.LastHash, b.Data, b.Nonce, b.Difficulty)
	if err != nil {
		return err
	}
	if want != b.Hash {
		return fmt.Errorf("types: block %d hash mismatch: want %s got %s", b.Number, want, b.Hash)
	}
	return nil
}

// String renders a short human-readable summary, in the teacher's
// tx/block String() style (tx_internal_data_value_transfer.go).
func (b *Block) String() string {
	return fmt.Sprintf("Block(#%d hash=%s lastHash=%s difficulty=%d nonce=%d txs=%d)",
		b.Number, b.Hash, b.LastHash, b.Difficulty, b.Nonce, len(b.Data))
}
