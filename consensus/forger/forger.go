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

// Package forger implements C7: deterministic, stake-weighted leader
// election (spec.md §4.7), modeled on the weighted-validator shape of the
// teacher's consensus/istanbul/validator/weighted.go — a stake/weight
// carried per participant — generalized here from a fixed validator set
// into one "lot" per staked unit.
package forger

import (
	"errors"
	"math/big"
	"sort"

	"github.com/agrichain/harvestnode/blockchain/state"
	"github.com/agrichain/harvestnode/crypto"
)

// ErrNoStakers is returned by Elect when the staker table is empty. This
// should never happen once genesis has self-seeded the orderer (spec.md
// §4.10), but Elect reports it rather than panicking.
var ErrNoStakers = errors.New("forger: no stakers registered")

// Forger elects the block proposer for a given seed from the staker table.
type Forger struct {
	state *state.State
}

// New wraps st, the source of truth for each staker's current stake.
func New(st *state.State) *Forger {
	return &Forger{state: st}
}

// Update records a stake delta for pubKey (spec.md §4.7's public `update`).
func (f *Forger) Update(pubKey string, stakeDelta uint64) error {
	return f.state.Update(pubKey, stakeDelta)
}

// Elect returns the public key of the winning forger for seed. Every staker
// S with stake k contributes lots (S,1..k); each lot's hash is the i-th
// iterated hash of pub||seed. The winning lot minimizes the absolute
// difference between its hash and the seed, both interpreted as big
// integers; ties are broken by the first lot encountered in the fixed,
// sorted-by-public-key iteration order, so every node computes the same
// winner from the same staker table and seed.
func (f *Forger) Elect(seed string) (string, error) {
	stakes, err := f.state.AllStakes()
	if err != nil {
		return "", err
	}
	if len(stakes) == 0 {
		return "", ErrNoStakers
	}

	pubKeys := make([]string, 0, len(stakes))
	for pub := range stakes {
		pubKeys = append(pubKeys, pub)
	}
	sort.Strings(pubKeys)

	seedInt, ok := new(big.Int).SetString(seed, 16)
	if !ok {
		return "", errors.New("forger: seed is not valid hex")
	}

	var winner string
	var best *big.Int

	for _, pub := range pubKeys {
		stake := stakes[pub]
		lotHash := pub + seed // i=0 accumulator seed for the iterated hash below
		for lot := uint64(1); lot <= stake; lot++ {
			lotHash = crypto.Hash(pub, lotHash)
			lotInt, ok := new(big.Int).SetString(lotHash, 16)
			if !ok {
				continue
			}
			dist := new(big.Int).Sub(lotInt, seedInt)
			dist.Abs(dist)
			if best == nil || dist.Cmp(best) < 0 {
				best = dist
				winner = pub
			}
		}
	}

	if winner == "" {
		return "", ErrNoStakers
	}
	return winner, nil
}
