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

// AccountID identifies a world-state account. For ordinary accounts it is
// the hex-encoded public key; MintAccount and FirstAccount name the two
// distinguished identities required by §6 to be identical across nodes.
type AccountID = string

const (
	// MintAccount is the distinguished identity trusted to sign
	// COIN_PURCHASE credits and MINING_REWARD coinbases.
	MintAccount AccountID = "mint"

	// FirstAccount seeds the initial supply at genesis.
	FirstAccount AccountID = "first-account"
)

// Account is a world-state entry: balance plus optional supply-chain role
// attributes, transparent to the core beyond persistence.
type Account struct {
	Name    string            `json:"name"`
	Balance uint64            `json:"balance"`
	Role    string            `json:"role,omitempty"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// NewAccount creates a zero-balance account with the default role.
func NewAccount(name string) *Account {
	return &Account{Name: name, Balance: 0}
}
