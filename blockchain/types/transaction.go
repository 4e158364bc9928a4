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
	"crypto/ecdsa"
	"encoding/json"
	"errors"

	"github.com/agrichain/harvestnode/crypto"
)

var (
	ErrInvalidSignature  = errors.New("types: invalid transaction signature")
	ErrSameSenderRecipient = errors.New("types: from and to must differ")
	ErrNonPositiveAmount = errors.New("types: amount must be positive")
)

// Transaction is the tuple (from, to, data, lastTransactionHash?, signature)
// defined in spec.md §3.
type Transaction struct {
	From               AccountID `json:"from"`
	To                 AccountID `json:"to"`
	Data               TxData    `json:"-"`
	LastTransactionHash string   `json:"lastTransactionHash,omitempty"`
	Signature          string    `json:"signature,omitempty"`
}

// transactionWire is the canonical on-wire/on-disk shape: Data is encoded
// through its tagged envelope so field order and types stay fixed across
// implementations, per spec.md §4.2's serialization contract.
type transactionWire struct {
	From                AccountID       `json:"from"`
	To                  AccountID       `json:"to"`
	Data                json.RawMessage `json:"data"`
	LastTransactionHash string          `json:"lastTransactionHash,omitempty"`
	Signature           string          `json:"signature,omitempty"`
}

// NewTransaction builds an unsigned transaction.
func NewTransaction(from, to AccountID, data TxData) *Transaction {
	return &Transaction{From: from, To: to, Data: data}
}

// SigningHash computes H(from || to || canonical(data)), the value the
// signature covers (spec.md §3 "Signing").
func (t *Transaction) SigningHash() string {
	args := []interface{}{t.From, t.To}
	args = append(args, t.Data.serializeForSign()...)
	return crypto.Hash(args...)
}

// Sign signs the transaction with priv and records the signature and
// signer-derived `from` public key.
func (t *Transaction) Sign(priv *ecdsa.PrivateKey) error {
	sig, err := crypto.Sign(priv, t.SigningHash())
	if err != nil {
		return err
	}
	t.Signature = sig.Hex()
	return nil
}

// IsValid checks the per-transaction validity predicates of spec.md §3:
// signature verifies, from != to (except STAKE/self-payments), amount > 0
// where present. Sender-existence is a world-state concern checked by the
// caller (C4/C5), not here.
func (t *Transaction) IsValid() error {
	if err := validateAmount(t.Data); err != nil {
		return ErrNonPositiveAmount
	}
	if t.From == t.To && t.Data.Type() != TxStake {
		return ErrSameSenderRecipient
	}
	sig, err := crypto.SignatureFromHex(t.Signature)
	if err != nil {
		return ErrInvalidSignature
	}
	pub, err := crypto.PublicKeyFromHex(t.From)
	if err != nil {
		return ErrInvalidSignature
	}
	if !crypto.Verify(pub, t.SigningHash(), sig) {
		return ErrInvalidSignature
	}
	return nil
}

// IsCoinbase reports whether t is the mining-reward coinbase: signed by the
// mint identity, recipient distinct from mint (spec.md §4.4 step 3).
func (t *Transaction) IsCoinbase() bool {
	return t.Data.Type() == TxMiningReward && t.From == MintAccount && t.To != MintAccount
}

// Amount returns the debit/credit amount carried by the transaction's data,
// or 0 for variants without one.
func (t *Transaction) Amount() uint64 {
	return amountOf(t.Data)
}

// MarshalJSON renders the canonical wire form.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	body, err := encodeTxData(t.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(transactionWire{
		From:                t.From,
		To:                  t.To,
		Data:                body,
		LastTransactionHash: t.LastTransactionHash,
		Signature:           t.Signature,
	})
}

// UnmarshalJSON reconstructs a Transaction from its canonical wire form.
func (t *Transaction) UnmarshalJSON(b []byte) error {
	var w transactionWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	data, err := decodeTxData(w.Data)
	if err != nil {
		return err
	}
	t.From = w.From
	t.To = w.To
	t.Data = data
	t.LastTransactionHash = w.LastTransactionHash
	t.Signature = w.Signature
	return nil
}

// NewMiningRewardTx builds the unsigned coinbase transaction for a mined
// block, to be signed with the shared mint keypair by the orchestrator.
func NewMiningRewardTx(minerAccount AccountID) *Transaction {
	return NewTransaction(MintAccount, minerAccount, &MiningRewardData{})
}
