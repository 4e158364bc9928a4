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
	"errors"
	"fmt"
)

// TxType discriminates the tagged TxData variant carried by a Transaction,
// following the teacher's TxInternalData.Type() convention
// (tx_internal_data_value_transfer.go) generalized to this domain.
type TxType string

const (
	TxCoinPurchase TxType = "COIN_PURCHASE"
	TxTransfer     TxType = "TRANSFER"
	TxStake        TxType = "STAKE"
	TxMiningReward TxType = "MINING_REWARD"
	TxOpaque       TxType = "OPAQUE"
)

var errValueKeyAmountMustBePositive = errors.New("types: amount must be > 0")

// TxData is the sum type over a transaction's payload. Every core path
// matches on Type() exhaustively rather than type-asserting ad hoc, per the
// teacher's tagged-variant discipline (design note in spec.md §9).
type TxData interface {
	Type() TxType
	serializeForSign() []interface{}
}

// CoinPurchaseData credits `to` with amount from the mint/initial-supply
// account; see spec.md §3 and Open Question 1 (debit-on-sender semantics).
type CoinPurchaseData struct {
	Amount uint64 `json:"amount"`
}

func (d *CoinPurchaseData) Type() TxType { return TxCoinPurchase }
func (d *CoinPurchaseData) serializeForSign() []interface{} {
	return []interface{}{d.Type(), d.Amount}
}

// TransferData debits `from` and credits `to` by Amount.
type TransferData struct {
	Amount uint64 `json:"amount"`
}

func (d *TransferData) Type() TxType { return TxTransfer }
func (d *TransferData) serializeForSign() []interface{} {
	return []interface{}{d.Type(), d.Amount}
}

// StakeData debits `from` and records a stake delta for `to` in the staker
// table; see Open Question 3 (the debit is kept, to preserve total supply).
type StakeData struct {
	Amount uint64 `json:"amount"`
}

func (d *StakeData) Type() TxType { return TxStake }
func (d *StakeData) serializeForSign() []interface{} {
	return []interface{}{d.Type(), d.Amount}
}

// MiningRewardData marks the coinbase transaction; its amount is implicit
// (one unit per other tx in the block, per spec.md §4.4 step 3 and Open
// Question 2).
type MiningRewardData struct{}

func (d *MiningRewardData) Type() TxType { return TxMiningReward }
func (d *MiningRewardData) serializeForSign() []interface{} {
	return []interface{}{d.Type()}
}

// OpaqueData carries application-level payloads (product lifecycle, role
// grants, stock/payment/dispute events) transparently through the core: it
// is persisted verbatim and counted as one tx for reward purposes, but never
// interpreted by any core path.
type OpaqueData struct {
	Kind    string `json:"kind"`
	Payload string `json:"payload"`
}

func (d *OpaqueData) Type() TxType { return TxOpaque }
func (d *OpaqueData) serializeForSign() []interface{} {
	return []interface{}{d.Type(), d.Kind, d.Payload}
}

// txDataEnvelope is the canonical, tagged-union wire/storage form of TxData.
type txDataEnvelope struct {
	Type TxType          `json:"type"`
	Body json.RawMessage `json:"body"`
}

func encodeTxData(d TxData) (json.RawMessage, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	env := txDataEnvelope{Type: d.Type(), Body: body}
	return json.Marshal(env)
}

func decodeTxData(raw json.RawMessage) (TxData, error) {
	var env txDataEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	var d TxData
	switch env.Type {
	case TxCoinPurchase:
		d = &CoinPurchaseData{}
	case TxTransfer:
		d = &TransferData{}
	case TxStake:
		d = &StakeData{}
	case TxMiningReward:
		d = &MiningRewardData{}
	case TxOpaque:
		d = &OpaqueData{}
	default:
		return nil, fmt.Errorf("types: unknown tx data type %q", env.Type)
	}
	if len(env.Body) > 0 {
		if err := json.Unmarshal(env.Body, d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// amountOf returns the debit/credit amount carried by d, or 0 for variants
// with no explicit amount (MINING_REWARD, OPAQUE).
func amountOf(d TxData) uint64 {
	switch v := d.(type) {
	case *CoinPurchaseData:
		return v.Amount
	case *TransferData:
		return v.Amount
	case *StakeData:
		return v.Amount
	default:
		return 0
	}
}

func validateAmount(d TxData) error {
	switch d.Type() {
	case TxCoinPurchase, TxTransfer, TxStake:
		if amountOf(d) == 0 {
			return errValueKeyAmountMustBePositive
		}
	}
	return nil
}
