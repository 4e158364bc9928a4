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

// Package p2p implements C9: the connection manager and wire protocol
// between nodes (spec.md §4.9). Messages are JSON objects {type, data} sent
// over a websocket connection, in the style of the teacher's JSON-RPC
// codec (networks/rpc) but peer-to-peer rather than client-server.
package p2p

import "encoding/json"

// MessageType is one of the six wire message kinds of spec.md §4.9.
type MessageType string

const (
	MsgHandshake         MessageType = "HANDSHAKE"
	MsgCreateTransaction MessageType = "CREATE_TRANSACTION"
	MsgRequestBlock      MessageType = "REQUEST_BLOCK"
	MsgSendBlock         MessageType = "SEND_BLOCK"
	MsgPublishBlock      MessageType = "PUBLISH_BLOCK"
	MsgStartMining       MessageType = "START_MINING"
)

// Message is the wire envelope: {"type": ..., "data": ...}. Unknown Type
// values are ignored by the receiver (spec.md §6).
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// PeerDescriptor is the {publicKey, wsAddress} pair gossiped in HANDSHAKE.
type PeerDescriptor struct {
	PublicKey string `json:"publicKey"`
	WSAddress string `json:"wsAddress"`
}

// RequestBlockPayload is REQUEST_BLOCK's data.
type RequestBlockPayload struct {
	BlockNumber      uint64 `json:"blockNumber"`
	RequestPublicKey string `json:"requestPublicKey"`
}

// StartMiningPayload is START_MINING's data.
type StartMiningPayload struct {
	OrdererAddress string `json:"ordererAddress"`
}

func newMessage(t MessageType, data interface{}) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Data: raw}, nil
}

func encodeMessage(t MessageType, data interface{}) ([]byte, error) {
	msg, err := newMessage(t, data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}
