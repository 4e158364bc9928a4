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

package p2p

import (
	"encoding/json"
	"sync"

	"github.com/clevergo/websocket"

	"github.com/agrichain/harvestnode/log"
)

// Peer is one live connection, keyed by its public key rather than its
// address so reconnects from the same identity dedupe (spec.md §4.9
// "Connection limits").
type Peer struct {
	ID        string // connection id, from hashicorp/go-uuid
	PublicKey string
	WSAddress string

	conn   *websocket.Conn
	writeM sync.Mutex
	logger log.Logger
}

func newPeer(id, publicKey, wsAddress string, conn *websocket.Conn) *Peer {
	return &Peer{
		ID:        id,
		PublicKey: publicKey,
		WSAddress: wsAddress,
		conn:      conn,
		logger:    log.NewModuleLogger(log.ModuleP2P).NewWith("peer", publicKey, "conn", id),
	}
}

// send marshals data under t and writes it as one websocket text frame.
// Concurrent sends to the same peer are serialized by writeM, since a
// single websocket connection does not support concurrent writers.
func (p *Peer) send(t MessageType, data interface{}) error {
	raw, err := encodeMessage(t, data)
	if err != nil {
		return err
	}
	p.writeM.Lock()
	defer p.writeM.Unlock()
	return p.conn.WriteMessage(websocket.TextMessage, raw)
}

// readLoop blocks reading frames off the connection, decoding each into a
// Message and invoking handle. It returns when the connection closes or
// handle asks it to stop by returning a non-nil error.
func (p *Peer) readLoop(handle func(*Peer, Message)) {
	defer p.conn.Close()
	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			p.logger.Debug("peer connection closed", "err", err)
			return
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			// MalformedMessage: drop silently, do not penalize the peer
			// (spec.md §7).
			p.logger.Debug("dropping malformed message", "err", err)
			continue
		}
		handle(p, msg)
	}
}

// Close closes the underlying connection.
func (p *Peer) Close() error {
	return p.conn.Close()
}
