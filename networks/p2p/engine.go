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
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/clevergo/websocket"
	uuid "github.com/hashicorp/go-uuid"

	"github.com/agrichain/harvestnode/blockchain/types"
	"github.com/agrichain/harvestnode/common"
	"github.com/agrichain/harvestnode/log"
)

// seenBlockCacheSize bounds the broadcast-dedup LRU (spec.md §4.9
// "Broadcast dedup").
const seenBlockCacheSize = 1024

// Handler wires the engine's protocol events into the rest of the node.
// Every field is invoked synchronously from the peer's read loop, so
// implementations must not block for long.
type Handler struct {
	// OnTransaction runs C5 admission for a gossiped or API-submitted
	// transaction; it returns whether the transaction was accepted (and
	// should be rebroadcast).
	OnTransaction func(tx *types.Transaction) bool

	// OnBlockRequested returns the block at number, if this node has it.
	OnBlockRequested func(number uint64) (*types.Block, bool)

	// OnBlockReceived delivers a unicast SEND_BLOCK response, typically fed
	// into the sync queue (C8) by the orchestrator.
	OnBlockReceived func(from *Peer, block *types.Block)

	// OnBlockPublished verifies and, if valid, applies a broadcast block.
	// It returns whether the block was accepted (and should be
	// rebroadcast to the rest of the mesh).
	OnBlockPublished func(block *types.Block) bool

	// OnStartMining fires when the orderer has elected this node to mine.
	OnStartMining func(ordererAddress string)
}

// Engine is the connection manager and protocol dispatcher of C9.
type Engine struct {
	selfPublicKey string
	selfAddress   string
	maxPeers      int
	handler       Handler

	mu    sync.RWMutex
	peers map[string]*Peer // keyed by PublicKey, not address (spec.md §4.9)

	seen   common.Cache
	logger log.Logger
	nat    NAT
}

// New builds an engine identified by selfPublicKey/selfAddress, accepting
// at most maxPeers simultaneous connections.
func New(selfPublicKey, selfAddress string, maxPeers int, handler Handler, nat NAT) (*Engine, error) {
	seen, err := common.NewCache(common.LRUConfig{CacheSize: seenBlockCacheSize})
	if err != nil {
		return nil, err
	}
	return &Engine{
		selfPublicKey: selfPublicKey,
		selfAddress:   selfAddress,
		maxPeers:      maxPeers,
		handler:       handler,
		peers:         make(map[string]*Peer),
		seen:          seen,
		logger:        log.NewModuleLogger(log.ModuleP2P),
		nat:           nat,
	}, nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Listen starts accepting inbound connections on addr ("host:port"). It
// returns once the listener is bound; serving happens in the background.
func (e *Engine) Listen(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			e.logger.Warn("websocket upgrade failed", "err", err)
			return
		}
		e.accept(conn)
	})

	ln, port, err := listenTCP(addr)
	if err != nil {
		return err
	}
	if e.nat != nil {
		go mapPort(e.nat, "TCP", port)
	}

	go func() {
		if err := http.Serve(ln, mux); err != nil {
			e.logger.Error("p2p listener stopped", "err", err)
		}
	}()
	return nil
}

// listenTCP binds addr and reports the numeric port actually bound (useful
// when addr ends in ":0").
func listenTCP(addr string) (net.Listener, int, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, 0, err
	}
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		ln.Close()
		return nil, 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		ln.Close()
		return nil, 0, err
	}
	return ln, port, nil
}

// Dial opens an outbound connection to addr and performs the handshake.
func (e *Engine) Dial(addr string) error {
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr, nil)
	if err != nil {
		return err
	}
	e.accept(conn)
	return nil
}

// accept wraps a freshly established connection as a Peer, sends our
// HANDSHAKE, and starts its read loop.
func (e *Engine) accept(conn *websocket.Conn) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		id = conn.RemoteAddr().String()
	}
	peer := newPeer(id, "", "", conn)
	go peer.readLoop(e.handleMessage)
	e.sendHandshake(peer)
}

func (e *Engine) sendHandshake(peer *Peer) {
	e.mu.RLock()
	descriptors := make([]PeerDescriptor, 0, len(e.peers)+1)
	descriptors = append(descriptors, PeerDescriptor{PublicKey: e.selfPublicKey, WSAddress: e.selfAddress})
	for _, p := range e.peers {
		descriptors = append(descriptors, PeerDescriptor{PublicKey: p.PublicKey, WSAddress: p.WSAddress})
	}
	e.mu.RUnlock()

	if err := peer.send(MsgHandshake, descriptors); err != nil {
		e.logger.Debug("handshake send failed", "err", err)
	}
}

func (e *Engine) addPeer(publicKey, wsAddress string, p *Peer) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if publicKey == e.selfPublicKey {
		return false
	}
	if _, exists := e.peers[publicKey]; exists {
		return false
	}
	if len(e.peers) >= e.maxPeers {
		return false
	}
	p.PublicKey = publicKey
	p.WSAddress = wsAddress
	e.peers[publicKey] = p
	return true
}

func (e *Engine) removePeer(publicKey string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.peers, publicKey)
}

// Peers returns the currently connected peers' public keys.
func (e *Engine) Peers() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.peers))
	for k := range e.peers {
		out = append(out, k)
	}
	return out
}

// Broadcast sends a message to every connected peer.
func (e *Engine) Broadcast(t MessageType, data interface{}) {
	e.broadcastExcept(nil, t, data)
}

func (e *Engine) broadcastExcept(skip *Peer, t MessageType, data interface{}) {
	e.mu.RLock()
	peers := make([]*Peer, 0, len(e.peers))
	for _, p := range e.peers {
		if p != skip {
			peers = append(peers, p)
		}
	}
	e.mu.RUnlock()

	for _, p := range peers {
		if err := p.send(t, data); err != nil {
			e.logger.Debug("broadcast send failed", "peer", p.PublicKey, "err", err)
		}
	}
}

// SendToPeer unicasts a message to the peer identified by publicKey. It
// reports whether that peer is currently connected.
func (e *Engine) SendToPeer(publicKey string, t MessageType, data interface{}) bool {
	e.mu.RLock()
	p, ok := e.peers[publicKey]
	e.mu.RUnlock()
	if !ok {
		return false
	}
	if err := p.send(t, data); err != nil {
		e.logger.Debug("unicast send failed", "peer", publicKey, "err", err)
		return false
	}
	return true
}

// RequestBlock asks every connected peer for blockNumber (used by the
// catch-up scheduler, C10).
func (e *Engine) RequestBlock(number uint64) {
	e.Broadcast(MsgRequestBlock, RequestBlockPayload{BlockNumber: number, RequestPublicKey: e.selfPublicKey})
}

// handleMessage dispatches one decoded Message per the table in spec.md §4.9.
func (e *Engine) handleMessage(from *Peer, msg Message) {
	switch msg.Type {
	case MsgHandshake:
		e.handleHandshake(from, msg.Data)
	case MsgCreateTransaction:
		e.handleCreateTransaction(from, msg.Data)
	case MsgRequestBlock:
		e.handleRequestBlock(from, msg.Data)
	case MsgSendBlock:
		e.handleSendBlock(from, msg.Data)
	case MsgPublishBlock:
		e.handlePublishBlock(from, msg.Data)
	case MsgStartMining:
		e.handleStartMining(from, msg.Data)
	default:
		// Unknown type values are ignored (spec.md §6).
	}
}

func (e *Engine) handleHandshake(from *Peer, raw json.RawMessage) {
	var descriptors []PeerDescriptor
	if err := json.Unmarshal(raw, &descriptors); err != nil {
		return
	}

	var self PeerDescriptor
	if len(descriptors) > 0 {
		self = descriptors[0]
	}
	if from.PublicKey == "" && self.PublicKey != "" {
		if !e.addPeer(self.PublicKey, self.WSAddress, from) {
			from.Close()
			return
		}
		// Gossip the newly joined peer to everyone else already connected
		// (spec.md §4.9's peer-join row), so the mesh converges without
		// waiting for each existing peer to independently learn about it.
		e.broadcastExcept(from, MsgHandshake, []PeerDescriptor{
			{PublicKey: e.selfPublicKey, WSAddress: e.selfAddress},
			self,
		})
	}

	for _, d := range descriptors[1:] {
		if d.PublicKey == e.selfPublicKey || d.PublicKey == "" {
			continue
		}
		e.mu.RLock()
		_, known := e.peers[d.PublicKey]
		e.mu.RUnlock()
		if known {
			continue
		}
		go func(addr string) {
			if err := e.Dial(addr); err != nil {
				e.logger.Debug("gossip dial failed", "addr", addr, "err", err)
			}
		}(d.WSAddress)
	}
}

func (e *Engine) handleCreateTransaction(from *Peer, raw json.RawMessage) {
	var tx types.Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return
	}
	if e.handler.OnTransaction == nil {
		return
	}
	if e.handler.OnTransaction(&tx) {
		e.broadcastExcept(from, MsgCreateTransaction, &tx)
	}
}

func (e *Engine) handleRequestBlock(from *Peer, raw json.RawMessage) {
	var req RequestBlockPayload
	if err := json.Unmarshal(raw, &req); err != nil {
		return
	}
	if e.handler.OnBlockRequested == nil {
		return
	}
	block, ok := e.handler.OnBlockRequested(req.BlockNumber)
	if !ok {
		return
	}
	if err := from.send(MsgSendBlock, block); err != nil {
		e.logger.Debug("send block failed", "err", err)
	}
}

func (e *Engine) handleSendBlock(from *Peer, raw json.RawMessage) {
	var block types.Block
	if err := json.Unmarshal(raw, &block); err != nil {
		return
	}
	if e.handler.OnBlockReceived != nil {
		e.handler.OnBlockReceived(from, &block)
	}
}

func (e *Engine) handlePublishBlock(from *Peer, raw json.RawMessage) {
	var block types.Block
	if err := json.Unmarshal(raw, &block); err != nil {
		return
	}
	if e.seen.Contains(block.Hash) {
		return // DuplicateBlock: silently ignore (spec.md §7)
	}
	e.seen.Add(block.Hash, struct{}{})

	if e.handler.OnBlockPublished == nil {
		return
	}
	if e.handler.OnBlockPublished(&block) {
		e.broadcastExcept(from, MsgPublishBlock, &block)
	}
}

func (e *Engine) handleStartMining(from *Peer, raw json.RawMessage) {
	var req StartMiningPayload
	if err := json.Unmarshal(raw, &req); err != nil {
		return
	}
	if e.handler.OnStartMining != nil {
		e.handler.OnStartMining(req.OrdererAddress)
	}
}
