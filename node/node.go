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

package node

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/agrichain/harvestnode/blockchain/state"
	"github.com/agrichain/harvestnode/blockchain/types"
	"github.com/agrichain/harvestnode/consensus/forger"
	"github.com/agrichain/harvestnode/consensus/pow"
	"github.com/agrichain/harvestnode/crypto"
	"github.com/agrichain/harvestnode/log"
	"github.com/agrichain/harvestnode/mempool"
	"github.com/agrichain/harvestnode/networks/p2p"
	"github.com/agrichain/harvestnode/storage/database"
	"github.com/agrichain/harvestnode/syncqueue"
)

var logger = log.NewModuleLogger(log.ModuleNode)

// defaultMempoolCapacity and defaultSyncQueueCapacity bound C5/C8. spec.md
// §3/§4.8 require a bounded, oldest-dropped policy but name no concrete
// number; these values follow the teacher's own habit of a four-digit
// default pool size for bounded in-memory queues (see DESIGN.md).
const (
	defaultMempoolCapacity   = 1000
	defaultSyncQueueCapacity = 64
)

// schedulerInterval paces both the mining and orderer schedulers. It tracks
// pow.MineRate, the same spacing difficulty adjustment targets, so an idle
// node checks for work about as often as a healthy network mines blocks.
const schedulerInterval = time.Duration(pow.MineRate) * time.Millisecond

// chainRequestDelay is the pause before catch-up mode sends its first
// REQUEST_BLOCK, giving the HANDSHAKE dial-out a moment to connect to
// bootstrap peers (spec.md §4.10 "after short delay").
const chainRequestDelay = 500 * time.Millisecond

// syncStallRounds is the number of consecutive scheduler ticks the sync
// poller tolerates with no progress on currentSyncBlock before concluding
// the tip has been reached and switching to live mode (spec.md §8 scenario
// 3: "currentSyncBlock ends at 5, live mode engaged").
const syncStallRounds = 3

// mintPrivateKeyHex is the shared constant mint keypair every node binary
// bakes in (spec.md §9 "Genesis and mint-key determinism": regenerating it
// per node is a latent bug the spec explicitly flags). types.MintAccount
// names the mint identity everywhere balances/staking are bookkept; the
// keypair below only backs the signature placed on coinbase/reward
// transactions, since from/to elsewhere in this codebase key off the
// MintAccount constant rather than a decodable public key.
const mintPrivateKeyHex = "68617276657374206d696e74206b65792073656564203030313233343536"

// Node wires C1-C9 into the running orchestrator (C10).
type Node struct {
	cfg     *Config
	keys    *crypto.KeyPair
	mintKey *crypto.KeyPair

	rawDB   database.Database
	chainDB *database.ChainDB
	state   *state.State
	pool    *mempool.Mempool
	forger  *forger.Forger
	agent   *pow.Agent
	sync    *syncqueue.Queue
	engine  *p2p.Engine

	mu               sync.Mutex
	syncing          bool
	currentSyncBlock uint64
	syncStallTicks   int
	mining           bool
	miningBlockNum   uint64

	minedCh  chan *pow.Result
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New builds a Node from cfg but does not yet start any background
// activity; call Start for that.
func New(cfg *Config) (*Node, error) {
	keys, err := crypto.PrivateKeyFromHex(cfg.PrivateKeyHex)
	if err != nil {
		return nil, errors.Wrap(err, "node: decode PRIVATE_KEY")
	}
	mintKey, err := crypto.PrivateKeyFromHex(mintPrivateKeyHex)
	if err != nil {
		return nil, errors.Wrap(err, "node: decode baked-in mint key")
	}

	rawDB, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	chainDB := database.NewChainDB(rawDB)
	st := state.New(chainDB)
	pool, err := mempool.New(defaultMempoolCapacity, st)
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:     cfg,
		keys:    keys,
		mintKey: mintKey,
		rawDB:   rawDB,
		chainDB: chainDB,
		state:   st,
		pool:    pool,
		forger:  forger.New(st),
		agent:   pow.NewAgent(),
		minedCh: make(chan *pow.Result, 1),
		stopCh:  make(chan struct{}),
	}
	n.sync = syncqueue.New(defaultSyncQueueCapacity, n.onSyncVerified)
	n.agent.SetReturnCh(n.minedCh)

	nat, err := p2p.ParseNAT(cfg.NAT)
	if err != nil {
		return nil, err
	}
	engine, err := p2p.New(keys.PublicKeyHex(), cfg.MyAddress, cfg.MaxPeers, p2p.Handler{
		OnTransaction:    n.handleIncomingTransaction,
		OnBlockRequested: n.handleBlockRequested,
		OnBlockReceived:  n.handleBlockReceived,
		OnBlockPublished: n.handleBlockPublished,
		OnStartMining:    n.handleStartMining,
	}, nat)
	if err != nil {
		return nil, err
	}
	n.engine = engine

	return n, nil
}

// Start runs the startup sequence (fresh/resume/catch-up), dials bootstrap
// peers, opens the P2P listener, and launches the schedulers. It returns
// once startup has committed at least the genesis block; the schedulers and
// catch-up loop continue in the background.
func (n *Node) Start() error {
	if err := n.startup(); err != nil {
		return errors.Wrap(err, "node: startup")
	}

	if err := n.engine.Listen(fmt.Sprintf(":%d", n.cfg.AppPort)); err != nil {
		return errors.Wrap(err, "node: p2p listen")
	}
	for _, peer := range n.cfg.Peers {
		if err := n.engine.Dial(peer.WSAddress); err != nil {
			logger.Warn("dial bootstrap peer failed", "addr", peer.WSAddress, "err", err)
		}
	}

	if n.cfg.EnableChainRequest {
		n.beginCatchUp()
	}

	n.agent.Start()
	go n.schedulerLoop()
	go n.resultLoop()

	if n.cfg.EnableAPI {
		if err := n.startAPI(); err != nil {
			return errors.Wrap(err, "node: start api")
		}
	}
	n.startMetrics()

	return nil
}

// Stop terminates the mining agent and closes the store. It is safe to call
// more than once.
func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		close(n.stopCh)
		n.agent.Stop()
		n.chainDB.Close()
	})
}

// startup implements spec.md §4.10's Fresh and Resume modes.
func (n *Node) startup() error {
	latest, err := n.state.LatestBlock()
	if err != nil {
		return err
	}
	if latest != nil {
		logger.Info("resuming from persisted chain", "number", latest.Number)
		if n.cfg.EnableChainRequest {
			n.mu.Lock()
			n.currentSyncBlock = latest.Number + 1
			n.mu.Unlock()
		}
		return nil
	}

	if n.cfg.EnableChainRequest {
		// Empty store plus chain-request enabled: defer genesis to catch-up
		// rather than self-applying it, so this node accepts whatever
		// genesis the mesh actually agrees on (spec.md §8 scenario 3).
		logger.Info("no persisted chain found, deferring genesis to catch-up")
		n.mu.Lock()
		n.currentSyncBlock = types.GenesisNumber
		n.mu.Unlock()
		return nil
	}

	logger.Info("no persisted chain found, starting fresh")
	if err := n.state.ApplyBlock(types.Genesis()); err != nil {
		return err
	}
	if err := n.state.SeedInitialSupply(); err != nil {
		return err
	}
	if n.cfg.IsOrdererNode {
		if err := n.forger.Update(n.keys.PublicKeyHex(), 1); err != nil {
			return err
		}
	}
	n.mu.Lock()
	n.currentSyncBlock = types.GenesisNumber + 1
	n.mu.Unlock()
	return nil
}
