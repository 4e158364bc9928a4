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

// Package pow implements C6: the proof-of-work mining worker (spec.md §4.6),
// shaped after the teacher's CpuAgent (work/agent.go) — a single worker
// goroutine that accepts Tasks over a channel and can be preempted
// mid-search by closing a per-task quit channel.
package pow

import (
	"sync"
	"sync/atomic"
	"time"

	metrics "github.com/rcrowley/go-metrics"

	"github.com/agrichain/harvestnode/blockchain/types"
	"github.com/agrichain/harvestnode/log"
)

var logger = log.NewModuleLogger(log.ModuleConsensus)

// MineRate is the target spacing between blocks, in milliseconds, used by
// the difficulty-adjustment rule of spec.md §4.6.
const MineRate int64 = 1000

// Task is a mining request: extend lastBlock with txs (coinbase already
// prepended by the caller).
type Task struct {
	LastBlock *types.Block
	Txs       []*types.Transaction
}

// Result is what a Task produces: either a freshly mined Block, or a nil
// Block if the task was cancelled before a solution was found.
type Result struct {
	Task  *Task
	Block *types.Block
}

// hashesPerSecond is the shared meter this node's hash rate is published
// through, following the teacher's rcrowley/go-metrics convention for
// throughput counters.
var hashesPerSecond = metrics.NewRegisteredMeter("consensus/pow/hashrate", metrics.DefaultRegistry)

// Agent is a single cancellable mining worker.
type Agent struct {
	mu sync.Mutex

	workCh        chan *Task
	stop          chan struct{}
	quitCurrentOp chan struct{}
	returnCh      chan<- *Result

	mining int32
}

// NewAgent builds an idle agent; call Start to begin accepting Tasks.
func NewAgent() *Agent {
	return &Agent{
		stop:   make(chan struct{}, 1),
		workCh: make(chan *Task, 1),
	}
}

// Work returns the channel Tasks are submitted on.
func (a *Agent) Work() chan<- *Task { return a.workCh }

// SetReturnCh sets the channel Results are published to.
func (a *Agent) SetReturnCh(ch chan<- *Result) { a.returnCh = ch }

// Start begins the agent's dispatch loop. A second call is a no-op.
func (a *Agent) Start() {
	if !atomic.CompareAndSwapInt32(&a.mining, 0, 1) {
		return
	}
	go a.update()
}

// Stop cancels any in-flight mine and ends the dispatch loop. A second call
// is a no-op.
func (a *Agent) Stop() {
	if !atomic.CompareAndSwapInt32(&a.mining, 1, 0) {
		return
	}
	a.stop <- struct{}{}
drain:
	for {
		select {
		case <-a.workCh:
		default:
			break drain
		}
	}
}

func (a *Agent) update() {
	for {
		select {
		case task := <-a.workCh:
			a.mu.Lock()
			if a.quitCurrentOp != nil {
				close(a.quitCurrentOp)
			}
			a.quitCurrentOp = make(chan struct{})
			go a.mine(task, a.quitCurrentOp)
			a.mu.Unlock()

		case <-a.stop:
			a.mu.Lock()
			if a.quitCurrentOp != nil {
				close(a.quitCurrentOp)
				a.quitCurrentOp = nil
			}
			a.mu.Unlock()
			return
		}
	}
}

func (a *Agent) mine(task *Task, quit <-chan struct{}) {
	block, err := Mine(task.LastBlock, task.Txs, quit)
	if err != nil {
		if err != ErrCancelled {
			logger.Warn("mining failed", "err", err)
		}
		a.returnCh <- &Result{task, nil}
		return
	}
	logger.Info("mined block", "number", block.Number, "hash", block.Hash, "difficulty", block.Difficulty)
	a.returnCh <- &Result{task, block}
}

// now is overridable in tests so difficulty-adjustment timing is
// deterministic without sleeping real wall-clock time.
var now = func() int64 { return time.Now().UnixNano() / int64(time.Millisecond) }
