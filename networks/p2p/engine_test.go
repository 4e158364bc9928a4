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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrichain/harvestnode/blockchain/types"
)

var portCounter = 20000

func nextAddr() string {
	portCounter++
	return fmt.Sprintf("127.0.0.1:%d", portCounter)
}

func newTestEngine(t *testing.T, name string, handler Handler) (*Engine, string) {
	t.Helper()
	addr := nextAddr()
	e, err := New(name, addr, 8, handler, nil)
	require.NoError(t, err)
	require.NoError(t, e.Listen(addr))
	time.Sleep(20 * time.Millisecond)
	return e, addr
}

func mustEncode(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestDialHandshakeRegistersBothPeers(t *testing.T) {
	a, addrA := newTestEngine(t, "pub-a", Handler{})
	b, _ := newTestEngine(t, "pub-b", Handler{})

	require.NoError(t, b.Dial(addrA))

	require.Eventually(t, func() bool {
		return len(a.Peers()) == 1 && len(b.Peers()) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"pub-b"}, a.Peers())
	assert.Equal(t, []string{"pub-a"}, b.Peers())
}

func TestMaxPeersRejectsExcessConnections(t *testing.T) {
	a, addrA := newTestEngine(t, "pub-full", Handler{})
	a.maxPeers = 1

	b, _ := newTestEngine(t, "pub-b1", Handler{})
	c, _ := newTestEngine(t, "pub-b2", Handler{})

	require.NoError(t, b.Dial(addrA))
	require.Eventually(t, func() bool { return len(a.Peers()) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, c.Dial(addrA))
	time.Sleep(100 * time.Millisecond)

	assert.Len(t, a.Peers(), 1, "second dialer must be rejected once at capacity")
}

// TestHandshakeGossipsNewPeerToExistingPeers covers spec.md §4.9's
// peer-join row: when c dials into a (which is already connected to b), a
// must gossip c's descriptor onward to b so the mesh converges to fully
// connected without b ever being told about c by any other path.
func TestHandshakeGossipsNewPeerToExistingPeers(t *testing.T) {
	a, addrA := newTestEngine(t, "pub-a", Handler{})
	b, _ := newTestEngine(t, "pub-b", Handler{})
	c, _ := newTestEngine(t, "pub-c", Handler{})

	require.NoError(t, b.Dial(addrA))
	require.Eventually(t, func() bool {
		return len(a.Peers()) == 1 && len(b.Peers()) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, c.Dial(addrA))

	require.Eventually(t, func() bool {
		return len(b.Peers()) == 2
	}, time.Second, 10*time.Millisecond, "a must gossip c's descriptor to b so b dials c on its own")

	assert.ElementsMatch(t, []string{"pub-a", "pub-c"}, b.Peers())
	require.Eventually(t, func() bool {
		return len(c.Peers()) == 2
	}, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"pub-a", "pub-b"}, c.Peers())
}

func TestCreateTransactionIsRebroadcastToOtherPeers(t *testing.T) {
	received := make(chan *types.Transaction, 1)

	a, addrA := newTestEngine(t, "pub-hub", Handler{
		OnTransaction: func(tx *types.Transaction) bool { return true },
	})
	b, _ := newTestEngine(t, "pub-leaf1", Handler{})
	c, _ := newTestEngine(t, "pub-leaf2", Handler{
		OnTransaction: func(tx *types.Transaction) bool {
			received <- tx
			return true
		},
	})

	require.NoError(t, b.Dial(addrA))
	require.NoError(t, c.Dial(addrA))
	require.Eventually(t, func() bool { return len(a.Peers()) == 2 }, time.Second, 10*time.Millisecond)

	tx := &types.Transaction{From: "alice", To: "bob", Signature: "sig"}
	a.handleCreateTransaction(nil, mustEncode(t, tx))

	select {
	case got := <-received:
		assert.Equal(t, tx.From, got.From)
		assert.Equal(t, tx.To, got.To)
	case <-time.After(time.Second):
		t.Fatal("transaction was not rebroadcast to leaf2")
	}
}

// counter is a tiny mutex-guarded counter, avoiding a sync/atomic import for
// a single test assertion.
type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc()     { c.mu.Lock(); c.n++; c.mu.Unlock() }
func (c *counter) get() int { c.mu.Lock(); defer c.mu.Unlock(); return c.n }

func TestPublishBlockDedupsRepeatBroadcast(t *testing.T) {
	var calls counter
	a, _ := newTestEngine(t, "pub-dedup", Handler{
		OnBlockPublished: func(block *types.Block) bool {
			calls.inc()
			return true
		},
	})

	block := &types.Block{Number: 7, Hash: "hash-7"}
	raw := mustEncode(t, block)

	a.handlePublishBlock(nil, raw)
	a.handlePublishBlock(nil, raw)

	assert.Equal(t, 1, calls.get(), "second PUBLISH_BLOCK of the same hash must be deduped")
}
