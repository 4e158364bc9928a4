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

package database

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCopyFixtureDBIsolatesResumeFromOriginal covers spec.md §8 scenario 3's
// Resume mode: a node pointed at a data directory that already holds a
// persisted chain must pick up from it rather than starting fresh. Using
// CopyFixtureDB to duplicate a pre-populated LevelDB directory, instead of
// building a chain fresh in every test, is what lets a resume test start
// from a known multi-block fixture without ever mutating the fixture
// itself — a second test run (or a parallel one) sees the same starting
// state every time.
func TestCopyFixtureDBIsolatesResumeFromOriginal(t *testing.T) {
	fixtureDir := newLevelDBFixture(t, 3)

	resumeDir := CopyFixtureDB(t, fixtureDir)
	raw, err := NewLDBDatabase(resumeDir, 16, 16)
	require.NoError(t, err)
	t.Cleanup(raw.Close)
	cdb := NewChainDB(raw)

	keys, err := cdb.Block.Keys(nil)
	require.NoError(t, err)
	assert.Len(t, keys, 3, "resumed copy must carry every block the fixture was seeded with")

	require.NoError(t, cdb.Block.Put(blockNumberKey(99), []byte("extra")))

	originalRaw, err := NewLDBDatabase(fixtureDir, 16, 16)
	require.NoError(t, err)
	t.Cleanup(originalRaw.Close)
	originalKeys, err := NewChainDB(originalRaw).Block.Keys(nil)
	require.NoError(t, err)
	assert.Len(t, originalKeys, 3, "writing to the copy must never mutate the original fixture")
}

// TestLevelDBBackedChainDBNamespaceRoundTrip exercises the LevelDB backend
// specifically (the rest of this package's tests run against MemDatabase),
// since DBType=leveldb is a real deployment option (spec.md §6) and the two
// backends share only the Database interface, not an implementation.
func TestLevelDBBackedChainDBNamespaceRoundTrip(t *testing.T) {
	cdb := NewLevelDBManagerForTest(t)

	require.NoError(t, cdb.Block.Put(blockNumberKey(1), []byte("block-1")))
	require.NoError(t, cdb.Stake.Put([]byte("alice"), []byte("5")))

	v, err := cdb.Block.Get(blockNumberKey(1))
	require.NoError(t, err)
	assert.Equal(t, "block-1", string(v))

	has, err := cdb.Stake.Has([]byte("bob"))
	require.NoError(t, err)
	assert.False(t, has)
}

// newLevelDBFixture builds a throwaway LevelDB directory seeded with n
// blocks, then closes it so it can be safely reopened (by CopyFixtureDB's
// caller) without a lock conflict. It manages its own lifecycle rather than
// NewLevelDBManagerForTest's, since that registers its own Close via
// t.Cleanup and this fixture must be closed well before the test ends.
func newLevelDBFixture(t *testing.T, n int) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "harvestnode-fixture-src-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	raw, err := NewLDBDatabase(dir, 16, 16)
	require.NoError(t, err)
	cdb := NewChainDB(raw)

	for i := uint64(0); i < uint64(n); i++ {
		require.NoError(t, cdb.Block.Put(blockNumberKey(i), []byte("block")))
	}
	cdb.Close()
	return dir
}
