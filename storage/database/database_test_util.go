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

	"github.com/otiai10/copy"
)

// NewLevelDBManagerForTest opens a fresh, throwaway LevelDB-backed ChainDB
// under the test's temp dir, cleaned up via t.Cleanup.
func NewLevelDBManagerForTest(t *testing.T) *ChainDB {
	t.Helper()
	dir, err := ioutil.TempDir("", "harvestnode-leveldb-")
	if err != nil {
		t.Fatalf("tempdir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	raw, err := NewLDBDatabase(dir, 16, 16)
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	t.Cleanup(raw.Close)
	return NewChainDB(raw)
}

// CopyFixtureDB copies a pre-populated data directory fixture (e.g. one
// seeded with a multi-block chain for catch-up tests) into a fresh temp
// directory and returns its path, leaving the original fixture untouched.
func CopyFixtureDB(t *testing.T, fixtureDir string) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "harvestnode-fixture-")
	if err != nil {
		t.Fatalf("tempdir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	if err := copy.Copy(fixtureDir, dir); err != nil {
		t.Fatalf("copy fixture %q: %v", fixtureDir, err)
	}
	return dir
}
