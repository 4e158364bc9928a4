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

// Package database provides the ordered-KV storage abstraction required by
// spec.md §4.3 (C3): get/put/delete/keys/values/has over byte-sorted keys,
// with range scan, plus write batches for idempotent multi-key commits.
package database

import "errors"

// DBType selects the backing store implementation. Any ordered KV store
// with range scan satisfies the core's requirements (spec.md §1's
// "Persistence backend choice" is explicitly a swappable collaborator).
type DBType string

const (
	LEVELDB DBType = "leveldb"
	BADGER  DBType = "badger"
	MEMDB   DBType = "memory"
)

var ErrKeyNotFound = errors.New("database: key not found")

// Database is the minimal ordered KV contract every backend implements.
type Database interface {
	Type() DBType
	Put(key, value []byte) error
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	Keys(prefix []byte) ([][]byte, error)
	Values(prefix []byte) ([][]byte, error)
	NewBatch() Batch
	Close()
}

// Batch buffers writes so that a group of related keys commits atomically,
// which is how the core keeps chain indices from corrupting on replay
// (spec.md §4.3).
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Write() error
	ValueSize() int
	Reset()
}

// Namespace wraps a Database with a key prefix, the same "table" idiom the
// teacher uses in leveldb_database.go/badger_database.go to carve one
// physical store into several logical ones.
type Namespace struct {
	db     Database
	prefix string
}

// NewNamespace returns a Database-shaped view over db restricted to keys
// under prefix.
func NewNamespace(db Database, prefix string) *Namespace {
	return &Namespace{db: db, prefix: prefix}
}

func (n *Namespace) key(k []byte) []byte {
	return append([]byte(n.prefix), k...)
}

func (n *Namespace) Type() DBType { return n.db.Type() }

func (n *Namespace) Put(key, value []byte) error {
	return n.db.Put(n.key(key), value)
}

func (n *Namespace) Has(key []byte) (bool, error) {
	return n.db.Has(n.key(key))
}

func (n *Namespace) Get(key []byte) ([]byte, error) {
	return n.db.Get(n.key(key))
}

func (n *Namespace) Delete(key []byte) error {
	return n.db.Delete(n.key(key))
}

func (n *Namespace) Keys(prefix []byte) ([][]byte, error) {
	raw, err := n.db.Keys(n.key(prefix))
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(raw))
	for i, k := range raw {
		out[i] = k[len(n.prefix):]
	}
	return out, nil
}

func (n *Namespace) Values(prefix []byte) ([][]byte, error) {
	return n.db.Values(n.key(prefix))
}

func (n *Namespace) NewBatch() Batch {
	return &namespaceBatch{inner: n.db.NewBatch(), prefix: n.prefix}
}

func (n *Namespace) Close() {} // do not close the underlying db

type namespaceBatch struct {
	inner  Batch
	prefix string
}

func (b *namespaceBatch) Put(key, value []byte) error {
	return b.inner.Put(append([]byte(b.prefix), key...), value)
}

func (b *namespaceBatch) Delete(key []byte) error {
	return b.inner.Delete(append([]byte(b.prefix), key...))
}

func (b *namespaceBatch) Write() error   { return b.inner.Write() }
func (b *namespaceBatch) ValueSize() int { return b.inner.ValueSize() }
func (b *namespaceBatch) Reset()         { b.inner.Reset() }
