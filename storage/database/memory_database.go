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
	"bytes"
	"sort"
	"sync"
)

// MemDatabase is an in-memory, ordered Database used for ephemeral nodes and
// tests, mirroring the teacher's ServiceContext.OpenDatabase fallback when
// DataDir is empty.
type MemDatabase struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// NewMemDatabase returns an empty in-memory database.
func NewMemDatabase() *MemDatabase {
	return &MemDatabase{m: make(map[string][]byte)}
}

func (d *MemDatabase) Type() DBType { return MEMDB }

func (d *MemDatabase) Put(key, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	d.m[string(key)] = cp
	return nil
}

func (d *MemDatabase) Has(key []byte) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.m[string(key)]
	return ok, nil
}

func (d *MemDatabase) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.m[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (d *MemDatabase) Delete(key []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.m, string(key))
	return nil
}

// sortedKeysWithPrefix returns every key with the given prefix, in
// byte-sorted order, matching the range-scan semantics of LevelDB/Badger.
func (d *MemDatabase) sortedKeysWithPrefix(prefix []byte) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var keys []string
	for k := range d.m {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (d *MemDatabase) Keys(prefix []byte) ([][]byte, error) {
	keys := d.sortedKeysWithPrefix(prefix)
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = []byte(k)
	}
	return out, nil
}

func (d *MemDatabase) Values(prefix []byte) ([][]byte, error) {
	keys := d.sortedKeysWithPrefix(prefix)
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = d.m[k]
	}
	return out, nil
}

func (d *MemDatabase) NewBatch() Batch {
	return &memBatch{db: d}
}

func (d *MemDatabase) Close() {}

type memBatchOp struct {
	del   bool
	key   []byte
	value []byte
}

type memBatch struct {
	db   *MemDatabase
	ops  []memBatchOp
	size int
}

func (b *memBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, memBatchOp{key: key, value: value})
	b.size += len(value)
	return nil
}

func (b *memBatch) Delete(key []byte) error {
	b.ops = append(b.ops, memBatchOp{del: true, key: key})
	return nil
}

func (b *memBatch) Write() error {
	for _, op := range b.ops {
		if op.del {
			if err := b.db.Delete(op.key); err != nil {
				return err
			}
			continue
		}
		if err := b.db.Put(op.key, op.value); err != nil {
			return err
		}
	}
	return nil
}

func (b *memBatch) ValueSize() int { return b.size }

func (b *memBatch) Reset() {
	b.ops = nil
	b.size = 0
}
