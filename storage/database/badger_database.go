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
//
// This file is derived from storage/database/badger_database.go
// (jeongkyun-oh/klaytn). Adapted for harvestnode's five-namespace ChainDB.

package database

import (
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger"

	"github.com/agrichain/harvestnode/log"
)

const gcThreshold = int64(1 << 30)
const sizeGCTickerTime = 1 * time.Minute

type badgerDB struct {
	fn string
	db *badger.DB

	gcTicker *time.Ticker
	logger   log.Logger
}

func getBadgerDBDefaultOption(dbDir string) badger.Options {
	opts := badger.DefaultOptions
	opts.Dir = dbDir
	opts.ValueDir = dbDir
	return opts
}

// NewBGDatabase opens (or creates) a Badger-backed store at dbDir.
func NewBGDatabase(dbDir string) (*badgerDB, error) {
	l := log.NewModuleLogger(log.ModuleStorage).NewWith("dbDir", dbDir)

	if fi, err := os.Stat(dbDir); err == nil {
		if !fi.IsDir() {
			return nil, fmt.Errorf("badgerDB: %q is not a directory", dbDir)
		}
	} else if os.IsNotExist(err) {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("badgerDB: mkdir %q: %w", dbDir, err)
		}
	} else {
		return nil, fmt.Errorf("badgerDB: stat %q: %w", dbDir, err)
	}

	opts := getBadgerDBDefaultOption(dbDir)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerDB: open %q: %w", dbDir, err)
	}

	bg := &badgerDB{
		fn:       dbDir,
		db:       db,
		logger:   l,
		gcTicker: time.NewTicker(sizeGCTickerTime),
	}
	go bg.runValueLogGC()
	return bg, nil
}

// runValueLogGC periodically reclaims badger's value log once it grows past
// gcThreshold, matching the teacher's size-triggered GC policy.
func (bg *badgerDB) runValueLogGC() {
	_, lastSize := bg.db.Size()
	for range bg.gcTicker.C {
		_, currSize := bg.db.Size()
		if currSize-lastSize < gcThreshold {
			continue
		}
		if err := bg.db.RunValueLogGC(0.5); err != nil {
			bg.logger.Error("value log gc failed", "err", err)
			continue
		}
		_, lastSize = bg.db.Size()
	}
}

func (bg *badgerDB) Type() DBType { return BADGER }

func (bg *badgerDB) Put(key, value []byte) error {
	txn := bg.db.NewTransaction(true)
	defer txn.Discard()
	if err := txn.Set(key, value); err != nil {
		return err
	}
	return txn.Commit(nil)
}

func (bg *badgerDB) Has(key []byte) (bool, error) {
	txn := bg.db.NewTransaction(false)
	defer txn.Discard()
	_, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (bg *badgerDB) Get(key []byte) ([]byte, error) {
	txn := bg.db.NewTransaction(false)
	defer txn.Discard()
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (bg *badgerDB) Delete(key []byte) error {
	txn := bg.db.NewTransaction(true)
	defer txn.Discard()
	if err := txn.Delete(key); err != nil {
		return err
	}
	return txn.Commit(nil)
}

func (bg *badgerDB) Keys(prefix []byte) ([][]byte, error) {
	var out [][]byte
	err := bg.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := it.Item().KeyCopy(nil)
			out = append(out, k)
		}
		return nil
	})
	return out, err
}

func (bg *badgerDB) Values(prefix []byte) ([][]byte, error) {
	var out [][]byte
	err := bg.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	return out, err
}

func (bg *badgerDB) Close() {
	bg.gcTicker.Stop()
	if err := bg.db.Close(); err != nil {
		bg.logger.Error("failed to close database", "err", err)
	} else {
		bg.logger.Info("database closed")
	}
}

func (bg *badgerDB) NewBatch() Batch {
	return &badgerBatch{db: bg.db, txn: bg.db.NewTransaction(true)}
}

type badgerBatch struct {
	db   *badger.DB
	txn  *badger.Txn
	size int
}

func (b *badgerBatch) Put(key, value []byte) error {
	err := b.txn.Set(key, value)
	b.size += len(value)
	return err
}

func (b *badgerBatch) Delete(key []byte) error {
	return b.txn.Delete(key)
}

func (b *badgerBatch) Write() error {
	return b.txn.Commit(nil)
}

func (b *badgerBatch) ValueSize() int { return b.size }

func (b *badgerBatch) Reset() {
	b.txn = b.db.NewTransaction(true)
	b.size = 0
}
