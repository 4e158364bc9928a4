// Copyright 2015 The go-ethereum Authors
// Copyright 2018 The klaytn Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.
//
// This file is derived from storage/database/leveldb_database.go
// (jeongkyun-oh/klaytn). Adapted for harvestnode's five-namespace ChainDB.

package database

import (
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	metrics "github.com/rcrowley/go-metrics"

	"github.com/agrichain/harvestnode/log"
)

var logger = log.NewModuleLogger(log.ModuleStorage)

// OpenFileLimit bounds the number of file descriptors LevelDB may hold open.
var OpenFileLimit = 64

type levelDB struct {
	fn string
	db *leveldb.DB

	compTimeMeter  metrics.Meter
	compReadMeter  metrics.Meter
	compWriteMeter metrics.Meter
	diskReadMeter  metrics.Meter
	diskWriteMeter metrics.Meter

	quitLock sync.Mutex
	quitChan chan chan error

	log log.Logger
}

func getLDBOptions(ldbCacheSize, numHandles int) *opt.Options {
	return &opt.Options{
		OpenFilesCacheCapacity: numHandles,
		BlockCacheCapacity:     ldbCacheSize / 2 * opt.MiB,
		WriteBuffer:            ldbCacheSize / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	}
}

// NewLDBDatabase opens (or creates) a LevelDB-backed store at file.
func NewLDBDatabase(file string, ldbCacheSize, numHandles int) (*levelDB, error) {
	l := log.NewModuleLogger(log.ModuleStorage).NewWith("database", file)

	if ldbCacheSize < 16 {
		ldbCacheSize = 16
	}
	if numHandles < 16 {
		numHandles = 16
	}
	l.Info("allocated LevelDB", "writeBufferSize", ldbCacheSize, "numHandles", numHandles)

	db, err := leveldb.OpenFile(file, getLDBOptions(ldbCacheSize, numHandles))
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(file, nil)
	}
	if err != nil {
		return nil, err
	}
	ldb := &levelDB{fn: file, db: db, log: l}
	ldb.meter(3 * time.Second)
	return ldb, nil
}

func (db *levelDB) Type() DBType { return LEVELDB }

func (db *levelDB) Put(key, value []byte) error {
	return db.db.Put(key, value, nil)
}

func (db *levelDB) Has(key []byte) (bool, error) {
	return db.db.Has(key, nil)
}

func (db *levelDB) Get(key []byte) ([]byte, error) {
	dat, err := db.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return dat, nil
}

func (db *levelDB) Delete(key []byte) error {
	return db.db.Delete(key, nil)
}

func (db *levelDB) Keys(prefix []byte) ([][]byte, error) {
	iter := db.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	var out [][]byte
	for iter.Next() {
		k := make([]byte, len(iter.Key()))
		copy(k, iter.Key())
		out = append(out, k)
	}
	return out, iter.Error()
}

func (db *levelDB) Values(prefix []byte) ([][]byte, error) {
	iter := db.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	var out [][]byte
	for iter.Next() {
		v := make([]byte, len(iter.Value()))
		copy(v, iter.Value())
		out = append(out, v)
	}
	return out, iter.Error()
}

func (db *levelDB) Close() {
	db.quitLock.Lock()
	defer db.quitLock.Unlock()

	if db.quitChan != nil {
		errc := make(chan error)
		db.quitChan <- errc
		if err := <-errc; err != nil {
			db.log.Error("metrics collection failed", "err", err)
		}
		db.quitChan = nil
	}
	if err := db.db.Close(); err != nil {
		db.log.Error("failed to close database", "err", err)
	} else {
		db.log.Info("database closed")
	}
}

// meter wires up the rcrowley/go-metrics meters the teacher's
// leveldb_database.go registers, and starts the periodic collector.
func (db *levelDB) meter(refresh time.Duration) {
	prefix := "db/" + db.fn + "/"
	db.compTimeMeter = metrics.NewRegisteredMeter(prefix+"compaction/time", nil)
	db.compReadMeter = metrics.NewRegisteredMeter(prefix+"compaction/read", nil)
	db.compWriteMeter = metrics.NewRegisteredMeter(prefix+"compaction/write", nil)
	db.diskReadMeter = metrics.NewRegisteredMeter(prefix+"disk/read", nil)
	db.diskWriteMeter = metrics.NewRegisteredMeter(prefix+"disk/write", nil)

	db.quitLock.Lock()
	db.quitChan = make(chan chan error)
	db.quitLock.Unlock()

	go db.collect(refresh)
}

func (db *levelDB) collect(refresh time.Duration) {
	s := new(leveldb.DBStats)
	var prevCompRead, prevCompWrite int64
	var prevCompTime time.Duration
	var prevRead, prevWrite uint64

	for {
		if err := db.db.Stats(s); err != nil {
			errc := <-db.quitChan
			errc <- err
			return
		}

		var currCompRead, currCompWrite int64
		var currCompTime time.Duration
		for i := range s.LevelDurations {
			currCompTime += s.LevelDurations[i]
			currCompRead += s.LevelRead[i]
			currCompWrite += s.LevelWrite[i]
		}
		db.compTimeMeter.Mark(int64(currCompTime.Seconds() - prevCompTime.Seconds()))
		db.compReadMeter.Mark(currCompRead - prevCompRead)
		db.compWriteMeter.Mark(currCompWrite - prevCompWrite)
		prevCompTime, prevCompRead, prevCompWrite = currCompTime, currCompRead, currCompWrite

		db.diskReadMeter.Mark(int64(s.IORead - prevRead))
		db.diskWriteMeter.Mark(int64(s.IOWrite - prevWrite))
		prevRead, prevWrite = s.IORead, s.IOWrite

		select {
		case errc := <-db.quitChan:
			errc <- nil
			return
		case <-time.After(refresh):
		}
	}
}

func (db *levelDB) NewBatch() Batch {
	return &ldbBatch{db: db.db, b: new(leveldb.Batch)}
}

type ldbBatch struct {
	db   *leveldb.DB
	b    *leveldb.Batch
	size int
}

func (b *ldbBatch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(value)
	return nil
}

func (b *ldbBatch) Delete(key []byte) error {
	b.b.Delete(key)
	return nil
}

func (b *ldbBatch) Write() error {
	return b.db.Write(b.b, nil)
}

func (b *ldbBatch) ValueSize() int { return b.size }

func (b *ldbBatch) Reset() {
	b.b.Reset()
	b.size = 0
}
