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
	"github.com/pbnjay/memory"
	"github.com/pkg/errors"

	"github.com/agrichain/harvestnode/storage/database"
)

// minLDBCacheMB/maxLDBCacheMB bound the auto-tuned LevelDB block cache,
// mirroring node/defaults.go's own habit of deriving store sizing from the
// host rather than hardcoding it.
const (
	minLDBCacheMB = 16
	maxLDBCacheMB = 512
	ldbHandles    = 256
)

// openDatabase selects and opens the backend named by cfg.DBType, following
// the DBType switch of the teacher's ServiceContext.OpenDatabase
// (node/service.go), generalized to this node's two backends plus the
// in-memory fallback used by tests and ephemeral runs.
func openDatabase(cfg *Config) (database.Database, error) {
	switch cfg.DBType {
	case database.LEVELDB:
		if cfg.DataDir == "" {
			return nil, errors.New("node: DATA_DIR is required for the leveldb backend")
		}
		return database.NewLDBDatabase(cfg.DataDir, autoTunedCacheMB(), ldbHandles)
	case database.BADGER:
		if cfg.DataDir == "" {
			return nil, errors.New("node: DATA_DIR is required for the badger backend")
		}
		return database.NewBGDatabase(cfg.DataDir)
	case database.MEMDB, "":
		return database.NewMemDatabase(), nil
	default:
		return nil, errors.Errorf("node: unknown DB_TYPE %q", cfg.DBType)
	}
}

// autoTunedCacheMB sizes the LevelDB block cache at roughly 1/256th of host
// memory, clamped to a sane range, the same proportion the teacher's
// defaults.go uses for its own cache-size knobs.
func autoTunedCacheMB() int {
	total := memory.TotalMemory()
	if total == 0 {
		return minLDBCacheMB
	}
	mb := int(total / (1024 * 1024) / 256)
	if mb < minLDBCacheMB {
		return minLDBCacheMB
	}
	if mb > maxLDBCacheMB {
		return maxLDBCacheMB
	}
	return mb
}
