// Copyright 2018 The go-klaytn Authors
// This file is part of the go-klaytn library.
//
// The go-klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Package common holds the small cross-cutting helpers shared by the rest
// of the node. Cache wraps hashicorp/golang-lru behind the same Add/Get/
// Contains/Purge shape the teacher exposes; the sharded and ARC cache
// variants are dropped since nothing in this codebase keys a cache by
// common.Hash/common.Address at the volume that sharding exists to amortize
// (see DESIGN.md).
package common

import (
	"errors"

	lru "github.com/hashicorp/golang-lru"
)

// CacheScale lets an operator shrink every cache built through NewCache by
// a percentage, e.g. on a memory-constrained node (preset size * CacheScale
// / 100), mirroring the teacher's global knob.
var CacheScale = 100

// Cache is a bounded key/value cache with LRU eviction.
type Cache interface {
	Add(key string, value interface{}) (evicted bool)
	Get(key string) (value interface{}, ok bool)
	Contains(key string) bool
	Remove(key string)
	Len() int
	Purge()
}

type lruCache struct {
	lru *lru.Cache
}

func (cache *lruCache) Add(key string, value interface{}) (evicted bool) {
	return cache.lru.Add(key, value)
}

func (cache *lruCache) Get(key string) (value interface{}, ok bool) {
	return cache.lru.Get(key)
}

func (cache *lruCache) Contains(key string) bool {
	return cache.lru.Contains(key)
}

func (cache *lruCache) Remove(key string) {
	cache.lru.Remove(key)
}

func (cache *lruCache) Len() int {
	return cache.lru.Len()
}

func (cache *lruCache) Purge() {
	cache.lru.Purge()
}

// CacheConfiger builds a concrete Cache; NewCache is the indirection point
// the teacher uses so callers depend on a config value, not a constructor.
type CacheConfiger interface {
	newCache() (Cache, error)
}

// NewCache builds the Cache described by config.
func NewCache(config CacheConfiger) (Cache, error) {
	if config == nil {
		return nil, errors.New("common: cache config is nil")
	}
	return config.newCache()
}

// LRUConfig is the only cache shape this node needs: a flat, size-bounded
// LRU used for the mempool's signature-dedup index and the P2P layer's
// broadcast-dedup index.
type LRUConfig struct {
	CacheSize int
}

func (c LRUConfig) newCache() (Cache, error) {
	size := c.CacheSize * CacheScale / 100
	if size < 1 {
		size = 1
	}
	l, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &lruCache{l}, nil
}
