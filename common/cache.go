// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
)

const DefaultCacheSize = 1024

var (
	cache     *lru.Cache
	cacheOnce sync.Once
)

// SetupCache initializes the process wide LRU cache with room for size
// entries. Calling SetupCache again replaces the cache.
func SetupCache(size int) error {
	if size <= 0 {
		size = DefaultCacheSize
	}

	c, err := lru.New(size)
	if err != nil {
		log.Error().Err(err).Int("Size", size).Msg("could not create LRU cache")
		return err
	}

	cache = c
	return nil
}

func ensureCache() {
	cacheOnce.Do(func() {
		if cache == nil {
			if err := SetupCache(DefaultCacheSize); err != nil {
				log.Panic().Err(err).Msg("could not create default LRU cache")
			}
		}
	})
}

// CacheSet stores bytes under key; values are lz4 compressed in memory
func CacheSet(key string, bytes []byte) error {
	ensureCache()

	b2, err := Compress(bytes)
	if err != nil {
		return err
	}
	cache.Add(key, b2)
	return nil
}

// CacheGet returns the bytes stored under key. The boolean is false on a
// cache miss.
func CacheGet(key string) ([]byte, bool, error) {
	ensureCache()

	v, ok := cache.Get(key)
	if !ok {
		return nil, false, nil
	}

	val, err := Decompress(v.([]byte))
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// CachePurge empties the cache
func CachePurge() {
	ensureCache()
	cache.Purge()
}
