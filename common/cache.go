// Copyright 2024-2025
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
	"context"
	"errors"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// ErrCacheMiss is returned by CacheGet when the key is in neither tier
var ErrCacheMiss = errors.New("cache miss")

var cacheCtx = context.Background()
var rdb *redis.Client
var localCache *lru.Cache

// SetupCache initializes the two-tier result cache: an in-process LRU
// always, plus a shared Redis tier when cache.redis_url is configured.
// Values are lz4 compressed before being stored in either tier.
func SetupCache() {
	if redisURL := viper.GetString("cache.redis_url"); redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Error().Err(err).Msg("could not parse redis URL")
			os.Exit(1)
		}
		rdb = redis.NewClient(opt)
	}

	size := viper.GetInt("cache.local_size")
	if size <= 0 {
		size = 1024
	}

	var err error
	localCache, err = lru.New(size)
	if err != nil {
		log.Error().Err(err).Msg("could not create LRU cache")
		os.Exit(1)
	}
}

func cacheTTL() time.Duration {
	return time.Duration(viper.GetInt("cache.ttl")) * time.Second
}

// CacheSet stores a value in both tiers
func CacheSet(key string, bytes []byte) error {
	if localCache == nil {
		return errors.New("cache is not initialized")
	}
	compressed, err := Compress(bytes)
	if err != nil {
		return err
	}
	localCache.Add(key, compressed)

	if rdb != nil {
		return rdb.Set(cacheCtx, key, compressed, cacheTTL()).Err()
	}
	return nil
}

// CacheGet fetches a value, checking the local tier first. A hit from
// Redis refreshes the key's TTL.
func CacheGet(key string) ([]byte, error) {
	if localCache == nil {
		return nil, ErrCacheMiss
	}
	if v, ok := localCache.Get(key); ok {
		return Decompress(v.([]byte))
	}

	if rdb != nil {
		val, err := rdb.GetEx(cacheCtx, key, cacheTTL()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, ErrCacheMiss
			}
			return nil, err
		}
		return Decompress(val)
	}

	return nil, ErrCacheMiss
}
