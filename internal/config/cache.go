// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Keys under which the validated configuration is cached in Redis.
const (
	cacheKey          = "config:current"
	cacheHashKey      = "config:hash"
	cacheTimestampKey = "config:last_validated"
)

// StoreCache writes the validated configuration, its hash, and the
// validation timestamp to Redis so operators can inspect what the
// running daemon has accepted.
func StoreCache(ctx context.Context, client *redis.Client, cfg *AppConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	hash := sha256.Sum256(data)

	if err := client.Set(ctx, cacheKey, data, 0).Err(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}
	if err := client.Set(ctx, cacheHashKey, hex.EncodeToString(hash[:]), 0).Err(); err != nil {
		return fmt.Errorf("cache config hash: %w", err)
	}
	if err := client.Set(ctx, cacheTimestampKey, time.Now().Unix(), 0).Err(); err != nil {
		return fmt.Errorf("cache config timestamp: %w", err)
	}
	return nil
}

// LoadCache reads the cached configuration, if any.
func LoadCache(ctx context.Context, client *redis.Client) (*AppConfig, error) {
	data, err := client.Get(ctx, cacheKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cached config: %w", err)
	}

	var cfg AppConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode cached config: %w", err)
	}
	return &cfg, nil
}
