// Package cache stores rendered results in Redis, keyed by an MD5 digest of
// the operation and its inputs.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"time"

	"poisson-editor/internal/config"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "poisson:result:"

// Store is the result cache used by the server. Get returns nil, nil on a miss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
}

// Key digests an operation name, its parameters and its input files. Inputs
// are length-prefixed so moving bytes between them changes the key.
func Key(op, params string, inputs ...[]byte) string {
	hash := md5.New()
	hash.Write([]byte(op))
	hash.Write([]byte{0})
	hash.Write([]byte(params))
	var n [8]byte
	for _, in := range inputs {
		binary.LittleEndian.PutUint64(n[:], uint64(len(in)))
		hash.Write(n[:])
		hash.Write(in)
	}
	return hex.EncodeToString(hash.Sum(nil))
}

// Redis is a Store backed by a Redis server.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a client for cfg. It does not connect until first use.
func NewRedis(cfg config.RedisConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Redis{
		client: client,
		ttl:    cfg.TTL,
	}
}

// Ping checks that the server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Get returns the cached result for key.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Set stores data under key for the configured TTL.
func (r *Redis) Set(ctx context.Context, key string, data []byte) error {
	return r.client.Set(ctx, keyPrefix+key, data, r.ttl).Err()
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
