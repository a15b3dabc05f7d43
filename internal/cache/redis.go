// Package cache keeps upstream artifact references in Redis so they survive restarts.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/docextract/internal/llm"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // default "docextract:"
	TTL      time.Duration // 0 keeps keys forever
}

// RedisArtifactStore implements llm.ArtifactStore on Redis.
type RedisArtifactStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *slog.Logger
}

// NewRedisArtifactStore connects and pings Redis.
func NewRedisArtifactStore(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*RedisArtifactStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "docextract:"
	}
	logger.Info("cache.redis.connected", "addr", cfg.Addr, "db", cfg.DB, "prefix", prefix)

	return &RedisArtifactStore{client: client, prefix: prefix, ttl: cfg.TTL, log: logger}, nil
}

func (s *RedisArtifactStore) key(documentID string) string {
	return s.prefix + "artifact:" + documentID
}

// GetArtifact returns llm.ErrArtifactMiss when nothing is recorded.
func (s *RedisArtifactStore) GetArtifact(ctx context.Context, documentID string) (string, error) {
	val, err := s.client.Get(ctx, s.key(documentID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", llm.ErrArtifactMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

func (s *RedisArtifactStore) PutArtifact(ctx context.Context, documentID, ref string) error {
	if err := s.client.Set(ctx, s.key(documentID), ref, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (s *RedisArtifactStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisArtifactStore) Close() error {
	return s.client.Close()
}
