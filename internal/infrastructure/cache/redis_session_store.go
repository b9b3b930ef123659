package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/retail/backend/internal/domain/sales"
)

const defaultSessionKeyPrefix = "retail:bill-session:"

// RedisSessionStore implements sales.SessionStore on Redis.
// Each bill is one JSON string key expiring after the idle TTL.
type RedisSessionStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisSessionStore connects to Redis and creates the store
func NewRedisSessionStore(cfg RedisConfig, ttl time.Duration) (*RedisSessionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisSessionStoreWithClient(client, defaultSessionKeyPrefix, ttl), nil
}

// NewRedisSessionStoreWithClient creates a store with an existing Redis client
func NewRedisSessionStoreWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisSessionStore {
	if keyPrefix == "" {
		keyPrefix = defaultSessionKeyPrefix
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisSessionStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (s *RedisSessionStore) key(id uuid.UUID) string {
	return s.keyPrefix + id.String()
}

// Put stores the bill as JSON and refreshes its TTL
func (s *RedisSessionStore) Put(ctx context.Context, bill *sales.Bill) error {
	data, err := json.Marshal(bill)
	if err != nil {
		return fmt.Errorf("failed to encode bill session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(bill.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store bill session: %w", err)
	}
	return nil
}

// Get loads a bill session
func (s *RedisSessionStore) Get(ctx context.Context, id uuid.UUID) (*sales.Bill, bool, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load bill session: %w", err)
	}
	var bill sales.Bill
	if err := json.Unmarshal(data, &bill); err != nil {
		return nil, false, fmt.Errorf("failed to decode bill session: %w", err)
	}
	return &bill, true, nil
}

// Delete removes the session
func (s *RedisSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete bill session: %w", err)
	}
	return nil
}

// List scans the key prefix. Keys expiring between SCAN and GET are skipped.
func (s *RedisSessionStore) List(ctx context.Context) ([]*sales.Bill, error) {
	var bills []*sales.Bill
	iter := s.client.Scan(ctx, 0, s.keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load bill session: %w", err)
		}
		var bill sales.Bill
		if err := json.Unmarshal(data, &bill); err != nil {
			return nil, fmt.Errorf("failed to decode bill session %s: %w", iter.Val(), err)
		}
		bills = append(bills, &bill)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan bill sessions: %w", err)
	}
	return bills, nil
}

// Close closes the Redis connection
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}

// GetClient returns the underlying Redis client (for health checks)
func (s *RedisSessionStore) GetClient() *redis.Client {
	return s.client
}
