package cache

import (
	"fmt"

	"github.com/retail/backend/internal/domain/sales"
	"github.com/retail/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// SessionStore is a sales.SessionStore that owns resources to release on shutdown
type SessionStore interface {
	sales.SessionStore
	Close() error
}

// SessionStoreFactory creates bill session stores based on configuration
type SessionStoreFactory struct {
	redisConfig           config.RedisConfig
	sessionConfig         config.SessionConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// SessionStoreFactoryOption is a functional option for configuring the factory
type SessionStoreFactoryOption func(*SessionStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) SessionStoreFactoryOption {
	return func(f *SessionStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory store when Redis is unavailable.
// Default is true.
func WithInMemoryFallback(allow bool) SessionStoreFactoryOption {
	return func(f *SessionStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewSessionStoreFactory creates a new factory
func NewSessionStoreFactory(redisCfg config.RedisConfig, sessionCfg config.SessionConfig, opts ...SessionStoreFactoryOption) *SessionStoreFactory {
	f := &SessionStoreFactory{
		redisConfig:           redisCfg,
		sessionConfig:         sessionCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisStore creates a Redis-backed session store
func (f *SessionStoreFactory) CreateRedisStore() (SessionStore, error) {
	store, err := NewRedisSessionStore(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}, f.sessionConfig.IdleTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis session store: %w", err)
	}
	return store, nil
}

// CreateInMemoryStore creates an in-memory session store.
// Sessions are not shared across process instances.
func (f *SessionStoreFactory) CreateInMemoryStore() SessionStore {
	return NewInMemorySessionStore(
		WithSessionTTL(f.sessionConfig.IdleTTL),
		WithSessionLogger(f.logger.Named("session-store")),
	)
}

// CreateStore creates the configured store. With session.store=redis it falls
// back to memory when Redis is unreachable and fallback is allowed.
func (f *SessionStoreFactory) CreateStore() (SessionStore, error) {
	if f.sessionConfig.Store != "redis" {
		f.logger.Info("using in-memory bill session store")
		return f.CreateInMemoryStore(), nil
	}

	store, err := f.CreateRedisStore()
	if err == nil {
		f.logger.Info("using Redis bill session store")
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for bill sessions but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory bill session store. "+
		"In-progress bills will not be shared between instances.",
		zap.Error(err),
	)
	return f.CreateInMemoryStore(), nil
}
