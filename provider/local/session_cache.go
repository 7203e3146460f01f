package local

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSessionKey is the Redis key used when none is configured.
const DefaultSessionKey = "authflow:session"

// StoredSession is the persisted form of a session.
type StoredSession struct {
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SessionCache persists the client's current session.
type SessionCache interface {
	Load(ctx context.Context) (*StoredSession, error)
	Save(ctx context.Context, session *StoredSession) error
	Clear(ctx context.Context) error
}

type redisSessionCache struct {
	client *redis.Client
	key    string
}

// NewRedisSessionCache stores the session under key with a TTL matching the
// token expiry.
func NewRedisSessionCache(client *redis.Client, key string) SessionCache {
	if key == "" {
		key = DefaultSessionKey
	}
	return &redisSessionCache{client: client, key: key}
}

func (c *redisSessionCache) Load(ctx context.Context) (*StoredSession, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var session StoredSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *redisSessionCache) Save(ctx context.Context, session *StoredSession) error {
	if session == nil {
		return c.Clear(ctx)
	}

	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return c.Clear(ctx)
	}
	return c.client.Set(ctx, c.key, raw, ttl).Err()
}

func (c *redisSessionCache) Clear(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}

type memorySessionCache struct {
	mu      sync.Mutex
	session *StoredSession
}

// NewMemorySessionCache keeps the session in process memory.
func NewMemorySessionCache() SessionCache {
	return &memorySessionCache{}
}

func (c *memorySessionCache) Load(context.Context) (*StoredSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, nil
	}
	cp := *c.session
	return &cp, nil
}

func (c *memorySessionCache) Save(_ context.Context, session *StoredSession) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if session == nil {
		c.session = nil
		return nil
	}
	cp := *session
	c.session = &cp
	return nil
}

func (c *memorySessionCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
	return nil
}
