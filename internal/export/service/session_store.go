package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bitfantasy/nimo-trade/internal/export/packing"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound 编辑会话不存在或已过期
var ErrSessionNotFound = errors.New("packing session not found or expired")

// SessionStore 编辑会话存储
type SessionStore interface {
	Get(ctx context.Context, id string) (*packing.Session, error)
	Put(ctx context.Context, s *packing.Session) error
	Delete(ctx context.Context, id string) error
}

// RedisSessionStore 会话以 JSON 存在 Redis 中，每次写入刷新过期时间
type RedisSessionStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisSessionStore 创建 Redis 会话存储
func NewRedisSessionStore(rdb *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl, prefix: "packing:session:"}
}

func (r *RedisSessionStore) Get(ctx context.Context, id string) (*packing.Session, error) {
	raw, err := r.rdb.Get(ctx, r.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var s packing.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (r *RedisSessionStore) Put(ctx context.Context, s *packing.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return r.rdb.Set(ctx, r.prefix+s.ID, raw, r.ttl).Err()
}

func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return r.rdb.Del(ctx, r.prefix+id).Err()
}

// MemorySessionStore 进程内会话存储，用于单实例部署和测试
// 存取都经过 JSON 编码，调用方拿到的会话与存储互不共享
type MemorySessionStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	raw     []byte
	expires time.Time
}

// NewMemorySessionStore 创建进程内会话存储
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{ttl: ttl, now: time.Now, entries: map[string]memoryEntry{}}
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (*packing.Session, error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	if ok && m.ttl > 0 && m.now().After(e.expires) {
		delete(m.entries, id)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	var s packing.Session
	if err := json.Unmarshal(e.raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (m *MemorySessionStore) Put(_ context.Context, s *packing.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	m.mu.Lock()
	m.entries[s.ID] = memoryEntry{raw: raw, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}
