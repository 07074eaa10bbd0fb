package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// OAuthState is remembered between the provider redirect and its callback.
type OAuthState struct {
	Provider     Provider `json:"provider"`
	RedirectPath string   `json:"redirect_path,omitempty"`
}

// StateStore keeps OAuth CSRF states. Consume must succeed at most once per
// state and return ErrStateNotFound for unknown, consumed or expired states.
type StateStore interface {
	Save(ctx context.Context, state string, data OAuthState, ttl time.Duration) error
	Consume(ctx context.Context, state string) (OAuthState, error)
}

// RedisStateStore keeps states in redis with a TTL and consumes them with
// GETDEL.
type RedisStateStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStateStore(client redis.UniversalClient) *RedisStateStore {
	return &RedisStateStore{client: client, prefix: "ztc:oauth_state:"}
}

func (s *RedisStateStore) Save(ctx context.Context, state string, data OAuthState, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode oauth state: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+state, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store oauth state: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Consume(ctx context.Context, state string) (OAuthState, error) {
	raw, err := s.client.GetDel(ctx, s.prefix+state).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return OAuthState{}, ErrStateNotFound
		}
		return OAuthState{}, fmt.Errorf("failed to consume oauth state: %w", err)
	}
	var data OAuthState
	if err := json.Unmarshal(raw, &data); err != nil {
		return OAuthState{}, ErrStateNotFound
	}
	return data, nil
}

// MemoryStateStore is a StateStore for tests and single-process development.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]memoryState
	now    func() time.Time
}

type memoryState struct {
	data      OAuthState
	expiresAt time.Time
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]memoryState), now: time.Now}
}

func (s *MemoryStateStore) Save(_ context.Context, state string, data OAuthState, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state] = memoryState{data: data, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStateStore) Consume(_ context.Context, state string) (OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[state]
	if !ok {
		return OAuthState{}, ErrStateNotFound
	}
	delete(s.states, state)
	if !s.now().Before(st.expiresAt) {
		return OAuthState{}, ErrStateNotFound
	}
	return st.data, nil
}

var (
	_ StateStore = (*RedisStateStore)(nil)
	_ StateStore = (*MemoryStateStore)(nil)
)
