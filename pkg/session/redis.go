package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/planbridge/pkg/errors"
)

// DefaultRedisPrefix namespaces credential keys.
const DefaultRedisPrefix = "planbridge:credentials:"

// RedisStore keeps credentials in Redis so several server instances share them.
// Expiring credentials are stored with a matching key TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client. An empty prefix selects
// [DefaultRedisPrefix].
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(workspaceID string) (string, error) {
	if err := errors.ValidateWorkspaceID(workspaceID); err != nil {
		return "", err
	}
	return s.prefix + workspaceID, nil
}

func (s *RedisStore) Get(ctx context.Context, workspaceID string) (*Credentials, error) {
	key, err := s.key(workspaceID)
	if err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if creds.IsExpired() {
		return nil, nil
	}
	return &creds, nil
}

func (s *RedisStore) Set(ctx context.Context, creds *Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	key, _ := s.key(creds.WorkspaceID)

	var ttl time.Duration
	if !creds.ExpiresAt.IsZero() {
		ttl = time.Until(creds.ExpiresAt)
		if ttl <= 0 {
			return s.client.Del(ctx, key).Err()
		}
	}

	creds.UpdatedAt = time.Now()
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, workspaceID string) error {
	key, err := s.key(workspaceID)
	if err != nil {
		return err
	}
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Cleanup is a no-op; Redis expires keys itself.
func (s *RedisStore) Cleanup(ctx context.Context) error { return nil }

var _ Store = (*RedisStore)(nil)
