// Package redis provides a Redis-backed pluck.CredentialStore for deployments
// where several web server replicas share credentials.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fwojciec/pluck"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces every hash written by the store.
const DefaultKeyPrefix = "pluck:credentials:"

// Config holds connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Dial connects to Redis and verifies the connection with a ping.
func Dial(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, pluck.Errorf(pluck.EINVALID, "redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %q: %w", cfg.Addr, err)
	}

	return client, nil
}

// Compile-time interface verification.
var _ pluck.CredentialStore = (*CredentialStore)(nil)

// CredentialStore keeps one hash per profile, with a field per credential key.
type CredentialStore struct {
	client *redis.Client
	prefix string
}

// NewCredentialStore creates a new CredentialStore.
func NewCredentialStore(client *redis.Client) *CredentialStore {
	return &CredentialStore{client: client, prefix: DefaultKeyPrefix}
}

func (s *CredentialStore) hashKey(profile string) string {
	return s.prefix + profile
}

// GetCredential retrieves the value stored under key for profile.
func (s *CredentialStore) GetCredential(ctx context.Context, profile, key string) (string, error) {
	value, err := s.client.HGet(ctx, s.hashKey(profile), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", pluck.Errorf(pluck.ENOTFOUND, "credential %q not found", key)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetCredential stores value under key for profile.
func (s *CredentialStore) SetCredential(ctx context.Context, profile, key, value string) error {
	if profile == "" {
		return pluck.Errorf(pluck.EINVALID, "profile required")
	}
	if key == "" {
		return pluck.Errorf(pluck.EINVALID, "credential key required")
	}
	return s.client.HSet(ctx, s.hashKey(profile), key, value).Err()
}

// DeleteCredential removes key for profile.
func (s *CredentialStore) DeleteCredential(ctx context.Context, profile, key string) error {
	return s.client.HDel(ctx, s.hashKey(profile), key).Err()
}
