package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/cleared-dev/payoffcheck/internal/model"
)

// RedisStore keeps each contract's record as a CSV string under one key.
// GET and SET are separate round trips; the read-modify-write hazard of
// Store applies unchanged.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisStore connects to the Redis server at addr.
func NewRedisStore(addr, prefix string, logger *slog.Logger) *RedisStore {
	return NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: addr}), prefix, logger)
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

// Key returns the key a contract's record is stored under.
func (s *RedisStore) Key(contractID string) string {
	return s.prefix + contractID
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Load reads a contract's record. A missing key is an empty record.
func (s *RedisStore) Load(ctx context.Context, contractID string) (*model.ContractRecord, error) {
	if err := checkID(contractID); err != nil {
		return nil, err
	}
	key := s.Key(contractID)
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		s.logger.Debug("no contract key yet", "contract", contractID, "key", key)
		return &model.ContractRecord{ContractID: contractID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting contract key %s: %w", key, err)
	}
	rec, err := ReadRecord(bytes.NewReader([]byte(val)), contractID, s.logger)
	if err != nil {
		return nil, fmt.Errorf("reading contract key %s: %w", key, err)
	}
	return rec, nil
}

// Save replaces a contract's record.
func (s *RedisStore) Save(ctx context.Context, rec *model.ContractRecord) error {
	if err := checkID(rec.ContractID); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := WriteRecord(&buf, rec); err != nil {
		return fmt.Errorf("encoding contract %s: %w", rec.ContractID, err)
	}
	key := s.Key(rec.ContractID)
	if err := s.client.Set(ctx, key, buf.String(), 0).Err(); err != nil {
		return fmt.Errorf("setting contract key %s: %w", key, err)
	}
	return nil
}
