package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/clicker-admin/internal/config"
	"github.com/clicker-admin/internal/domain"
	"github.com/clicker-admin/internal/store"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DocumentStore keeps each collection in a Redis hash: one field per
// document key holding the document's JSON. Nested writes are
// read-modify-write with no optimistic locking; concurrent writers to the
// same document race and the last write wins.
type DocumentStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewDocumentStore creates a new Redis document store
func NewDocumentStore(cfg *config.RedisConfig, logger *slog.Logger) (*DocumentStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewDocumentStoreFromClient(client, logger), nil
}

// NewDocumentStoreFromClient wraps an existing client
func NewDocumentStoreFromClient(client *redis.Client, logger *slog.Logger) *DocumentStore {
	return &DocumentStore{
		client: client,
		logger: logger,
	}
}

// Close closes the Redis connection
func (s *DocumentStore) Close() error {
	return s.client.Close()
}

// Ping checks the connection
func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// collectionKey returns the Redis key for a collection's hash
func (s *DocumentStore) collectionKey(collection string) string {
	return fmt.Sprintf("store:%s", collection)
}

// Get returns the JSON value at path
func (s *DocumentStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	p, err := store.ParsePath(path)
	if err != nil {
		return nil, err
	}

	doc, err := s.client.HGet(ctx, s.collectionKey(p.Collection), p.Key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", path, domain.ErrRecordNotFound)
		}
		return nil, store.Unavailable("getting", path, err)
	}

	value, found, err := store.Lookup(doc, p.Fields)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrRecordNotFound)
	}
	return value, nil
}

// Set overwrites the subtree at path
func (s *DocumentStore) Set(ctx context.Context, path string, value any) error {
	if value == nil {
		return s.Delete(ctx, path)
	}
	p, err := store.ParsePath(path)
	if err != nil {
		return err
	}
	key := s.collectionKey(p.Collection)

	var current json.RawMessage
	if len(p.Fields) > 0 {
		current, err = s.client.HGet(ctx, key, p.Key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return store.Unavailable("reading", path, err)
		}
	}

	doc, err := store.Assign(current, p.Fields, value)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, key, p.Key, []byte(doc)).Err(); err != nil {
		return store.Unavailable("setting", path, err)
	}
	return nil
}

// Delete removes the subtree at path
func (s *DocumentStore) Delete(ctx context.Context, path string) error {
	p, err := store.ParsePath(path)
	if err != nil {
		return err
	}
	key := s.collectionKey(p.Collection)

	if len(p.Fields) == 0 {
		if err := s.client.HDel(ctx, key, p.Key).Err(); err != nil {
			return store.Unavailable("deleting", path, err)
		}
		return nil
	}

	current, err := s.client.HGet(ctx, key, p.Key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return store.Unavailable("reading", path, err)
	}
	rest, keep, err := store.Remove(current, p.Fields)
	if err != nil {
		return err
	}
	if !keep {
		err = s.client.HDel(ctx, key, p.Key).Err()
	} else {
		err = s.client.HSet(ctx, key, p.Key, []byte(rest)).Err()
	}
	if err != nil {
		return store.Unavailable("deleting", path, err)
	}
	return nil
}

// Push appends value to collection under a time-ordered key
func (s *DocumentStore) Push(ctx context.Context, collection string, value any) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating push key: %w", err)
	}
	pushKey := id.String()
	if err := s.Set(ctx, store.Join(collection, pushKey), value); err != nil {
		return "", err
	}
	return pushKey, nil
}

// Snapshot returns every document of collection in ascending key order
func (s *DocumentStore) Snapshot(ctx context.Context, collection string) ([]store.Document, error) {
	result, err := s.client.HGetAll(ctx, s.collectionKey(collection)).Result()
	if err != nil {
		return nil, store.Unavailable("reading", collection, err)
	}

	docs := make([]store.Document, 0, len(result))
	for key, value := range result {
		docs = append(docs, store.Document{Key: key, Value: json.RawMessage(value)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })
	return docs, nil
}

// Count returns the number of documents in a collection
func (s *DocumentStore) Count(ctx context.Context, collection string) (int64, error) {
	count, err := s.client.HLen(ctx, s.collectionKey(collection)).Result()
	if err != nil {
		return 0, store.Unavailable("counting", collection, err)
	}
	return count, nil
}

// Restore writes documents into a collection using pipelining.
// Existing documents with other keys are left untouched.
func (s *DocumentStore) Restore(ctx context.Context, collection string, docs []store.Document) error {
	if len(docs) == 0 {
		return nil
	}
	key := s.collectionKey(collection)
	pipe := s.client.Pipeline()

	for _, doc := range docs {
		pipe.HSet(ctx, key, doc.Key, []byte(doc.Value))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return store.Unavailable("restoring", collection, err)
	}
	s.logger.Debug("restored collection", "collection", collection, "documents", len(docs))
	return nil
}
