package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sw33tLie/metropolis/pkg/itinerary"
)

const redisKeyPrefix = "itinerary:"

// RedisConfig configures RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL expires documents after a period of inactivity. Zero keeps them forever.
	TTL time.Duration
	// Prefix namespaces keys, defaults to "itinerary:".
	Prefix string
}

// RedisStore keeps documents as JSON values in Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	identity
}

func OpenRedis(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = redisKeyPrefix
	}
	return &RedisStore{client: client, ttl: cfg.TTL, prefix: prefix, identity: defaultIdentity()}, nil
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) Create(ctx context.Context, entries []itinerary.Entry, req itinerary.Request) (*itinerary.Document, error) {
	doc := r.create(entries, req)
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	ok, err := r.client.SetNX(ctx, r.key(doc.ID), data, r.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("identifier collision on %s", doc.ID)
	}
	return doc, nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*itinerary.Document, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, itinerary.ErrUnknownDocument
	}
	if err != nil {
		return nil, err
	}
	return decodeDocument(data)
}

// Replace watches the old key so a concurrent replace of the same document
// fails instead of forking it.
func (r *RedisStore) Replace(ctx context.Context, oldID string, entries []itinerary.Entry, req itinerary.Request) (*itinerary.Document, error) {
	var doc *itinerary.Document
	oldKey := r.key(oldID)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, oldKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return itinerary.ErrUnknownDocument
		}
		if err != nil {
			return err
		}
		old, err := decodeDocument(data)
		if err != nil {
			return err
		}

		doc = r.replacement(old, entries, req)
		payload, err := json.Marshal(doc)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, oldKey)
			pipe.Set(ctx, r.key(doc.ID), payload, r.ttl)
			return nil
		})
		return err
	}, oldKey)
	if errors.Is(err, redis.TxFailedErr) {
		// another replace retired oldID first
		return nil, itinerary.ErrUnknownDocument
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func decodeDocument(data []byte) (*itinerary.Document, error) {
	var doc itinerary.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("corrupt itinerary document: %w", err)
	}
	if doc.Entries == nil {
		doc.Entries = []itinerary.Entry{}
	}
	return &doc, nil
}
