package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
)

const (
	registrationKeyPrefix = "registration:"
	// retentionGrace keeps an expired record around briefly so callers see it as expired
	// rather than unknown.
	retentionGrace   = 5 * time.Minute
	maxUpdateRetries = 8
)

// RedisStore keeps registrations as JSON documents whose TTL tracks ExpiresAt.
// Updates use WATCH/MULTI so concurrent writers to one id never interleave.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore returns a store backed by client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func registrationKey(id string) string { return registrationKeyPrefix + id }

func recordTTL(r *domain.Registration) time.Duration {
	ttl := time.Until(r.ExpiresAt) + retentionGrace
	if ttl < retentionGrace {
		ttl = retentionGrace
	}
	return ttl
}

func unavailable(err error) error {
	return fmt.Errorf("%w: redis: %v", domain.ErrUnavailable, err)
}

func (s *RedisStore) Create(ctx context.Context, r *domain.Registration) error {
	r.Version = 1
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode registration: %w", err)
	}
	ok, err := s.client.SetNX(ctx, registrationKey(r.ID), payload, recordTTL(r)).Result()
	if err != nil {
		return unavailable(err)
	}
	if !ok {
		return ErrDuplicate
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Registration, error) {
	raw, err := s.client.Get(ctx, registrationKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	var r domain.Registration
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode registration: %w", err)
	}
	return &r, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, fn UpdateFunc) (*domain.Registration, error) {
	key := registrationKey(id)
	var (
		out   *domain.Registration
		fnErr error
	)
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var r domain.Registration
		if err := json.Unmarshal(raw, &r); err != nil {
			return fmt.Errorf("decode registration: %w", err)
		}
		if err := fn(&r); err != nil {
			fnErr = err
			return err
		}
		r.Version++
		payload, err := json.Marshal(&r)
		if err != nil {
			return fmt.Errorf("encode registration: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, recordTTL(&r))
			return nil
		})
		if err != nil {
			return err
		}
		out = &r
		return nil
	}

	for i := 0; i < maxUpdateRetries; i++ {
		fnErr = nil
		err := s.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return out, nil
		case fnErr != nil:
			return nil, fnErr
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrNotFound):
			return nil, ErrNotFound
		default:
			return nil, unavailable(err)
		}
	}
	return nil, ErrConflict
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, registrationKey(id)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}
