package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Store errors.
var (
	// ErrNotFound indicates no record exists for the athlete id.
	ErrNotFound = errors.New("auth record not found")

	// ErrAlreadyExists indicates a record for the athlete id already
	// exists. Athlete ids are unique.
	ErrAlreadyExists = errors.New("auth record already exists")
)

// Store is the persistence boundary for auth records.
type Store interface {
	// Find returns the record for the athlete id, or ErrNotFound.
	Find(ctx context.Context, athleteID int64) (*Record, error)

	// Create stores a new record. Returns ErrAlreadyExists when a record
	// for the athlete id is present.
	Create(ctx context.Context, rec *Record) error

	// Update applies the changed fields to the stored record.
	Update(ctx context.Context, athleteID int64, changes Changes) error
}

// RedisStore persists auth records as JSON values keyed by athlete id.
// One key per athlete enforces the uniqueness invariant.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a redis-backed store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

func recordKey(athleteID int64) string {
	return fmt.Sprintf("strava:auth:%d", athleteID)
}

// Find implements Store.
func (s *RedisStore) Find(ctx context.Context, athleteID int64) (*Record, error) {
	data, err := s.redis.Get(ctx, recordKey(athleteID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode auth record: %w", err)
	}
	return &rec, nil
}

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode auth record: %w", err)
	}

	ok, err := s.redis.SetNX(ctx, recordKey(rec.AthleteID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

// Update implements Store. The record is read, the changed fields applied,
// and the result written back. Concurrent updates are last-write-wins.
func (s *RedisStore) Update(ctx context.Context, athleteID int64, changes Changes) error {
	rec, err := s.Find(ctx, athleteID)
	if err != nil {
		return err
	}
	changes.apply(rec)

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode auth record: %w", err)
	}
	if err := s.redis.Set(ctx, recordKey(athleteID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
