package redis_session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/models"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/session"
)

// DefaultTTL bounds how long an abandoned state survives a crashed worker.
const DefaultTTL = time.Hour

const maxAppendAttempts = 5

// Store keeps iteration states in Redis so several worker processes can
// share one uniqueness domain for query ids.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStateStore(addr, password string, db int) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, DefaultTTL)
}

func NewFromClient(client redis.UniversalClient, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

func key(queryID string) string { return fmt.Sprintf("trajectory:%s:state", queryID) }

func (store *Store) Create(ctx context.Context, queryID, query string) (models.IterationState, error) {
	st := models.IterationState{QueryID: queryID, Query: query, CreatedAt: time.Now().UTC()}
	data, err := json.Marshal(st)
	if err != nil {
		return models.IterationState{}, err
	}
	ok, err := store.client.SetNX(ctx, key(queryID), data, store.ttl).Result()
	if err != nil {
		return models.IterationState{}, fmt.Errorf("create state %s: %w", queryID, err)
	}
	if !ok {
		return models.IterationState{}, session.ErrStateExists
	}
	return st, nil
}

func (store *Store) Get(ctx context.Context, queryID string) (models.IterationState, error) {
	val, err := store.client.Get(ctx, key(queryID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.IterationState{}, session.ErrStateNotFound
	}
	if err != nil {
		return models.IterationState{}, fmt.Errorf("get state %s: %w", queryID, err)
	}
	var st models.IterationState
	if err := json.Unmarshal(val, &st); err != nil {
		return models.IterationState{}, fmt.Errorf("decode state %s: %w", queryID, err)
	}
	return st, nil
}

func (store *Store) AppendResults(ctx context.Context, queryID string, results []models.ToolResult) (models.IterationState, error) {
	k := key(queryID)
	var out models.IterationState
	txf := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			return session.ErrStateNotFound
		}
		if err != nil {
			return err
		}
		var st models.IterationState
		if err := json.Unmarshal(val, &st); err != nil {
			return err
		}
		st.ToolResults = append(st.ToolResults, results...)
		st.Iteration++
		data, err := json.Marshal(st)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, store.ttl)
			return nil
		})
		if err == nil {
			out = st
		}
		return err
	}
	for i := 0; i < maxAppendAttempts; i++ {
		err := store.client.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return models.IterationState{}, fmt.Errorf("append state %s: %w", queryID, err)
		}
		return out, nil
	}
	return models.IterationState{}, fmt.Errorf("append state %s: too much contention", queryID)
}

func (store *Store) Delete(ctx context.Context, queryID string) error {
	return store.client.Del(ctx, key(queryID)).Err()
}
