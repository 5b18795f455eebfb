package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"life.tape/internal/models"
)

var _ Store = (*RedisStore)(nil)

const (
	entriesByCreated = "entries:created"
	maxTxRetries     = 3
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(options *redis.Options) (*RedisStore, error) {
	client := redis.NewClient(options)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) GetState(ctx context.Context, key string) (*models.StateRecord, error) {
	data, err := r.client.Get(ctx, stateKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var rec models.StateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RedisStore) UpsertState(ctx context.Context, rec *models.StateRecord) error {
	if rec.Key == "" {
		return ErrInvalid
	}
	cp := *rec
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(&cp)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, stateKey(rec.Key), data, 0).Err()
}

func (r *RedisStore) DeleteState(ctx context.Context, key string) error {
	return r.client.Del(ctx, stateKey(key)).Err()
}

func (r *RedisStore) ListEntries(ctx context.Context, filter models.EntryFilter) ([]*models.Entry, error) {
	var ids []string
	var err error
	if filter.Ascending {
		ids, err = r.client.ZRange(ctx, entriesByCreated, 0, -1).Result()
	} else {
		ids, err = r.client.ZRevRange(ctx, entriesByCreated, 0, -1).Result()
	}
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*models.Entry{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = entryKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*models.Entry, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// index points at an entry that has been deleted
			continue
		}
		e, err := decodeEntry([]byte(s))
		if err != nil {
			return nil, err
		}
		if !filter.Match(e) {
			continue
		}
		result = append(result, e)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

func (r *RedisStore) GetEntry(ctx context.Context, id string) (*models.Entry, error) {
	data, err := r.client.Get(ctx, entryKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeEntry(data)
}

func (r *RedisStore) InsertEntry(ctx context.Context, entry *models.Entry) error {
	if entry.ID == "" {
		return ErrInvalid
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	ok, err := r.client.SetNX(ctx, entryKey(entry.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}

	return r.client.ZAdd(ctx, entriesByCreated, redis.Z{
		Score:  float64(entry.CreatedAt),
		Member: entry.ID,
	}).Err()
}

func (r *RedisStore) UpdateEntry(ctx context.Context, id string, patch models.EntryPatch) (*models.Entry, error) {
	key := entryKey(id)
	var updated *models.Entry

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}

		e, err := decodeEntry(data)
		if err != nil {
			return err
		}
		patch.Apply(e)

		newData, err := json.Marshal(e)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newData, 0)
			return nil
		})
		if err == nil {
			updated = e
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}

	return nil, redis.TxFailedErr
}

func (r *RedisStore) DeleteEntry(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, entryKey(id)).Result()
	if err != nil {
		return err
	}
	if err := r.client.ZRem(ctx, entriesByCreated, id).Err(); err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Helpers

func stateKey(key string) string {
	return "state:" + key
}

func entryKey(id string) string {
	return "entry:" + id
}

func decodeEntry(data []byte) (*models.Entry, error) {
	var e models.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
