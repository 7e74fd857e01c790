package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ViktorBarzin/yt-highlights/internal/job"
)

// Key layout:
//
//	yt-highlights:job:<id>  => JSON(job.Job)
//	yt-highlights:jobs      => set of all known job ids
const keyPrefix = "yt-highlights:"

const opTimeout = 3 * time.Second

// RedisStore implements Store on a Redis key-value store.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis at url and verifies the connection with a
// ping. The caller treats a returned error as fatal at startup.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().Str("url", url).Msg("Connected to Redis")
	return &RedisStore{client: client}, nil
}

// Client exposes the underlying connection for components sharing the same
// Redis instance (the processed-video ledger).
func (s *RedisStore) Client() *redis.Client { return s.client }

// Close releases the Redis connection.
func (s *RedisStore) Close() error { return s.client.Close() }

func jobKey(id string) string { return keyPrefix + "job:" + id }

func indexKey() string { return keyPrefix + "jobs" }

func (s *RedisStore) Put(ctx context.Context, j *job.Job) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	b, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", j.ID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, jobKey(j.ID), b, 0)
	pipe.SAdd(ctx, indexKey(), j.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put job %s: %w", j.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*job.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	b, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	var j job.Job
	if err := json.Unmarshal(b, &j); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &j, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, mutate func(*job.Job)) error {
	j, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	mutate(j)
	return s.Put(ctx, j)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, jobKey(id))
	pipe.SRem(ctx, indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]*job.Job, error) {
	listCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	ids, err := s.client.SMembers(listCtx, indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list job ids: %w", err)
	}

	jobs := make([]*job.Job, 0, len(ids))
	for _, id := range ids {
		j, err := s.Get(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("jobId", id).Msg("Skipping unreadable job record")
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}
