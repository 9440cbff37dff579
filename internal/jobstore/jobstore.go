package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
)

var ErrJobNotFound = errors.New("搜索任务不存在或已过期")

// Store 把搜索任务的状态和结果以 JSON 的形式存在 redis 中，过期后自动删除
type Store struct {
	rdb       *redis.Client
	ttl       time.Duration
	opTimeout time.Duration
}

func New(rdb *redis.Client, ttl time.Duration, opTimeout time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl, opTimeout: opTimeout}
}

func Key(id string) string {
	return "schedule_search:" + id
}

func (s *Store) Save(ctx context.Context, job *domain.SearchJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	return s.rdb.Set(ctx, Key(job.ID), data, s.ttl).Err()
}

func (s *Store) Get(ctx context.Context, id string) (*domain.SearchJob, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	data, err := s.rdb.Get(ctx, Key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	job := &domain.SearchJob{}
	if err := json.Unmarshal(data, job); err != nil {
		return nil, err
	}
	return job, nil
}
