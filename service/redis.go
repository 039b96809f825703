package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dany616/bgenius-background-processor/config"
	"github.com/dany616/bgenius-background-processor/model"
	"github.com/dany616/bgenius-background-processor/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	cutoutKeyPrefix = "cutout:"
	jobKeyPrefix    = "job:"
)

var ErrJobNotFound = errors.New("job not found")

// ResultCache 缓存未命中时返回 nil, nil
type ResultCache interface {
	GetResult(ctx context.Context, key string) (*model.CutoutResult, error)
	SetResult(ctx context.Context, key string, result *model.CutoutResult) error
}

// JobStore 异步任务记录
type JobStore interface {
	SaveJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
}

type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisService(cfg *config.RedisConfig) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisService{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetResult 从缓存获取抠图结果
func (s *RedisService) GetResult(ctx context.Context, key string) (*model.CutoutResult, error) {
	data, err := s.client.Get(ctx, cutoutKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // 缓存未命中
		}
		return nil, err
	}

	var result model.CutoutResult
	if err := json.Unmarshal(data, &result); err != nil {
		utils.Logger.Error("failed to unmarshal cutout result",
			zap.String("key", key), zap.Error(err))
		return nil, err
	}
	return &result, nil
}

func (s *RedisService) SetResult(ctx context.Context, key string, result *model.CutoutResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, cutoutKeyPrefix+key, data, s.ttl).Err()
}

func (s *RedisService) SaveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, jobKeyPrefix+job.ID, data, s.ttl).Err()
}

func (s *RedisService) GetJob(ctx context.Context, id string) (*model.Job, error) {
	data, err := s.client.Get(ctx, jobKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}
