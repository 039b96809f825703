package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dany616/bgenius-background-processor/model"
	"github.com/dany616/bgenius-background-processor/utils"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type memoryEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// MemoryStore Redis 不可用时的进程内实现。
// 条目在 ttl 后过期：读取时跳过过期条目，Sweep 负责真正删除。ttl <= 0 表示不过期
type MemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	results map[string]memoryEntry[model.CutoutResult]
	jobs    map[string]memoryEntry[model.Job]
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		results: make(map[string]memoryEntry[model.CutoutResult]),
		jobs:    make(map[string]memoryEntry[model.Job]),
	}
}

func (s *MemoryStore) expiry() time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(s.ttl)
}

func (s *MemoryStore) expired(at time.Time) bool {
	return !at.IsZero() && !s.now().Before(at)
}

func (s *MemoryStore) GetResult(_ context.Context, key string) (*model.CutoutResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.results[key]
	if !ok || s.expired(e.expiresAt) {
		return nil, nil
	}
	r := e.value
	return &r, nil
}

func (s *MemoryStore) SetResult(_ context.Context, key string, result *model.CutoutResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[key] = memoryEntry[model.CutoutResult]{value: *result, expiresAt: s.expiry()}
	return nil
}

func (s *MemoryStore) SaveJob(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = memoryEntry[model.Job]{value: *job, expiresAt: s.expiry()}
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.jobs[id]
	if !ok || s.expired(e.expiresAt) {
		return nil, ErrJobNotFound
	}
	j := e.value
	return &j, nil
}

// Sweep 删除所有过期条目，返回删除数量
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, e := range s.results {
		if s.expired(e.expiresAt) {
			delete(s.results, k)
			removed++
		}
	}
	for k, e := range s.jobs {
		if s.expired(e.expiresAt) {
			delete(s.jobs, k)
			removed++
		}
	}
	return removed
}

// Len 当前保存的条目数，包括尚未清理的过期条目
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results) + len(s.jobs)
}

// ScheduleSweep 在已有的清理任务上追加过期条目的删除
func ScheduleSweep(c *cron.Cron, spec string, store *MemoryStore) error {
	_, err := c.AddFunc(spec, func() {
		removed := store.Sweep()
		utils.Logger.Debug("memory store swept", zap.Int("removed", removed))
	})
	if err != nil {
		return fmt.Errorf("schedule sweep %q: %w", spec, err)
	}
	return nil
}
