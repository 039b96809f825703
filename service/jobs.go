package service

import (
	"context"
	"sync"
	"time"

	"github.com/dany616/bgenius-background-processor/model"
	"github.com/dany616/bgenius-background-processor/utils"
	"go.uber.org/zap"
)

// JobRunner 在后台执行去背景请求，状态写入 JobStore
type JobRunner struct {
	cutout  *CutoutService
	store   JobStore
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewJobRunner(cutout *CutoutService, store JobStore, timeout time.Duration) *JobRunner {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobRunner{
		cutout:  cutout,
		store:   store,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit 保存 idle 状态的任务记录后立即返回
func (r *JobRunner) Submit(ctx context.Context, req *CutoutRequest) (*model.Job, error) {
	now := time.Now().Unix()
	job := &model.Job{
		ID:        utils.GenerateID(),
		State:     StateIdle.String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.SaveJob(ctx, job); err != nil {
		return nil, err
	}

	snapshot := *job
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(&snapshot, req)
	}()
	return job, nil
}

func (r *JobRunner) run(job *model.Job, req *CutoutRequest) {
	ctx := r.ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var mu sync.Mutex
	update := func(mutate func(j *model.Job)) {
		mu.Lock()
		defer mu.Unlock()
		mutate(job)
		job.UpdatedAt = time.Now().Unix()
		// 任务上下文可能已取消，状态仍然要落盘
		if err := r.store.SaveJob(context.Background(), job); err != nil {
			utils.Logger.Warn("failed to save job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}

	tracker := NewTracker(func(_, to State) {
		if to.Terminal() {
			return
		}
		update(func(j *model.Job) { j.State = to.String() })
	})

	result, err := r.cutout.Remove(ctx, req, tracker)
	if err != nil {
		utils.Logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
		update(func(j *model.Job) {
			j.State = StateFailed.String()
			j.Error = err.Error()
		})
		return
	}
	update(func(j *model.Job) {
		j.State = StateComplete.String()
		j.Result = result
	})
	utils.Logger.Info("job complete", zap.String("job_id", job.ID))
}

func (r *JobRunner) Get(ctx context.Context, id string) (*model.Job, error) {
	if !utils.IsValidID(id) {
		return nil, ErrJobNotFound
	}
	return r.store.GetJob(ctx, id)
}

// Close 取消正在运行的任务并等待退出
func (r *JobRunner) Close() {
	r.cancel()
	r.wg.Wait()
}
