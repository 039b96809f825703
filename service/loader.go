package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/dany616/bgenius-background-processor/mask"
	"github.com/dany616/bgenius-background-processor/utils"
	"go.uber.org/zap"
)

// ModelLoader 外部模型的加载状态。加载失败不会被记住，下次调用会重新尝试。
type ModelLoader struct {
	name  string
	load  func(ctx context.Context) error
	mu    sync.Mutex
	ready bool
}

func NewModelLoader(name string, load func(ctx context.Context) error) *ModelLoader {
	return &ModelLoader{name: name, load: load}
}

// EnsureLoaded 幂等，并发调用只会触发一次加载
func (l *ModelLoader) EnsureLoaded(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ready {
		return nil
	}
	if l.load != nil {
		if err := l.load(ctx); err != nil {
			utils.Logger.Warn("model load failed", zap.String("model", l.name), zap.Error(err))
			return fmt.Errorf("%w: load %s: %v", mask.ErrExternalModelUnavailable, l.name, err)
		}
	}
	l.ready = true
	utils.Logger.Info("model loaded", zap.String("model", l.name))
	return nil
}

func (l *ModelLoader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}
