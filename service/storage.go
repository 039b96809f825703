package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dany616/bgenius-background-processor/config"
	"github.com/dany616/bgenius-background-processor/utils"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const tempImagePath = "/api/v1/temp-images/"

var ErrImageNotFound = errors.New("image not found")

// ImageStore 保存处理结果图片
type ImageStore interface {
	Save(ctx context.Context, data []byte, ext string) (string, error)
	Load(ctx context.Context, filename string) ([]byte, error)
	Exists(ctx context.Context, filename string) bool
	// Cleanup 删除早于 before 的文件，返回删除数量
	Cleanup(ctx context.Context, before time.Time) (int, error)
}

// ImageURL 结果图片的访问路径
func ImageURL(filename string) string {
	return tempImagePath + filename
}

// NewImageStore 按配置选择本地目录或 S3
func NewImageStore(cfg *config.StorageConfig) (ImageStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "local":
		return NewLocalStore(cfg.Dir)
	case "s3":
		return NewS3Store(cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// ValidFilename 只接受 ksuid 加扩展名的文件名
func ValidFilename(filename string) bool {
	if filename == "" || filepath.Base(filename) != filename {
		return false
	}
	ext := filepath.Ext(filename)
	return utils.IsValidID(strings.TrimSuffix(filename, ext))
}

func newFilename(ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return utils.GenerateID() + ext
}

// LocalStore 本地临时目录
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Save(_ context.Context, data []byte, ext string) (string, error) {
	filename := newFilename(ext)
	if err := os.WriteFile(filepath.Join(s.dir, filename), data, 0644); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	return filename, nil
}

func (s *LocalStore) Load(_ context.Context, filename string) ([]byte, error) {
	if !ValidFilename(filename) {
		return nil, ErrImageNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.dir, filename))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrImageNotFound
	}
	return data, err
}

func (s *LocalStore) Exists(_ context.Context, filename string) bool {
	if !ValidFilename(filename) {
		return false
	}
	_, err := os.Stat(filepath.Join(s.dir, filename))
	return err == nil
}

func (s *LocalStore) Cleanup(ctx context.Context, before time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if e.IsDir() || !ValidFilename(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(before) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			utils.Logger.Warn("failed to delete temp image",
				zap.String("file", e.Name()),
				zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

// StartCleanup 按 cron 表达式定期清理超过 ttl 的图片
func StartCleanup(store ImageStore, spec string, ttl time.Duration) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		removed, err := store.Cleanup(context.Background(), time.Now().Add(-ttl))
		if err != nil {
			utils.Logger.Warn("temp image cleanup failed", zap.Error(err))
			return
		}
		utils.Logger.Debug("temp images cleaned up", zap.Int("removed", removed))
	})
	if err != nil {
		return nil, fmt.Errorf("schedule cleanup %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
