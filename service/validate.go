package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dany616/bgenius-background-processor/config"
)

var (
	ErrEmptyUpload      = errors.New("empty file")
	ErrFileTooLarge     = errors.New("file size exceeds maximum allowed size")
	ErrUnsupportedType  = errors.New("unsupported file type")
	ErrInvalidImage     = errors.New("invalid image format or corrupted file")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrImageTooLarge    = errors.New("image dimensions exceed maximum pixel count")
)

// ValidateUpload 校验上传文件，返回非致命的提示信息
func ValidateUpload(cfg *config.UploadConfig, size int64, contentType string) ([]string, error) {
	if size <= 0 {
		return nil, ErrEmptyUpload
	}
	if cfg.MaxSize > 0 && size > cfg.MaxSize {
		return nil, fmt.Errorf("%w (%d MB)", ErrFileTooLarge, cfg.MaxSize/(1024*1024))
	}
	if !isAllowedType(cfg.AllowedTypes, contentType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	var warnings []string
	if cfg.WarnSize > 0 && size > cfg.WarnSize {
		warnings = append(warnings, "large file may take longer to process")
	}
	return warnings, nil
}

func isAllowedType(allowed []string, contentType string) bool {
	// 去掉 "; charset=..." 之类的参数
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	contentType = strings.TrimSpace(contentType)
	for _, a := range allowed {
		if strings.EqualFold(contentType, a) {
			return true
		}
	}
	return false
}
