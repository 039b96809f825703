package mask

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch 缓冲区或掩码长度与声明的宽高不一致
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrNoForegroundDetected 检测器没有给出任何前景框
	ErrNoForegroundDetected = errors.New("no foreground detected")
	// ErrExternalModelUnavailable 分割/检测模型加载失败或输出格式错误
	ErrExternalModelUnavailable = errors.New("external model unavailable")
	// ErrEncodingFailure 结果图像编码失败
	ErrEncodingFailure = errors.New("encoding failure")
)

func shapeError(what string, want, got int) error {
	return fmt.Errorf("%w: %s length %d, want %d", ErrShapeMismatch, what, got, want)
}
