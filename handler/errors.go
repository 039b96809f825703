package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/dany616/bgenius-background-processor/mask"
	"github.com/dany616/bgenius-background-processor/model"
	"github.com/dany616/bgenius-background-processor/service"
	"github.com/dany616/bgenius-background-processor/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor 把处理错误映射为 HTTP 状态码和提示信息
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrEmptyUpload):
		return http.StatusBadRequest, "上传的文件为空"
	case errors.Is(err, service.ErrFileTooLarge):
		return http.StatusBadRequest, "文件大小超过限制"
	case errors.Is(err, service.ErrUnsupportedType):
		return http.StatusBadRequest, "不支持的文件类型，仅支持 PNG/JPEG/WebP"
	case errors.Is(err, service.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, "图片像素尺寸超过限制"
	case errors.Is(err, service.ErrInvalidImage):
		return http.StatusBadRequest, "图片格式无效或文件已损坏"
	case errors.Is(err, service.ErrInvalidParameter):
		return http.StatusBadRequest, "请求参数无效"
	case errors.Is(err, service.ErrInvalidPrompt):
		return http.StatusBadRequest, "生成背景需要提供 prompt"
	case errors.Is(err, service.ErrAPIKeyMissing):
		return http.StatusBadRequest, "该操作需要 API key"
	case errors.Is(err, mask.ErrShapeMismatch):
		return http.StatusBadRequest, "图像与掩码尺寸不一致"
	case errors.Is(err, mask.ErrNoForegroundDetected):
		return http.StatusUnprocessableEntity, "未检测到前景主体"
	case errors.Is(err, mask.ErrExternalModelUnavailable):
		return http.StatusBadGateway, "外部模型服务不可用"
	case errors.Is(err, mask.ErrEncodingFailure):
		return http.StatusInternalServerError, "结果图片编码失败"
	case errors.Is(err, service.ErrQueueFull):
		return http.StatusServiceUnavailable, "处理队列已满，请稍后重试"
	case errors.Is(err, service.ErrJobNotFound):
		return http.StatusNotFound, "任务不存在"
	case errors.Is(err, service.ErrImageNotFound):
		return http.StatusNotFound, "图片不存在或已过期"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "处理超时"
	default:
		return http.StatusInternalServerError, "图片处理失败"
	}
}

func respondError(c *gin.Context, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		utils.Logger.Error(message, zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		utils.Logger.Warn(message, zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, model.ErrorResponse{
		Success: false,
		Message: message,
		Error:   err.Error(),
	})
}
